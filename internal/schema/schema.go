// Package schema owns the run-scoped global field set. The set only grows,
// and a field's position in iteration order never changes after insertion,
// so partial outputs written earlier in the run stay column-compatible with
// later ones.
package schema

import (
	"sync"

	"github.com/sells-group/listing-harvester/internal/model"
)

// Accumulator merges per-page presence maps into one insertion-ordered
// global field set. Up to P listing-page tasks call Merge concurrently;
// the internal mutex is the single serialization point for schema growth.
type Accumulator struct {
	mu    sync.Mutex
	order []model.FieldID
	seen  map[model.FieldID]struct{}
}

// NewAccumulator creates an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{seen: make(map[model.FieldID]struct{})}
}

// Merge unions a page's presence map into the global set. New fields are
// appended in the order they appear within the presence map. The returned
// delta is for logging only; it has no effect on control flow.
func (a *Accumulator) Merge(pm *model.PresenceMap) []model.FieldID {
	if pm == nil || pm.Len() == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var added []model.FieldID
	for _, id := range pm.Fields() {
		if _, ok := a.seen[id]; ok {
			continue
		}
		a.seen[id] = struct{}{}
		a.order = append(a.order, id)
		added = append(added, id)
	}
	return added
}

// Fields returns an order-stable snapshot of the global field set.
func (a *Accumulator) Fields() []model.FieldID {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.FieldID, len(a.order))
	copy(out, a.order)
	return out
}

// Len returns the number of discovered fields.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.order)
}
