// Package record holds the in-memory, append-only record sequence for one
// scrape run.
package record

import (
	"sync"

	"github.com/sells-group/listing-harvester/internal/model"
)

// Store is the ordered sequence of extracted records. Append-only: records
// are never mutated after append. Safe for concurrent appends from the
// listing-page tasks of one batch.
type Store struct {
	mu      sync.Mutex
	records []*model.Record
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Append adds a record to the end of the sequence.
func (s *Store) Append(r *model.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
}

// Snapshot returns the current sequence in append order. The slice is a
// copy; the records themselves are shared but immutable by convention.
func (s *Store) Snapshot() []*model.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of appended records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
