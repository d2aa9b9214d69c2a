package model

// FieldID is the stable identifier for one semantic datum extractable from
// a detail page (e.g. "businessName", "phone", "review3_rating").
// Repeating-group instances are synthesized as <group><index>_<attr>.
type FieldID string

// PresenceMap records which FieldIDs a single detail page exposed, in the
// order they were observed. Order matters: it decides where new fields land
// in the global schema. Page-scoped and ephemeral.
type PresenceMap struct {
	order []FieldID
	seen  map[FieldID]bool
}

// NewPresenceMap creates an empty PresenceMap.
func NewPresenceMap() *PresenceMap {
	return &PresenceMap{seen: make(map[FieldID]bool)}
}

// Add marks a field as present. Duplicate adds are ignored so the first
// observation fixes the field's position.
func (p *PresenceMap) Add(id FieldID) {
	if p.seen[id] {
		return
	}
	p.seen[id] = true
	p.order = append(p.order, id)
}

// Has reports whether the field was observed on this page.
func (p *PresenceMap) Has(id FieldID) bool {
	return p != nil && p.seen[id]
}

// Fields returns the observed fields in observation order.
func (p *PresenceMap) Fields() []FieldID {
	if p == nil {
		return nil
	}
	out := make([]FieldID, len(p.order))
	copy(out, p.order)
	return out
}

// Len returns the number of observed fields.
func (p *PresenceMap) Len() int {
	if p == nil {
		return 0
	}
	return len(p.order)
}
