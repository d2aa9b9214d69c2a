package model

import "time"

// Record holds the extracted field values for exactly one detail page.
// Extraction only fills fields actually found on that page; the serializer
// backfills empty strings for the rest of the schema.
type Record struct {
	URL         string              `json:"url"`
	PageIndex   int                 `json:"page_index"` // owning listing page, 1-based
	ExtractedAt time.Time           `json:"extracted_at"`
	Values      map[FieldID]Value   `json:"-"`
}

// NewRecord creates an empty Record for a detail page.
func NewRecord(url string, pageIndex int) *Record {
	return &Record{
		URL:         url,
		PageIndex:   pageIndex,
		ExtractedAt: time.Now().UTC(),
		Values:      make(map[FieldID]Value),
	}
}

// Set stores a field value. Null values are dropped: omission and null are
// indistinguishable at serialization time, so storing them buys nothing.
func (r *Record) Set(id FieldID, v Value) {
	if v.IsNull() {
		return
	}
	r.Values[id] = v
}

// Get returns the value for a field and whether it is present.
func (r *Record) Get(id FieldID) (Value, bool) {
	v, ok := r.Values[id]
	return v, ok
}

// Len returns the number of populated fields.
func (r *Record) Len() int { return len(r.Values) }
