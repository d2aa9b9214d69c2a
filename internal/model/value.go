package model

import "strconv"

// ValueKind discriminates the closed set of cell value types.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindText
	KindNumber
	KindBool
)

// Value is one extracted cell: text, number, boolean, or null.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	Bool bool
}

// Text creates a text value.
func Text(s string) Value { return Value{Kind: KindText, Str: s} }

// Number creates a numeric value.
func Number(n float64) Value { return Value{Kind: KindNumber, Num: n} }

// Boolean creates a boolean value.
func Boolean(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Null creates a null value.
func Null() Value { return Value{Kind: KindNull} }

// IsNull reports whether the value carries no data.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Cell renders the value as a CSV cell string. Null renders as the empty
// string, matching the serializer's backfill for absent fields.
func (v Value) Cell() string {
	switch v.Kind {
	case KindText:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return ""
	}
}
