package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresenceMap_OrderAndDedup(t *testing.T) {
	pm := NewPresenceMap()
	pm.Add("businessName")
	pm.Add("phone")
	pm.Add("businessName") // duplicate keeps first position
	pm.Add("address")

	assert.Equal(t, []FieldID{"businessName", "phone", "address"}, pm.Fields())
	assert.Equal(t, 3, pm.Len())
	assert.True(t, pm.Has("phone"))
	assert.False(t, pm.Has("website"))
}

func TestPresenceMap_NilSafe(t *testing.T) {
	var pm *PresenceMap
	assert.Nil(t, pm.Fields())
	assert.Equal(t, 0, pm.Len())
	assert.False(t, pm.Has("anything"))
}

func TestValue_Cell(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"text", Text("Joe's Diner"), "Joe's Diner"},
		{"number", Number(4.5), "4.5"},
		{"integer number", Number(15), "15"},
		{"bool true", Boolean(true), "true"},
		{"bool false", Boolean(false), "false"},
		{"null", Null(), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.Cell())
		})
	}
}

func TestRecord_SetDropsNull(t *testing.T) {
	r := NewRecord("https://example.com/biz/1", 1)
	r.Set("phone", Text("555-0100"))
	r.Set("fax", Null())

	assert.Equal(t, 1, r.Len())
	_, ok := r.Get("fax")
	assert.False(t, ok)
	v, ok := r.Get("phone")
	assert.True(t, ok)
	assert.Equal(t, "555-0100", v.Str)
}
