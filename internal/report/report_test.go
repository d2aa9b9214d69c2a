package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTable = `"businessName","rating","categories","phone"
"Acme Plumbing","4.5","Plumbers; Contractors","918-555-0100"
"Best Pipes","4.5","Plumbers",""
"C Drains","3","Plumbers; Septic Services","918-555-0102"
"D Water","","",""
`

func TestFromCSV(t *testing.T) {
	s, err := FromCSV(strings.NewReader(sampleTable))
	require.NoError(t, err)

	assert.Equal(t, 4, s.Rows)
	assert.Equal(t, 4, s.Columns)

	require.Len(t, s.FillRates, 4)
	assert.Equal(t, FieldFill{Field: "businessName", Filled: 4, Rate: 1.0}, s.FillRates[0])
	assert.Equal(t, FieldFill{Field: "rating", Filled: 3, Rate: 0.75}, s.FillRates[1])
	assert.Equal(t, FieldFill{Field: "phone", Filled: 2, Rate: 0.5}, s.FillRates[3])

	assert.Equal(t, map[string]int{"4.5": 2, "3": 1}, s.RatingHistogram)

	require.NotEmpty(t, s.TopCategories)
	assert.Equal(t, CategoryCount{Category: "Plumbers", Count: 3}, s.TopCategories[0])
}

func TestFromCSVRejectsRaggedRows(t *testing.T) {
	_, err := FromCSV(strings.NewReader("\"a\",\"b\"\n\"only one\"\n"))
	require.Error(t, err)
}

func TestFromCSVEmpty(t *testing.T) {
	_, err := FromCSV(strings.NewReader(""))
	require.Error(t, err)
}

func TestBuildNoRows(t *testing.T) {
	s := Build([]string{"businessName"}, nil)
	assert.Equal(t, 0, s.Rows)
	require.Len(t, s.FillRates, 1)
	assert.Equal(t, 0.0, s.FillRates[0].Rate)
	assert.Nil(t, s.RatingHistogram)
}

func TestTopCategoriesDeterministicOrder(t *testing.T) {
	out := topCategories(map[string]int{"b": 2, "a": 2, "c": 5}, 10)
	require.Len(t, out, 3)
	assert.Equal(t, "c", out[0].Category)
	assert.Equal(t, "a", out[1].Category) // ties break by name
	assert.Equal(t, "b", out[2].Category)
}

func TestWriteText(t *testing.T) {
	s, err := FromCSV(strings.NewReader(sampleTable))
	require.NoError(t, err)

	var b strings.Builder
	require.NoError(t, s.WriteText(&b))
	out := b.String()
	assert.Contains(t, out, "rows: 4")
	assert.Contains(t, out, "businessName")
	assert.Contains(t, out, "rating histogram:")
	assert.Contains(t, out, "Plumbers")
}
