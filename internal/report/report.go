// Package report aggregates a finished harvest table into summary
// analytics: row counts, per-field fill rates, a rating histogram, and the
// most common categories.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

const (
	ratingField     = "rating"
	categoriesField = "categories"
	listSeparator   = "; "
)

// FieldFill is one field's fill rate across all rows.
type FieldFill struct {
	Field  string  `json:"field"`
	Filled int     `json:"filled"`
	Rate   float64 `json:"rate"`
}

// CategoryCount is one category's frequency.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Summary is the aggregate view of one harvest table.
type Summary struct {
	Rows            int             `json:"rows"`
	Columns         int             `json:"columns"`
	FillRates       []FieldFill     `json:"fill_rates"`
	RatingHistogram map[string]int  `json:"rating_histogram,omitempty"`
	TopCategories   []CategoryCount `json:"top_categories,omitempty"`
}

// topCategoryLimit bounds the category list in a Summary.
const topCategoryLimit = 10

// FromCSV reads a serialized harvest table and aggregates it. The reader
// must yield the full table including the header row.
func FromCSV(r io.Reader) (*Summary, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // header width validated below
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "report: parse table")
	}
	if len(rows) == 0 {
		return nil, eris.New("report: empty table")
	}

	header := rows[0]
	for i, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, eris.Errorf("report: row %d has %d cells, header has %d", i+1, len(row), len(header))
		}
	}
	return Build(header, rows[1:]), nil
}

// Build aggregates an already-parsed table.
func Build(header []string, rows [][]string) *Summary {
	s := &Summary{
		Rows:    len(rows),
		Columns: len(header),
	}

	for col, field := range header {
		filled := 0
		for _, row := range rows {
			if row[col] != "" {
				filled++
			}
		}
		rate := 0.0
		if len(rows) > 0 {
			rate = float64(filled) / float64(len(rows))
		}
		s.FillRates = append(s.FillRates, FieldFill{Field: field, Filled: filled, Rate: rate})
	}

	if col := indexOf(header, ratingField); col >= 0 {
		hist := make(map[string]int)
		for _, row := range rows {
			if v := row[col]; v != "" {
				hist[v]++
			}
		}
		if len(hist) > 0 {
			s.RatingHistogram = hist
		}
	}

	if col := indexOf(header, categoriesField); col >= 0 {
		counts := make(map[string]int)
		for _, row := range rows {
			for _, cat := range strings.Split(row[col], listSeparator) {
				cat = strings.TrimSpace(cat)
				if cat != "" {
					counts[cat]++
				}
			}
		}
		s.TopCategories = topCategories(counts, topCategoryLimit)
	}
	return s
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

// topCategories sorts by count descending, then name for determinism.
func topCategories(counts map[string]int, limit int) []CategoryCount {
	out := make([]CategoryCount, 0, len(counts))
	for cat, n := range counts {
		out = append(out, CategoryCount{Category: cat, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// WriteText renders the summary for terminal consumption.
func (s *Summary) WriteText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "rows: %d\ncolumns: %d\n", s.Rows, s.Columns); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nfill rates:")
	for _, f := range s.FillRates {
		fmt.Fprintf(w, "  %-40s %4d (%.0f%%)\n", f.Field, f.Filled, f.Rate*100)
	}

	if len(s.RatingHistogram) > 0 {
		fmt.Fprintln(w, "\nrating histogram:")
		ratings := make([]string, 0, len(s.RatingHistogram))
		for r := range s.RatingHistogram {
			ratings = append(ratings, r)
		}
		sort.Strings(ratings)
		for _, r := range ratings {
			fmt.Fprintf(w, "  %-5s %d\n", r, s.RatingHistogram[r])
		}
	}

	if len(s.TopCategories) > 0 {
		fmt.Fprintln(w, "\ntop categories:")
		for _, c := range s.TopCategories {
			fmt.Fprintf(w, "  %-40s %d\n", c.Category, c.Count)
		}
	}
	return nil
}
