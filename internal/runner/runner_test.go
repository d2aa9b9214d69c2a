package runner

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/listing-harvester/internal/browser"
	"github.com/sells-group/listing-harvester/internal/extract"
	"github.com/sells-group/listing-harvester/internal/links"
	"github.com/sells-group/listing-harvester/internal/model"
	"github.com/sells-group/listing-harvester/internal/rules"
	"github.com/sells-group/listing-harvester/internal/store"
)

const testBase = "https://directory.example"

// fakeFetcher serves canned HTML by URL and records visit order.
type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[string]string
	fail    map[string]bool
	visits  []string
	onFetch func(url string)
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: make(map[string]string), fail: make(map[string]bool)}
}

func (f *fakeFetcher) FetchRendered(_ context.Context, url string) (*browser.Page, error) {
	f.mu.Lock()
	f.visits = append(f.visits, url)
	html, ok := f.pages[url]
	failed := f.fail[url]
	hook := f.onFetch
	f.mu.Unlock()

	if hook != nil {
		hook(url)
	}
	if failed || !ok {
		return nil, eris.Errorf("fetch %s: unreachable", url)
	}
	return browser.NewPage(url, html)
}

func (f *fakeFetcher) Name() string { return "fake" }

func (f *fakeFetcher) Close() error { return nil }

func (f *fakeFetcher) visitCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, v := range f.visits {
		if v == url {
			n++
		}
	}
	return n
}

func listingHTML(totalPages int, hrefs ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="search-results">`)
	for _, href := range hrefs {
		b.WriteString(`<div class="result"><a class="business-name" href="` + href + `">Biz</a></div>`)
	}
	b.WriteString(`</div><div class="pagination">`)
	for i := 1; i <= totalPages; i++ {
		b.WriteString(`<a>` + string(rune('0'+i)) + `</a>`)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

func detailHTML(inner string) string {
	return `<html><body><div id="listing-details">` + inner + `</div></body></html>`
}

func newCoordinator(t *testing.T, fetcher browser.Fetcher, st store.Store, opts Options) *Coordinator {
	t.Helper()
	set := rules.Default()
	if opts.Pacing == 0 {
		opts.Pacing = time.Millisecond
	}
	if opts.BaseURL == "" {
		opts.BaseURL = testBase
	}
	if opts.OutputDir == "" {
		opts.OutputDir = t.TempDir()
	}
	return New(
		fetcher,
		links.NewDiscoverer(nil),
		extract.NewDetector(set, extract.DetectorOptions{}),
		extract.NewExtractor(set),
		st,
		opts,
	)
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	require.NoError(t, err)
	return rows
}

func columnIndex(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func TestBuildListingURL(t *testing.T) {
	got := BuildListingURL(testBase, "pizza & subs", "Tulsa, OK", 3)
	assert.Equal(t, testBase+"/search?geo_location_terms=Tulsa%2C+OK&page=3&search_terms=pizza+%26+subs", got)
}

func TestRunSchemaGrowsAcrossDetailPages(t *testing.T) {
	fetcher := newFakeFetcher()
	page1 := BuildListingURL(testBase, "plumbers", "Tulsa, OK", 1)
	fetcher.pages[page1] = listingHTML(1, "/biz/a", "/biz/b", "/ads/sponsored-biz")
	fetcher.pages[testBase+"/biz/a"] = detailHTML(
		`<h1 class="business-name">Acme Plumbing</h1><p class="phone">918-555-0100</p>`)
	fetcher.pages[testBase+"/biz/b"] = detailHTML(
		`<h1 class="business-name">Best Pipes</h1><p class="address">12 Main St, Tulsa, OK</p>`)

	outDir := t.TempDir()
	c := newCoordinator(t, fetcher, nil, Options{OutputDir: outDir})

	summary, err := c.Run(context.Background(), model.ScrapeRequest{
		SearchTerm:  "plumbers",
		Location:    "Tulsa, OK",
		Parallelism: 2,
	})
	require.NoError(t, err)

	// Schema in discovery order: page A contributes businessName and
	// phone, page B appends address. Ad link filtered by exclusions.
	assert.Equal(t, []model.FieldID{"businessName", "phone", "address"}, summary.Fields)
	assert.Equal(t, 2, summary.RecordsExtracted)
	assert.Equal(t, 2, summary.DetailURLs)
	assert.Equal(t, 1, summary.ListingPages)
	assert.Zero(t, summary.DetailFailures)
	assert.Equal(t, 0, fetcher.visitCount(testBase+"/ads/sponsored-biz"))

	rows := readCSV(t, summary.OutputPath)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"businessName", "phone", "address"}, rows[0])

	addr := columnIndex(rows[0], "address")
	phone := columnIndex(rows[0], "phone")
	assert.Equal(t, "918-555-0100", rows[1][phone])
	assert.Equal(t, "", rows[1][addr]) // backfilled: page A has no address
	assert.Equal(t, "", rows[2][phone])
	assert.Equal(t, "12 Main St, Tulsa, OK", rows[2][addr])
}

func TestRunMultipleBatchesCheckpointsAndBookkeeping(t *testing.T) {
	fetcher := newFakeFetcher()
	page1 := BuildListingURL(testBase, "dentists", "Boise, ID", 1)
	page2 := BuildListingURL(testBase, "dentists", "Boise, ID", 2)
	fetcher.pages[page1] = listingHTML(2, "/biz/a")
	fetcher.pages[page2] = listingHTML(2, "/biz/b", "/biz/down")
	fetcher.pages[testBase+"/biz/a"] = detailHTML(`<h1 class="business-name">A Dental</h1>`)
	fetcher.pages[testBase+"/biz/b"] = detailHTML(
		`<h1 class="business-name">B Dental</h1><span class="price-range">$$</span>`)
	fetcher.fail[testBase+"/biz/down"] = true

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	outDir := t.TempDir()
	c := newCoordinator(t, fetcher, st, Options{OutputDir: outDir})

	summary, err := c.Run(context.Background(), model.ScrapeRequest{
		SearchTerm:  "dentists",
		Location:    "Boise, ID",
		Parallelism: 1, // two batches of one page each
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.ListingPages)
	assert.Equal(t, 3, summary.DetailURLs)
	assert.Equal(t, 2, summary.RecordsExtracted)
	assert.Equal(t, 1, summary.DetailFailures)
	assert.Equal(t, 2, summary.Checkpoints)
	assert.Equal(t, 1, fetcher.visitCount(page1)) // bootstrap result reused

	// Checkpoint widening: batch 1 knows only businessName, batch 2 adds
	// priceRange.
	cp1 := readCSV(t, filepath.Join(outDir, "dentists_boise-id_checkpoint_001.csv"))
	cp2 := readCSV(t, filepath.Join(outDir, "dentists_boise-id_checkpoint_002.csv"))
	assert.Len(t, cp1[0], 1)
	assert.Len(t, cp2[0], 2)

	runs, err := st.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
	require.NotNil(t, runs[0].Summary)
	assert.Equal(t, 2, runs[0].Summary.RecordsExtracted)

	cps, err := st.ListCheckpoints(context.Background(), runs[0].ID)
	require.NoError(t, err)
	assert.Len(t, cps, 2)

	// Summary artifact lands next to the table.
	_, err = os.Stat(filepath.Join(outDir, "dentists_boise-id_summary.json"))
	assert.NoError(t, err)
}

func TestRunBootstrapFailureIsFatal(t *testing.T) {
	fetcher := newFakeFetcher() // serves nothing: first listing fetch fails
	c := newCoordinator(t, fetcher, nil, Options{})

	summary, err := c.Run(context.Background(), model.ScrapeRequest{
		SearchTerm:  "roofers",
		Location:    "Omaha, NE",
		Parallelism: 2,
	})
	require.Error(t, err)
	assert.Nil(t, summary)
}

func TestRunCancellationStopsNewWork(t *testing.T) {
	fetcher := newFakeFetcher()
	page1 := BuildListingURL(testBase, "gyms", "Denver, CO", 1)
	page2 := BuildListingURL(testBase, "gyms", "Denver, CO", 2)
	fetcher.pages[page1] = listingHTML(2, "/biz/a", "/biz/b")
	fetcher.pages[page2] = listingHTML(2, "/biz/c")
	fetcher.pages[testBase+"/biz/a"] = detailHTML(`<h1 class="business-name">Gym A</h1>`)
	fetcher.pages[testBase+"/biz/b"] = detailHTML(`<h1 class="business-name">Gym B</h1>`)
	fetcher.pages[testBase+"/biz/c"] = detailHTML(`<h1 class="business-name">Gym C</h1>`)

	ctx, cancel := context.WithCancel(context.Background())
	fetcher.onFetch = func(url string) {
		if url == testBase+"/biz/a" {
			cancel()
		}
	}

	c := newCoordinator(t, fetcher, nil, Options{OutputDir: t.TempDir()})
	summary, err := c.Run(ctx, model.ScrapeRequest{
		SearchTerm:  "gyms",
		Location:    "Denver, CO",
		Parallelism: 1,
	})
	require.NoError(t, err)
	require.NotNil(t, summary)

	// Page 2's batch never launches after cancellation.
	assert.Equal(t, 0, fetcher.visitCount(page2))
	assert.Equal(t, 0, fetcher.visitCount(testBase+"/biz/c"))
	assert.LessOrEqual(t, summary.RecordsExtracted, 2)
}

func TestRunRespectsMaxPages(t *testing.T) {
	fetcher := newFakeFetcher()
	page1 := BuildListingURL(testBase, "cafes", "Austin, TX", 1)
	fetcher.pages[page1] = listingHTML(5, "/biz/a")
	fetcher.pages[testBase+"/biz/a"] = detailHTML(`<h1 class="business-name">Cafe A</h1>`)

	c := newCoordinator(t, fetcher, nil, Options{OutputDir: t.TempDir()})
	summary, err := c.Run(context.Background(), model.ScrapeRequest{
		SearchTerm:  "cafes",
		Location:    "Austin, TX",
		Parallelism: 2,
		MaxPages:    1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ListingPages)
	assert.Zero(t, summary.ListingFailures) // pages 2..5 never attempted
}

func TestOutputSlug(t *testing.T) {
	slug := outputSlug(model.ScrapeRequest{SearchTerm: "Pizza & Subs", Location: "Tulsa, OK"})
	assert.Equal(t, "pizza-subs_tulsa-ok", slug)
}
