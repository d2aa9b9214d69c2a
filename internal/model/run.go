package model

import "time"

// ScrapeRequest is the immutable input describing one scrape run. It is
// supplied by the configuration layer (CLI flags or the HTTP API) before
// the run starts.
type ScrapeRequest struct {
	SearchTerm  string `json:"search_term"`
	Location    string `json:"location"`
	Parallelism int    `json:"parallelism"`
	MaxPages    int    `json:"max_pages,omitempty"` // 0 = use the discovered total
}

// RunStatus tracks a run through its lifecycle.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusScraping  RunStatus = "scraping"
	RunStatusComplete  RunStatus = "complete"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run is the persisted metadata for one scrape run.
type Run struct {
	ID        string        `json:"id"`
	Request   ScrapeRequest `json:"request"`
	Status    RunStatus     `json:"status"`
	Summary   *RunSummary   `json:"summary,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// RunSummary is the human-readable outcome of a run: what was scraped,
// what failed, which fields the schema discovered, and how long it took.
type RunSummary struct {
	ListingPages     int           `json:"listing_pages"`
	ListingFailures  int           `json:"listing_failures"`
	DetailURLs       int           `json:"detail_urls"`
	RecordsExtracted int           `json:"records_extracted"`
	DetailFailures   int           `json:"detail_failures"`
	FieldCount       int           `json:"field_count"`
	Fields           []FieldID     `json:"fields"`
	Checkpoints      int           `json:"checkpoints"`
	OutputPath       string        `json:"output_path,omitempty"`
	Elapsed          time.Duration `json:"elapsed_ns"`
}

// Checkpoint records one mid-run table flush.
type Checkpoint struct {
	RunID     string    `json:"run_id"`
	Seq       int       `json:"seq"`
	Path      string    `json:"path"`
	Rows      int       `json:"rows"`
	Columns   int       `json:"columns"`
	CreatedAt time.Time `json:"created_at"`
}
