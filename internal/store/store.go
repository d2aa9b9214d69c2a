// Package store persists run metadata and checkpoint bookkeeping. Table
// payloads live in exported files; the store only tracks what was run,
// where outputs went, and how runs ended.
package store

import (
	"context"

	"github.com/sells-group/listing-harvester/internal/model"
)

// Store is the persistence interface for scrape-run metadata.
type Store interface {
	CreateRun(ctx context.Context, req model.ScrapeRequest) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary *model.RunSummary) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	AddCheckpoint(ctx context.Context, cp model.Checkpoint) error
	ListCheckpoints(ctx context.Context, runID string) ([]model.Checkpoint, error)

	Migrate(ctx context.Context) error
	Close() error
}
