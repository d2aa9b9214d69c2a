package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/listing-harvester/internal/model"
)

// Pool is the subset of pgxpool.Pool the store needs. pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 5
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	search_term TEXT NOT NULL,
	location    TEXT NOT NULL,
	parallelism INTEGER NOT NULL,
	status      TEXT NOT NULL DEFAULT 'queued',
	summary     JSONB,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS checkpoints (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	seq        INTEGER NOT NULL,
	path       TEXT NOT NULL,
	rows       INTEGER NOT NULL,
	columns    INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, req model.ScrapeRequest) (*model.Run, error) {
	now := time.Now().UTC()
	run := &model.Run{
		ID:        uuid.NewString(),
		Request:   req,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, search_term, location, parallelism, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, req.SearchTerm, req.Location, req.Parallelism, string(run.Status), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create run")
	}
	return run, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	return eris.Wrap(err, "postgres: update run status")
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary *model.RunSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, summary = $2, updated_at = $3 WHERE id = $4`,
		string(status), payload, time.Now().UTC(), runID,
	)
	return eris.Wrap(err, "postgres: complete run")
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, search_term, location, parallelism, status, summary, created_at, updated_at
		 FROM runs WHERE id = $1`, runID,
	)
	run, err := scanPgRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get run")
	}
	return run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, search_term, location, parallelism, status, summary, created_at, updated_at
		 FROM runs ORDER BY created_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

func (s *PostgresStore) AddCheckpoint(ctx context.Context, cp model.Checkpoint) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO checkpoints (run_id, seq, path, rows, columns, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		cp.RunID, cp.Seq, cp.Path, cp.Rows, cp.Columns, cp.CreatedAt,
	)
	return eris.Wrap(err, "postgres: add checkpoint")
}

func (s *PostgresStore) ListCheckpoints(ctx context.Context, runID string) ([]model.Checkpoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, seq, path, rows, columns, created_at
		 FROM checkpoints WHERE run_id = $1 ORDER BY seq`, runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list checkpoints")
	}
	defer rows.Close()

	var cps []model.Checkpoint
	for rows.Next() {
		var cp model.Checkpoint
		if err := rows.Scan(&cp.RunID, &cp.Seq, &cp.Path, &cp.Rows, &cp.Columns, &cp.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan checkpoint")
		}
		cps = append(cps, cp)
	}
	return cps, eris.Wrap(rows.Err(), "postgres: iterate checkpoints")
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var run model.Run
	var status string
	var summary []byte
	err := row.Scan(
		&run.ID,
		&run.Request.SearchTerm,
		&run.Request.Location,
		&run.Request.Parallelism,
		&status,
		&summary,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Status = model.RunStatus(status)
	if len(summary) > 0 {
		var s model.RunSummary
		if err := json.Unmarshal(summary, &s); err == nil {
			run.Summary = &s
		}
	}
	return &run, nil
}
