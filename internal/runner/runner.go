// Package runner drives a scrape run end to end: discover the listing-page
// count, walk listing pages in bounded-concurrency batches, extract detail
// pages sequentially within each listing task, and checkpoint the table
// after every batch.
package runner

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/listing-harvester/internal/browser"
	"github.com/sells-group/listing-harvester/internal/extract"
	"github.com/sells-group/listing-harvester/internal/links"
	"github.com/sells-group/listing-harvester/internal/model"
	"github.com/sells-group/listing-harvester/internal/record"
	"github.com/sells-group/listing-harvester/internal/schema"
	"github.com/sells-group/listing-harvester/internal/store"
)

const (
	minParallelism = 1
	maxParallelism = 20
	defaultPacing  = 2 * time.Second
)

// Options configures a Coordinator.
type Options struct {
	// BaseURL is the directory site root, e.g. https://directory.example.
	BaseURL string
	// OutputDir receives checkpoint and final CSV files.
	OutputDir string
	// Pacing is the minimum interval between page fetches. Zero means
	// the 2s default.
	Pacing time.Duration
	// MaxPages caps the listing-page count regardless of what the pager
	// advertises. Zero means no cap beyond the request's own.
	MaxPages int
}

// Coordinator owns one run's control flow. Safe to reuse across runs; all
// per-run state lives in the run loop.
type Coordinator struct {
	fetcher    browser.Fetcher
	discoverer *links.Discoverer
	detector   *extract.Detector
	extractor  *extract.Extractor
	store      store.Store // may be nil: run metadata is then not persisted
	limiter    *rate.Limiter
	opts       Options
}

// New creates a Coordinator. st may be nil when run bookkeeping is not
// wanted (one-shot CLI use against a throwaway output dir).
func New(fetcher browser.Fetcher, discoverer *links.Discoverer, detector *extract.Detector, extractor *extract.Extractor, st store.Store, opts Options) *Coordinator {
	if opts.Pacing <= 0 {
		opts.Pacing = defaultPacing
	}
	return &Coordinator{
		fetcher:    fetcher,
		discoverer: discoverer,
		detector:   detector,
		extractor:  extractor,
		store:      st,
		limiter:    rate.NewLimiter(rate.Every(opts.Pacing), 1),
		opts:       opts,
	}
}

// BuildListingURL composes the listing-page URL for one page of a search.
func BuildListingURL(base, searchTerm, location string, page int) string {
	v := url.Values{}
	v.Set("search_terms", searchTerm)
	v.Set("geo_location_terms", location)
	v.Set("page", strconv.Itoa(page))
	return base + "/search?" + v.Encode()
}

// runState is the mutable state of one run. Counters are atomic because
// up to P listing tasks update them concurrently within a batch.
type runState struct {
	run      *model.Run
	acc      *schema.Accumulator
	records  *record.Store
	pageOne  []string // detail URLs discovered during bootstrap, reused for page 1

	listingPages    atomic.Int64
	listingFailures atomic.Int64
	detailURLs      atomic.Int64
	extracted       atomic.Int64
	detailFailures  atomic.Int64
	checkpoints     int
}

// Run creates a run record and executes it. Only bootstrap failure returns
// an error; every other failure is logged, counted, and survived.
func (c *Coordinator) Run(ctx context.Context, req model.ScrapeRequest) (*model.RunSummary, error) {
	run, err := c.createRun(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.Execute(ctx, run)
}

// Execute runs an already-created run. The serve command creates the run
// up front so its ID is known before the scrape starts.
func (c *Coordinator) Execute(ctx context.Context, run *model.Run) (*model.RunSummary, error) {
	start := time.Now()
	req := clampRequest(run.Request)
	run.Request = req

	st := &runState{
		run:     run,
		acc:     schema.NewAccumulator(),
		records: record.NewStore(),
	}

	zap.L().Info("run starting",
		zap.String("run_id", run.ID),
		zap.String("search_term", req.SearchTerm),
		zap.String("location", req.Location),
		zap.Int("parallelism", req.Parallelism),
	)
	c.setStatus(ctx, run.ID, model.RunStatusScraping)

	totalPages, err := c.bootstrap(ctx, st)
	if err != nil {
		c.setStatus(ctx, run.ID, model.RunStatusFailed)
		return nil, eris.Wrap(err, "run bootstrap")
	}

	status := model.RunStatusComplete
	for batchStart := 1; batchStart <= totalPages; batchStart += req.Parallelism {
		if ctx.Err() != nil {
			status = model.RunStatusCancelled
			break
		}

		batchEnd := batchStart + req.Parallelism - 1
		if batchEnd > totalPages {
			batchEnd = totalPages
		}
		c.processBatch(ctx, st, batchStart, batchEnd)

		if err := c.checkpoint(ctx, st); err != nil {
			zap.L().Error("checkpoint failed", zap.String("run_id", run.ID), zap.Error(err))
		}
	}
	if ctx.Err() != nil && status != model.RunStatusCancelled {
		status = model.RunStatusCancelled
	}

	summary, err := c.finalize(st, start)
	if err != nil {
		zap.L().Error("finalize failed", zap.String("run_id", run.ID), zap.Error(err))
		if status == model.RunStatusComplete {
			status = model.RunStatusFailed
		}
	}
	c.completeRun(run.ID, status, summary)

	zap.L().Info("run finished",
		zap.String("run_id", run.ID),
		zap.String("status", string(status)),
		zap.Int("records", summary.RecordsExtracted),
		zap.Int("fields", summary.FieldCount),
		zap.Duration("elapsed", summary.Elapsed),
	)
	return summary, nil
}

func (c *Coordinator) createRun(ctx context.Context, req model.ScrapeRequest) (*model.Run, error) {
	req = clampRequest(req)
	if c.store == nil {
		now := time.Now().UTC()
		return &model.Run{ID: syntheticRunID(now), Request: req, Status: model.RunStatusQueued, CreatedAt: now, UpdatedAt: now}, nil
	}
	run, err := c.store.CreateRun(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "create run")
	}
	return run, nil
}

func syntheticRunID(t time.Time) string {
	return "local-" + t.Format("20060102-150405")
}

func clampRequest(req model.ScrapeRequest) model.ScrapeRequest {
	if req.Parallelism < minParallelism {
		req.Parallelism = minParallelism
	}
	if req.Parallelism > maxParallelism {
		req.Parallelism = maxParallelism
	}
	return req
}

// bootstrap fetches the first listing page and reads the pager. This is
// the only step allowed to kill the run: without page 1 there is nothing
// to schedule.
func (c *Coordinator) bootstrap(ctx context.Context, st *runState) (int, error) {
	req := st.run.Request
	firstURL := BuildListingURL(c.opts.BaseURL, req.SearchTerm, req.Location, 1)

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	page, err := c.fetcher.FetchRendered(ctx, firstURL)
	if err != nil {
		return 0, eris.Wrapf(err, "fetch first listing page %s", firstURL)
	}
	defer page.Close()

	total := c.discoverer.EstimateTotalPages(page)
	if req.MaxPages > 0 && total > req.MaxPages {
		total = req.MaxPages
	}
	if c.opts.MaxPages > 0 && total > c.opts.MaxPages {
		total = c.opts.MaxPages
	}

	// Keep page 1's detail URLs so the first batch does not refetch it.
	st.pageOne = c.discoverer.DetailURLs(page)
	zap.L().Info("bootstrap complete",
		zap.Int("total_pages", total),
		zap.Int("page1_urls", len(st.pageOne)),
	)
	return total, nil
}

// processBatch runs listing pages [from..to] with bounded concurrency and
// waits for all of them. Listing-task failures never abort the batch; the
// group only propagates context cancellation.
func (c *Coordinator) processBatch(ctx context.Context, st *runState, from, to int) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(st.run.Request.Parallelism)

	for pageIdx := from; pageIdx <= to; pageIdx++ {
		g.Go(func() error {
			return c.processListingPage(gctx, st, pageIdx)
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		zap.L().Warn("batch ended early", zap.Int("from", from), zap.Int("to", to), zap.Error(err))
	}
}

// processListingPage fetches one listing page, then walks its detail URLs
// sequentially. Returns an error only for context cancellation.
func (c *Coordinator) processListingPage(ctx context.Context, st *runState, pageIdx int) error {
	urls, err := c.listingURLs(ctx, st, pageIdx)
	if err != nil {
		return err // cancellation only
	}
	if urls == nil {
		return nil // fetch failed; already counted
	}
	st.listingPages.Add(1)
	st.detailURLs.Add(int64(len(urls)))

	for _, detailURL := range urls {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.processDetailPage(ctx, st, pageIdx, detailURL)
	}
	return nil
}

// listingURLs resolves the detail URLs for one listing page, reusing the
// bootstrap result for page 1. nil with nil error means the fetch failed.
func (c *Coordinator) listingURLs(ctx context.Context, st *runState, pageIdx int) ([]string, error) {
	if pageIdx == 1 {
		if st.pageOne == nil {
			return []string{}, nil
		}
		return st.pageOne, nil
	}

	listingURL := BuildListingURL(c.opts.BaseURL, st.run.Request.SearchTerm, st.run.Request.Location, pageIdx)
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	page, err := c.fetcher.FetchRendered(ctx, listingURL)
	if err != nil {
		st.listingFailures.Add(1)
		zap.L().Error("listing page fetch failed",
			zap.Int("page", pageIdx),
			zap.String("url", listingURL),
			zap.Error(err),
		)
		return nil, nil
	}
	defer page.Close()

	urls := c.discoverer.DetailURLs(page)
	if urls == nil {
		urls = []string{}
	}
	return urls, nil
}

// processDetailPage runs one detail URL through the fixed detect → merge →
// extract order. Detection always precedes extraction so extraction sees
// the freshest schema.
func (c *Coordinator) processDetailPage(ctx context.Context, st *runState, pageIdx int, detailURL string) {
	if err := c.limiter.Wait(ctx); err != nil {
		return
	}
	page, err := c.fetcher.FetchRendered(ctx, detailURL)
	if err != nil {
		st.detailFailures.Add(1)
		zap.L().Error("detail page fetch failed", zap.String("url", detailURL), zap.Error(err))
		return
	}
	defer page.Close()

	pm := c.detector.Detect(page)
	if added := st.acc.Merge(pm); len(added) > 0 {
		zap.L().Info("schema grew",
			zap.Int("new_fields", len(added)),
			zap.Int("total_fields", st.acc.Len()),
			zap.String("url", detailURL),
		)
	}

	rec := c.extractor.Extract(page, st.acc.Fields())
	if rec == nil {
		st.detailFailures.Add(1)
		zap.L().Warn("detail page yielded no record", zap.String("url", detailURL))
		return
	}
	rec.PageIndex = pageIdx
	st.records.Append(rec)
	st.extracted.Add(1)
}

func (c *Coordinator) setStatus(ctx context.Context, runID string, status model.RunStatus) {
	if c.store == nil {
		return
	}
	if err := c.store.UpdateRunStatus(ctx, runID, status); err != nil {
		zap.L().Warn("run status update failed", zap.String("run_id", runID), zap.Error(err))
	}
}

func (c *Coordinator) completeRun(runID string, status model.RunStatus, summary *model.RunSummary) {
	if c.store == nil {
		return
	}
	// Completion bookkeeping must land even when the run's context was
	// cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.store.CompleteRun(ctx, runID, status, summary); err != nil {
		zap.L().Warn("run completion update failed", zap.String("run_id", runID), zap.Error(err))
	}
}

func (st *runState) summary(elapsed time.Duration, outputPath string) *model.RunSummary {
	fields := st.acc.Fields()
	return &model.RunSummary{
		ListingPages:     int(st.listingPages.Load()),
		ListingFailures:  int(st.listingFailures.Load()),
		DetailURLs:       int(st.detailURLs.Load()),
		RecordsExtracted: int(st.extracted.Load()),
		DetailFailures:   int(st.detailFailures.Load()),
		FieldCount:       len(fields),
		Fields:           fields,
		Checkpoints:      st.checkpoints,
		OutputPath:       outputPath,
		Elapsed:          elapsed,
	}
}

func (c *Coordinator) finalize(st *runState, start time.Time) (*model.RunSummary, error) {
	outputPath, err := c.writeFinal(st)
	summary := st.summary(time.Since(start), outputPath)
	if err != nil {
		return summary, err
	}
	if err := c.writeSummaryJSON(st, summary); err != nil {
		zap.L().Warn("summary artifact write failed", zap.Error(err))
	}
	return summary, nil
}
