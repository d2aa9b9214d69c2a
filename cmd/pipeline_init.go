package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/listing-harvester/internal/browser"
	"github.com/sells-group/listing-harvester/internal/extract"
	"github.com/sells-group/listing-harvester/internal/links"
	"github.com/sells-group/listing-harvester/internal/rules"
	"github.com/sells-group/listing-harvester/internal/runner"
	"github.com/sells-group/listing-harvester/internal/store"
)

// initStore opens the configured run-metadata backend and migrates it.
func initStore(ctx context.Context) (store.Store, error) {
	var st store.Store
	var err error

	switch cfg.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// harvestEnv bundles the wired pipeline for the scrape and serve commands.
type harvestEnv struct {
	Store       store.Store
	Coordinator *runner.Coordinator
	fetcher     browser.Fetcher
}

// Close releases the browser and the store.
func (e *harvestEnv) Close() {
	if e.fetcher != nil {
		_ = e.fetcher.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initHarvest builds the full pipeline from config: fetcher, link
// discovery, detection/extraction over the default rule table, store, and
// coordinator.
func initHarvest(ctx context.Context) (*harvestEnv, error) {
	var fetcher browser.Fetcher
	var err error

	switch cfg.Browser.Fetcher {
	case "rod":
		fetcher, err = browser.NewRodFetcher(browser.RodOptions{
			Headless:   cfg.Browser.Headless,
			ChromePath: cfg.Browser.ChromePath,
			NavTimeout: time.Duration(cfg.Browser.NavTimeoutSecs) * time.Second,
			StableWait: time.Duration(cfg.Browser.StableWaitMsecs) * time.Millisecond,
		})
	case "http":
		fetcher = browser.NewHTTPFetcher(browser.HTTPOptions{
			Timeout: time.Duration(cfg.Browser.NavTimeoutSecs) * time.Second,
		})
	default:
		return nil, eris.Errorf("unknown fetcher %q", cfg.Browser.Fetcher)
	}
	if err != nil {
		return nil, eris.Wrap(err, "init fetcher")
	}

	matcher := links.NewMatcher(nil)
	if cfg.Links.ExclusionFile != "" {
		matcher, err = links.LoadExclusions(cfg.Links.ExclusionFile)
		if err != nil {
			_ = fetcher.Close()
			return nil, err
		}
	}

	st, err := initStore(ctx)
	if err != nil {
		_ = fetcher.Close()
		return nil, err
	}

	set := rules.Default()
	coordinator := runner.New(
		fetcher,
		links.NewDiscoverer(matcher),
		extract.NewDetector(set, extract.DetectorOptions{
			GenericCapture:    cfg.Detect.GenericCapture,
			GenericCaptureMax: cfg.Detect.GenericCaptureMax,
		}),
		extract.NewExtractor(set),
		st,
		runner.Options{
			BaseURL:   cfg.Directory.BaseURL,
			OutputDir: cfg.Run.OutputDir,
			Pacing:    time.Duration(cfg.Run.PacingMsecs) * time.Millisecond,
			MaxPages:  cfg.Run.MaxPages,
		},
	)

	return &harvestEnv{Store: st, Coordinator: coordinator, fetcher: fetcher}, nil
}
