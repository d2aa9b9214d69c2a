package browser

import (
	"context"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// RodOptions configures the headless-browser fetcher.
type RodOptions struct {
	Headless   bool
	ChromePath string        // explicit browser binary; autodetected if empty
	NavTimeout time.Duration // per-navigation deadline
	StableWait time.Duration // post-load settle time for script rendering
}

// RodFetcher renders pages in one shared headless Chrome instance. Each
// fetch opens an isolated tab and closes it with the returned Page, so a
// multi-hundred-page run never accumulates sessions.
type RodFetcher struct {
	browser    *rod.Browser
	navTimeout time.Duration
	stableWait time.Duration
}

// chromePaths are common browser binary locations checked when no explicit
// path is configured.
var chromePaths = []string{
	"/usr/bin/google-chrome",
	"/usr/bin/google-chrome-stable",
	"/usr/bin/chromium",
	"/usr/bin/chromium-browser",
	"/snap/bin/chromium",
}

// NewRodFetcher launches a headless browser and connects to it.
func NewRodFetcher(opts RodOptions) (*RodFetcher, error) {
	l := launcher.New().
		Headless(opts.Headless).
		NoSandbox(true).
		Leakless(false).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-first-run").
		Set("no-default-browser-check").
		Set("disable-extensions").
		Set("disable-background-networking").
		Set("mute-audio")

	bin := opts.ChromePath
	if bin == "" {
		for _, path := range chromePaths {
			if _, err := os.Stat(path); err == nil {
				bin = path
				break
			}
		}
	}
	if bin != "" {
		l = l.Bin(bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, eris.Wrap(err, "rod: launch browser")
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, eris.Wrap(err, "rod: connect to browser")
	}

	navTimeout := opts.NavTimeout
	if navTimeout == 0 {
		navTimeout = 30 * time.Second
	}
	stableWait := opts.StableWait
	if stableWait == 0 {
		stableWait = 2 * time.Second
	}

	zap.L().Info("rod: browser ready", zap.String("bin", bin))
	return &RodFetcher{browser: b, navTimeout: navTimeout, stableWait: stableWait}, nil
}

func (f *RodFetcher) Name() string { return "rod" }

// Close shuts the shared browser down.
func (f *RodFetcher) Close() error {
	if f.browser == nil {
		return nil
	}
	return f.browser.Close()
}

// FetchRendered opens a tab, navigates with a deadline, waits for the page
// to settle, and returns the rendered DOM. The tab is closed on every exit
// path; the returned Page owns no live session.
func (f *RodFetcher) FetchRendered(ctx context.Context, url string) (*Page, error) {
	tab, err := f.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, eris.Wrap(err, "rod: open tab")
	}
	defer func() { _ = tab.Close() }()

	tab = tab.Context(ctx).Timeout(f.navTimeout)

	if err := tab.Navigate(url); err != nil {
		return nil, eris.Wrapf(err, "rod: navigate %s", url)
	}
	if err := tab.WaitLoad(); err != nil {
		return nil, eris.Wrapf(err, "rod: wait load %s", url)
	}
	// Best effort: give client-side rendering a moment to settle. A page
	// that never stabilizes still yields whatever DOM exists at timeout.
	if err := tab.Timeout(f.stableWait).WaitStable(300 * time.Millisecond); err != nil {
		zap.L().Debug("rod: page did not stabilize", zap.String("url", url), zap.Error(err))
	}

	html, err := tab.HTML()
	if err != nil {
		return nil, eris.Wrapf(err, "rod: read html %s", url)
	}

	return NewPage(url, html)
}
