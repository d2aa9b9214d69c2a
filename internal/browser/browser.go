// Package browser provides the rendered-page boundary: fetch a URL, get
// back a DOM-queryable page handle. Two implementations exist — a headless
// Chrome fetcher for script-rendered directories and a plain HTTP fetcher
// for server-rendered ones.
package browser

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// Page is a handle to one fetched, fully-rendered detail or listing page.
type Page struct {
	URL string
	doc *goquery.Document

	closeFn func() error
}

// NewPage wraps parsed HTML in a Page. Used by fetchers and by tests that
// simulate pages from inline fixtures.
func NewPage(url, html string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "browser: parse html")
	}
	return &Page{URL: url, doc: doc}, nil
}

// Doc exposes the parsed DOM for selector queries.
func (p *Page) Doc() *goquery.Document { return p.doc }

// Close releases any session resources backing the page. Safe to call on
// pages without a live session.
func (p *Page) Close() error {
	if p.closeFn == nil {
		return nil
	}
	fn := p.closeFn
	p.closeFn = nil
	return fn()
}

// Fetcher fetches a URL and returns its rendered page.
type Fetcher interface {
	FetchRendered(ctx context.Context, url string) (*Page, error)
	Name() string
	Close() error
}
