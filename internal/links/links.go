// Package links discovers detail-page URLs and pagination facts on listing
// pages. It sits outside the extraction core: the coordinator consumes
// its output without caring how candidates were found or filtered.
package links

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sells-group/listing-harvester/internal/browser"
)

// detailLinkSelectors is the prioritized chain for locating the organic
// result anchors on a listing page.
var detailLinkSelectors = []string{
	".search-results .result a.business-name",
	".organic .result a.business-name",
	".listing-row a.listing-title",
}

// paginationSelector locates the pager; its links and text carry page
// numbers.
const paginationSelector = ".pagination a, .pagination span"

// Discoverer finds candidate detail URLs on a listing page and estimates
// the total listing-page count.
type Discoverer struct {
	matcher *Matcher
}

// NewDiscoverer creates a Discoverer with the given exclusion matcher.
func NewDiscoverer(matcher *Matcher) *Discoverer {
	if matcher == nil {
		matcher = NewMatcher(nil)
	}
	return &Discoverer{matcher: matcher}
}

// DetailURLs returns the absolute, deduplicated detail-page URLs found on
// a listing page, ad and duplicate candidates filtered out. A page with no
// recognizable result anchors yields an empty list, never an error.
func (d *Discoverer) DetailURLs(page *browser.Page) []string {
	base, err := url.Parse(page.URL)
	if err != nil {
		zap.L().Warn("links: unparseable listing url", zap.String("url", page.URL), zap.Error(err))
		return nil
	}

	var anchors *goquery.Selection
	for _, sel := range detailLinkSelectors {
		if found := page.Doc().Find(sel); found.Length() > 0 {
			anchors = found
			break
		}
	}
	if anchors == nil {
		return nil
	}

	var urls []string
	seen := make(map[string]bool)
	anchors.Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		abs.Fragment = ""
		full := abs.String()

		if seen[full] || d.matcher.IsExcluded(full) {
			return
		}
		seen[full] = true
		urls = append(urls, full)
	})
	return urls
}

var pageNumRe = regexp.MustCompile(`\d+`)

// EstimateTotalPages reads the pager on a listing page and returns the
// highest page number it advertises. The number is advisory: later pages
// may turn out empty. A page without a recognizable pager estimates 1.
func (d *Discoverer) EstimateTotalPages(page *browser.Page) int {
	max := 1
	page.Doc().Find(paginationSelector).Each(func(_ int, el *goquery.Selection) {
		text := strings.TrimSpace(el.Text())
		if m := pageNumRe.FindString(text); m != "" {
			if n, err := strconv.Atoi(m); err == nil && n > max {
				max = n
			}
		}
	})
	return max
}
