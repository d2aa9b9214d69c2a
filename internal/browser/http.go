package browser

import (
	"context"
	"io"
	"mime"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/sells-group/listing-harvester/internal/resilience"
)

const defaultUserAgent = "Mozilla/5.0 (compatible; ListingHarvester/1.0)"

// maxBodyBytes bounds listing/detail page reads; directory pages past this
// size are ads and tracking payloads, not content.
const maxBodyBytes = 2 << 20

// HTTPFetcher fetches pages with plain net/http. Suitable for directories
// that render listings server-side.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	retry     resilience.RetryConfig
}

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	Timeout   time.Duration
	UserAgent string
	Retry     *resilience.RetryConfig
}

// NewHTTPFetcher creates an HTTPFetcher with sensible defaults.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	retry := resilience.DefaultRetryConfig()
	if opts.Retry != nil {
		retry = *opts.Retry
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgent: ua,
		retry:     retry,
	}
}

func (f *HTTPFetcher) Name() string { return "http" }

// Close implements Fetcher; the HTTP client holds no session state.
func (f *HTTPFetcher) Close() error { return nil }

// FetchRendered fetches a URL and parses its HTML. Transient failures are
// retried per the fetcher's retry config before being reported.
func (f *HTTPFetcher) FetchRendered(ctx context.Context, url string) (*Page, error) {
	var page *Page
	retry := f.retry
	retry.OnRetry = func(attempt int, err error) {
		zap.L().Debug("http fetch: retrying",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	err := resilience.Do(ctx, retry, func(ctx context.Context) error {
		p, fetchErr := f.fetchOnce(ctx, url)
		if fetchErr != nil {
			return fetchErr
		}
		page = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "http fetch: create request")
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "http fetch: do request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("http fetch: status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "http fetch: read body")
	}

	return NewPage(url, decodeBody(body, resp.Header.Get("Content-Type")))
}

// metaCharsetRe sniffs a meta charset declaration near the top of a
// document whose Content-Type header names no charset.
var metaCharsetRe = regexp.MustCompile(`(?i)<meta[^>]+charset=["']?([A-Za-z0-9._-]+)`)

// decodeBody converts a fetched document to UTF-8 using the charset from
// the Content-Type header, falling back to a meta tag sniff. Legacy
// directory sites still serve ISO-8859-1/Windows-1252, which would turn
// accented business names and review text into mojibake if handed to the
// parser as-is. UTF-8 and unrecognized charsets pass through unchanged.
func decodeBody(body []byte, contentType string) string {
	name := charsetFromContentType(contentType)
	if name == "" {
		name = charsetFromMeta(body)
	}
	if name == "" || name == "utf-8" || name == "utf8" {
		return string(body)
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		zap.L().Debug("http fetch: unknown charset", zap.String("charset", name))
		return string(body)
	}
	decoded, _, err := transform.Bytes(enc.NewDecoder(), body)
	if err != nil {
		zap.L().Debug("http fetch: charset decode failed", zap.String("charset", name), zap.Error(err))
		return string(body)
	}
	return string(decoded)
}

func charsetFromContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(params["charset"])
}

func charsetFromMeta(body []byte) string {
	head := body
	if len(head) > 1024 {
		head = head[:1024]
	}
	if m := metaCharsetRe.FindSubmatch(head); m != nil {
		return strings.ToLower(string(m[1]))
	}
	return ""
}
