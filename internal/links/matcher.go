package links

import (
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// defaultExcludePatterns filter the ad and cross-sell links directory
// listing pages interleave with organic results. They are heuristics and
// evolve independently of the extraction core, which is why the set is
// pluggable (flags, YAML file).
var defaultExcludePatterns = []string{
	"/ads/*",
	"/sponsored/*",
	"/coupons/*",
	"*/track-click*",
	"/gateway/*",
}

// Matcher filters candidate detail URLs by glob-style path patterns.
// path.Match handles single-segment globs; a segmented fallback lets
// "/ads/*" match multi-level paths like "/ads/a/b".
type Matcher struct {
	patterns []string
}

// NewMatcher creates a Matcher, falling back to the default ad/duplicate
// exclusion set when no patterns are given.
func NewMatcher(patterns []string) *Matcher {
	if len(patterns) == 0 {
		patterns = defaultExcludePatterns
	}
	return &Matcher{patterns: patterns}
}

// exclusionFile is the YAML shape for external exclusion rule sets.
type exclusionFile struct {
	Exclude []string `yaml:"exclude"`
}

// LoadExclusions reads exclusion patterns from a YAML file and appends
// them to the defaults.
func LoadExclusions(filePath string) (*Matcher, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, eris.Wrapf(err, "links: read exclusion file %s", filePath)
	}
	var f exclusionFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, eris.Wrapf(err, "links: parse exclusion file %s", filePath)
	}
	patterns := append([]string{}, defaultExcludePatterns...)
	patterns = append(patterns, f.Exclude...)
	return &Matcher{patterns: patterns}, nil
}

// Patterns returns the configured patterns.
func (m *Matcher) Patterns() []string { return m.patterns }

// IsExcluded reports whether a URL matches any exclusion pattern.
// Unparseable URLs are excluded.
func (m *Matcher) IsExcluded(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	urlPath := strings.ToLower(u.Path)
	for _, pattern := range m.patterns {
		if matchSegmented(strings.ToLower(pattern), urlPath) {
			return true
		}
	}
	return false
}

// matchSegmented glob-matches a pattern against a path, extending
// "/dir/*" patterns to cover arbitrarily deep paths.
func matchSegmented(pattern, urlPath string) bool {
	if ok, _ := path.Match(pattern, urlPath); ok {
		return true
	}
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/") {
			return true
		}
	}
	// path.Match's "*" never crosses "/", so a leading "*" cannot absorb
	// parent segments. Retry such patterns against every slash-suffix of
	// the path so they match at any depth.
	if strings.HasPrefix(pattern, "*") {
		rest := urlPath
		for {
			i := strings.Index(rest, "/")
			if i < 0 {
				return false
			}
			rest = rest[i+1:]
			if ok, _ := path.Match(pattern, rest); ok {
				return true
			}
		}
	}
	return false
}
