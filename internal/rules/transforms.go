package rules

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// phoneSuffixes are the call-to-action verbs some listings append to the
// phone number text. Stripped case-insensitively before storing.
var phoneSuffixes = []string{"call", "text", "sms", "message"}

// CleanPhone strips trailing action-verb suffixes and surrounding
// whitespace from raw phone text.
func CleanPhone(s string) string {
	s = strings.TrimSpace(s)
	for {
		trimmed := false
		lower := strings.ToLower(s)
		for _, suffix := range phoneSuffixes {
			if strings.HasSuffix(lower, suffix) {
				s = strings.TrimSpace(s[:len(s)-len(suffix)])
				trimmed = true
				break
			}
		}
		if !trimmed {
			return s
		}
	}
}

// ratingWords maps the word-encoded rating class tokens to their numeric
// value. The half variants must be matched as whole tokens, which class
// splitting guarantees.
var ratingWords = map[string]float64{
	"one":        1,
	"one_half":   1.5,
	"two":        2,
	"two_half":   2.5,
	"three":      3,
	"three_half": 3.5,
	"four":       4,
	"four_half":  4.5,
	"five":       5,
}

// DecodeRatingClass extracts a word-encoded rating from a class attribute
// value, e.g. "result-rating four_half" -> 4.5.
func DecodeRatingClass(class string) (float64, bool) {
	for _, token := range strings.Fields(class) {
		if v, ok := ratingWords[token]; ok {
			return v, true
		}
	}
	return 0, false
}

var ratingDashRe = regexp.MustCompile(`(?:^|\s)ta-(\d)(?:-(\d))?(?:\s|$)`)

// DecodeRatingDash extracts a numeric-dash rating from a class attribute
// value, e.g. "ta-4-5" -> 4.5, "ta-3" -> 3. This decoding applies only to
// its own rating source and is not a fallback for DecodeRatingClass.
func DecodeRatingDash(class string) (float64, bool) {
	m := ratingDashRe.FindStringSubmatch(class)
	if m == nil {
		return 0, false
	}
	v := float64(m[1][0] - '0')
	if m[2] != "" {
		v += float64(m[2][0]-'0') / 10
	}
	return v, true
}

// thumbSuffixRe matches a thumbnail-size suffix before the extension,
// e.g. "photo_120x90.jpg" -> "photo.jpg".
var thumbSuffixRe = regexp.MustCompile(`_\d+x\d+(\.[a-zA-Z0-9]+)$`)

// StripThumbSuffix removes a known thumbnail-size suffix from an image URL
// to recover the full-resolution URL.
func StripThumbSuffix(u string) string {
	return thumbSuffixRe.ReplaceAllString(u, "$1")
}

// mediaPayload is the structured JSON some directories embed in an image's
// data-media attribute.
type mediaPayload struct {
	FullImagePath string `json:"fullImagePath"`
	Src           string `json:"src"`
}

// ResolvePhotoURL recovers the best image URL for a photo element:
// a structured JSON payload in data-media (fullImagePath, then src), else
// a plain data-url attribute, else the src with any thumbnail suffix
// stripped. A present-but-malformed JSON payload is an extraction error
// for this field, not a fall-through.
func ResolvePhotoURL(el *goquery.Selection) (string, error) {
	if raw, ok := el.Attr("data-media"); ok && strings.TrimSpace(raw) != "" {
		var payload mediaPayload
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return "", eris.Wrap(err, "rules: parse data-media payload")
		}
		if payload.FullImagePath != "" {
			return payload.FullImagePath, nil
		}
		if payload.Src != "" {
			return payload.Src, nil
		}
	}
	if u, ok := el.Attr("data-url"); ok && strings.TrimSpace(u) != "" {
		return strings.TrimSpace(u), nil
	}
	if src, ok := el.Attr("src"); ok && strings.TrimSpace(src) != "" {
		return StripThumbSuffix(strings.TrimSpace(src)), nil
	}
	return "", eris.New("rules: photo element has no resolvable URL")
}

// JoinList collects the text of matching child items and joins them with
// "; ". Empty items are skipped.
func JoinList(el *goquery.Selection, itemSelector string) string {
	var items []string
	el.Find(itemSelector).Each(func(_ int, item *goquery.Selection) {
		if text := strings.TrimSpace(item.Text()); text != "" {
			items = append(items, text)
		}
	})
	return strings.Join(items, "; ")
}

// CollapseSpace trims and collapses internal runs of whitespace, the
// normalization applied to all scalar text extractions.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
