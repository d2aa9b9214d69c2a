package extract

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/listing-harvester/internal/browser"
	"github.com/sells-group/listing-harvester/internal/model"
	"github.com/sells-group/listing-harvester/internal/rules"
)

func mustPage(t *testing.T, html string) *browser.Page {
	t.Helper()
	page, err := browser.NewPage("https://directory.test/biz/1", html)
	require.NoError(t, err)
	return page
}

// reviewsHTML builds a detail page with n review instances.
func reviewsHTML(n int) string {
	var b strings.Builder
	b.WriteString(`<div id="listing-details"><h1 class="business-name">Joe's Diner</h1><div class="reviews-list">`)
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, `<div class="review">
			<span class="review-author">Reviewer %d</span>
			<span class="review-date">2026-01-%02d</span>
			<span class="review-rating four_half"></span>
			<p class="review-text">Review number %d.</p>
		</div>`, i, i%28+1, i)
	}
	b.WriteString(`</div></div>`)
	return b.String()
}

func TestDetect_ScalarPresence(t *testing.T) {
	page := mustPage(t, `<div id="listing-details">
		<h1 class="business-name">Joe's Diner</h1>
		<a class="phone">(555) 123-4567 Call</a>
		<p class="address">1 Main St</p>
	</div>`)

	d := NewDetector(rules.Default(), DetectorOptions{})
	pm := d.Detect(page)
	require.NotNil(t, pm)

	assert.Equal(t, []model.FieldID{"businessName", "phone", "address"}, pm.Fields())
}

func TestDetect_ContainerMissReturnsNil(t *testing.T) {
	page := mustPage(t, `<html><body><div class="totally-unrelated">hello</div></body></html>`)
	d := NewDetector(rules.Default(), DetectorOptions{})
	assert.Nil(t, d.Detect(page))
}

func TestDetect_GroupFieldsCappedWithTotal(t *testing.T) {
	page := mustPage(t, reviewsHTML(15))
	d := NewDetector(rules.Default(), DetectorOptions{})
	pm := d.Detect(page)
	require.NotNil(t, pm)

	// 10 materialized instances x 4 attrs, never the 11th.
	for i := 1; i <= rules.ReviewCap; i++ {
		for _, attr := range []string{"author", "date", "rating", "text"} {
			assert.True(t, pm.Has(model.FieldID(fmt.Sprintf("review%d_%s", i, attr))), "review%d_%s", i, attr)
		}
	}
	assert.False(t, pm.Has("review11_author"))
	assert.True(t, pm.Has("totalReviews"))
}

func TestDetect_GenericCaptureGated(t *testing.T) {
	html := `<div id="listing-details">
		<h1 class="business-name">Joe's Diner</h1>
		<section id="amenities">Wifi</section>
	</div>`

	off := NewDetector(rules.Default(), DetectorOptions{})
	pm := off.Detect(mustPage(t, html))
	require.NotNil(t, pm)
	assert.False(t, pm.Has("section_amenities"))

	on := NewDetector(rules.Default(), DetectorOptions{GenericCapture: true})
	pm = on.Detect(mustPage(t, html))
	require.NotNil(t, pm)
	assert.True(t, pm.Has("section_amenities"))
}
