package rules

// Repeating-group caps. Instances beyond the cap are counted in the
// group's total field but not materialized as columns.
const (
	ReviewCap       = 10
	PhotoCap        = 20
	GalleryPhotoCap = 10
)

// defaultContainers is the prioritized chain for resolving a detail page's
// primary content container. Directory sites reshuffle their markup often,
// so newer shapes go first and legacy shapes remain as fallbacks.
var defaultContainers = []string{
	"#listing-details",
	"article.business-card",
	"div.business-detail",
	"#main-content .listing",
}

// defaultRules is the scalar field vocabulary for business detail pages.
var defaultRules = []Rule{
	{Field: "businessName", Selector: "h1.business-name, .sales-info h1", Kind: KindText},
	{Field: "slogan", Selector: ".slogan", Kind: KindText},
	{Field: "phone", Selector: ".phone", Kind: KindPhone},
	{Field: "address", Selector: ".address", Kind: KindText},
	{Field: "website", Selector: "a.website-link", Kind: KindAttr, Attr: "href"},
	{Field: "email", Selector: "a.email-business", Kind: KindAttr, Attr: "href"},
	{Field: "description", Selector: ".business-description", Kind: KindText},
	{Field: "generalInfo", Selector: ".general-info", Kind: KindText},
	{Field: "categories", Selector: ".categories", Kind: KindJoinedList, ItemSelector: "a"},
	{Field: "services", Selector: ".services-offered", Kind: KindJoinedList, ItemSelector: "li"},
	{Field: "paymentMethods", Selector: ".payment-methods", Kind: KindJoinedList, ItemSelector: "span"},
	{Field: "neighborhoods", Selector: ".neighborhoods", Kind: KindJoinedList, ItemSelector: "a"},
	{Field: "hours", Selector: ".open-hours", Kind: KindJoinedList, ItemSelector: "tr"},
	{Field: "claimed", Selector: ".claimed-flag", Kind: KindBool},
	{Field: "verified", Selector: ".verified-badge", Kind: KindBool},
	{Field: "rating", Selector: ".result-rating", Kind: KindRatingClass},
	{Field: "taRating", Selector: ".ta-rating", Kind: KindRatingDash},
	{Field: "ratingCount", Selector: ".rating-count", Kind: KindText},
	{Field: "priceRange", Selector: ".price-range", Kind: KindText},
	{Field: "yearsInBusiness", Selector: ".years-in-business .count", Kind: KindText},
	{Field: "latitude", Selector: ".listing-map", Kind: KindAttr, Attr: "data-lat"},
	{Field: "longitude", Selector: ".listing-map", Kind: KindAttr, Attr: "data-lng"},
}

// defaultGroups is the repeating-structure vocabulary.
var defaultGroups = []Group{
	{
		Name:       "review",
		Selector:   ".reviews-list .review",
		Cap:        ReviewCap,
		TotalField: "totalReviews",
		Attrs: []GroupAttr{
			{Name: "author", Selector: ".review-author", Kind: KindText},
			{Name: "date", Selector: ".review-date", Kind: KindText},
			{Name: "rating", Selector: ".review-rating", Kind: KindRatingClass},
			{Name: "text", Selector: ".review-text", Kind: KindText},
		},
	},
	{
		Name:       "photo",
		Selector:   ".photo-gallery .photo",
		Cap:        PhotoCap,
		TotalField: "totalPhotos",
		Attrs: []GroupAttr{
			{Name: "url", Selector: "img", Kind: KindPhotoURL},
			{Name: "caption", Selector: "img", Kind: KindAttr, Attr: "alt"},
		},
	},
	{
		Name:       "galleryPhoto",
		Selector:   ".media-gallery .media-item",
		Cap:        GalleryPhotoCap,
		TotalField: "totalGalleryPhotos",
		Attrs: []GroupAttr{
			{Name: "url", Selector: "img", Kind: KindPhotoURL},
		},
	},
}

// Default returns the built-in rule table.
func Default() *Set {
	return NewSet(defaultContainers, defaultRules, defaultGroups)
}

// FieldCount is a convenience for logging: scalar rules plus group totals.
func (s *Set) FieldCount() int {
	return len(s.rules) + len(s.groups)
}
