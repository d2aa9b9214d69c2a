// Package rules holds the declarative detection/extraction rule table for
// directory detail pages. One table drives both the field detector and the
// field extractor, so presence and extraction can never disagree about
// which DOM node carries a field.
package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/listing-harvester/internal/model"
)

// Kind selects the extraction transform applied to a matched element.
type Kind int

const (
	// KindText extracts trimmed inner text; empty text means absent.
	KindText Kind = iota
	// KindAttr extracts a raw attribute string.
	KindAttr
	// KindJoinedList joins matching child elements' text with "; ".
	KindJoinedList
	// KindBool is true iff the selector matches at least one element,
	// independent of text content.
	KindBool
	// KindRatingClass decodes a word-encoded rating from the element's
	// class attribute (e.g. "result-rating four_half" -> 4.5).
	KindRatingClass
	// KindRatingDash decodes a numeric-dash rating from the element's
	// class attribute (e.g. "ta-4-5" -> 4.5). Not interchangeable with
	// KindRatingClass: each applies to its own rating source.
	KindRatingDash
	// KindPhone extracts text with trailing action-verb suffixes
	// ("Call", "Text", "SMS", "Message") stripped.
	KindPhone
	// KindPhotoURL resolves a full-resolution image URL from a structured
	// data attribute, a plain data-url attribute, or a thumbnail src.
	KindPhotoURL
)

// Rule maps one scalar field to its selector and transform.
type Rule struct {
	Field        model.FieldID
	Selector     string
	Kind         Kind
	Attr         string // attribute name for KindAttr
	ItemSelector string // child item selector for KindJoinedList
}

// GroupAttr is one per-instance extraction within a repeating group.
type GroupAttr struct {
	Name     string // field suffix: <group><N>_<name>
	Selector string // within the instance; empty means the instance itself
	Kind     Kind
	Attr     string
}

// Group describes a repeating structure (reviews, photos). Instances are
// materialized as columns up to Cap; TotalField records the real DOM match
// count even beyond the cap.
type Group struct {
	Name       string // instance field prefix, must not contain digits
	Selector   string
	Cap        int
	TotalField model.FieldID
	Attrs      []GroupAttr
}

// Set is the full rule table plus the container-resolution chain, with
// lookup indexes for schema-driven extraction.
type Set struct {
	containers []string
	rules      []Rule
	groups     []Group

	byField      map[model.FieldID]*Rule
	groupByName  map[string]*Group
	groupByTotal map[model.FieldID]*Group
}

// NewSet builds a Set with indexed lookups.
func NewSet(containers []string, rules []Rule, groups []Group) *Set {
	s := &Set{
		containers:   containers,
		rules:        rules,
		groups:       groups,
		byField:      make(map[model.FieldID]*Rule, len(rules)),
		groupByName:  make(map[string]*Group, len(groups)),
		groupByTotal: make(map[model.FieldID]*Group, len(groups)),
	}
	for i := range s.rules {
		r := &s.rules[i]
		s.byField[r.Field] = r
	}
	for i := range s.groups {
		g := &s.groups[i]
		s.groupByName[g.Name] = g
		s.groupByTotal[g.TotalField] = g
	}
	return s
}

// Rules returns the scalar rule table in declaration order.
func (s *Set) Rules() []Rule { return s.rules }

// Groups returns the repeating-group table in declaration order.
func (s *Set) Groups() []Group { return s.groups }

// RuleFor returns the scalar rule registered for a field.
func (s *Set) RuleFor(id model.FieldID) (*Rule, bool) {
	r, ok := s.byField[id]
	return r, ok
}

// GroupForTotal returns the group whose total-count field this is.
func (s *Set) GroupForTotal(id model.FieldID) (*Group, bool) {
	g, ok := s.groupByTotal[id]
	return g, ok
}

// groupFieldRe parses synthesized group fields: <group><index>_<attr>.
var groupFieldRe = regexp.MustCompile(`^([a-zA-Z]+)(\d+)_([A-Za-z][A-Za-z0-9]*)$`)

// GroupField resolves a synthesized field like "review3_rating" into its
// group, 1-based instance index, and attribute definition.
func (s *Set) GroupField(id model.FieldID) (*Group, int, *GroupAttr, bool) {
	m := groupFieldRe.FindStringSubmatch(string(id))
	if m == nil {
		return nil, 0, nil, false
	}
	g, ok := s.groupByName[m[1]]
	if !ok {
		return nil, 0, nil, false
	}
	idx := 0
	for _, c := range m[2] {
		idx = idx*10 + int(c-'0')
	}
	if idx < 1 || idx > g.Cap {
		return nil, 0, nil, false
	}
	for i := range g.Attrs {
		if g.Attrs[i].Name == m[3] {
			return g, idx, &g.Attrs[i], true
		}
	}
	return nil, 0, nil, false
}

// InstanceField synthesizes the FieldID for one group instance attribute.
func InstanceField(g *Group, idx int, attr string) model.FieldID {
	return model.FieldID(fmt.Sprintf("%s%d_%s", g.Name, idx, attr))
}

// ResolveContainer walks the prioritized container chain and returns the
// first matching element, or nil when the page shape is not recognized.
// Detector and Extractor both resolve through here.
func (s *Set) ResolveContainer(doc *goquery.Document) *goquery.Selection {
	for _, sel := range s.containers {
		if found := doc.Find(sel); found.Length() > 0 {
			return found.First()
		}
	}
	return nil
}

const genericPrefix = "section_"

// GenericCaptureIDs enumerates container elements carrying an id or class
// attribute and synthesizes one field per distinct container, bounded by
// max. This is the forward-compatibility net for unanticipated page
// sections; it is noisy and gated behind configuration.
func GenericCaptureIDs(container *goquery.Selection, max int) []model.FieldID {
	var ids []model.FieldID
	seen := make(map[model.FieldID]bool)

	container.Find("section, div[id], div[class]").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		token := genericToken(el)
		if token == "" {
			return true
		}
		id := model.FieldID(genericPrefix + token)
		if seen[id] {
			return true
		}
		seen[id] = true
		ids = append(ids, id)
		return len(ids) < max
	})
	return ids
}

// GenericField reports whether a field was synthesized by generic capture
// and returns its container token.
func GenericField(id model.FieldID) (string, bool) {
	if !strings.HasPrefix(string(id), genericPrefix) {
		return "", false
	}
	return strings.TrimPrefix(string(id), genericPrefix), true
}

var tokenCleanRe = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// genericToken derives the field token from an element's id, or first
// class when no id is set.
func genericToken(el *goquery.Selection) string {
	if v, ok := el.Attr("id"); ok && v != "" {
		return tokenCleanRe.ReplaceAllString(v, "_")
	}
	if v, ok := el.Attr("class"); ok {
		if first := strings.Fields(v); len(first) > 0 {
			return tokenCleanRe.ReplaceAllString(first[0], "_")
		}
	}
	return ""
}

// FindGeneric locates the container element a generic-capture field was
// synthesized from: id match first, then class match.
func FindGeneric(container *goquery.Selection, token string) *goquery.Selection {
	var found *goquery.Selection
	container.Find("section, div[id], div[class]").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if genericToken(el) == token {
			found = el
			return false
		}
		return true
	})
	return found
}
