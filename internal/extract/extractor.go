package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/listing-harvester/internal/browser"
	"github.com/sells-group/listing-harvester/internal/model"
	"github.com/sells-group/listing-harvester/internal/rules"
)

// Extractor produces a Record from a rendered page, driven by the global
// schema at time of extraction. Fields absent on the page are omitted from
// the Record; the serializer backfills them.
type Extractor struct {
	set *rules.Set
}

// NewExtractor creates an Extractor over the same rule table the Detector
// uses.
func NewExtractor(set *rules.Set) *Extractor {
	return &Extractor{set: set}
}

// Extract computes a value for every schema field present on this page.
// Returns nil only when the content container cannot be located, mirroring
// Detect. A single field failing never aborts the rest of the record.
func (e *Extractor) Extract(page *browser.Page, fields []model.FieldID) *model.Record {
	container := e.set.ResolveContainer(page.Doc())
	if container == nil {
		return nil
	}

	rec := model.NewRecord(page.URL, 0)
	groups := newGroupCache()

	for _, id := range fields {
		v, err := e.extractField(container, groups, id)
		if err != nil {
			zap.L().Warn("extract: field failed",
				zap.String("url", page.URL),
				zap.String("field", string(id)),
				zap.Error(err),
			)
			continue
		}
		rec.Set(id, v)
	}
	return rec
}

// extractField dispatches one field to its rule. Unknown fields (known to
// the schema from other pages but with no rule here) resolve to null and
// are omitted. A panic inside a transform is converted to an error so one
// broken rule cannot take down the record.
func (e *Extractor) extractField(container *goquery.Selection, groups *groupCache, id model.FieldID) (v model.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			v = model.Null()
			err = eris.Errorf("extract: panic in field %s: %v", id, r)
		}
	}()

	if r, ok := e.set.RuleFor(id); ok {
		return extractScalar(container, r)
	}
	if g, ok := e.set.GroupForTotal(id); ok {
		n := groups.count(container, g)
		if n == 0 {
			return model.Null(), nil
		}
		// The real DOM match count, not the capped number materialized.
		return model.Number(float64(n)), nil
	}
	if g, idx, attr, ok := e.set.GroupField(id); ok {
		instances := groups.instances(container, g)
		if idx > instances.Length() {
			return model.Null(), nil
		}
		return extractGroupAttr(instances.Eq(idx-1), attr)
	}
	if token, ok := rules.GenericField(id); ok {
		el := rules.FindGeneric(container, token)
		if el == nil {
			return model.Null(), nil
		}
		return textValue(el.Text()), nil
	}
	return model.Null(), nil
}

// extractScalar applies a scalar rule's transform.
func extractScalar(container *goquery.Selection, r *rules.Rule) (model.Value, error) {
	sel := container.Find(r.Selector)
	if sel.Length() == 0 {
		return model.Null(), nil
	}
	el := sel.First()

	switch r.Kind {
	case rules.KindText:
		return textValue(el.Text()), nil
	case rules.KindAttr:
		return attrValue(el, r.Attr), nil
	case rules.KindJoinedList:
		return textValue(rules.JoinList(el, r.ItemSelector)), nil
	case rules.KindBool:
		// Presence of the element is the value, regardless of its text.
		return model.Boolean(true), nil
	case rules.KindRatingClass:
		return ratingValue(el, rules.DecodeRatingClass, "word-encoded")
	case rules.KindRatingDash:
		return ratingValue(el, rules.DecodeRatingDash, "numeric-dash")
	case rules.KindPhone:
		return textValue(rules.CleanPhone(el.Text())), nil
	case rules.KindPhotoURL:
		u, err := rules.ResolvePhotoURL(el)
		if err != nil {
			return model.Null(), err
		}
		return model.Text(u), nil
	default:
		return model.Null(), eris.Errorf("extract: unknown rule kind %d for %s", r.Kind, r.Field)
	}
}

// extractGroupAttr applies a group attribute's transform to one instance.
func extractGroupAttr(inst *goquery.Selection, attr *rules.GroupAttr) (model.Value, error) {
	target := inst
	if attr.Selector != "" {
		target = inst.Find(attr.Selector)
		if target.Length() == 0 {
			return model.Null(), nil
		}
		target = target.First()
	}

	switch attr.Kind {
	case rules.KindText:
		return textValue(target.Text()), nil
	case rules.KindAttr:
		return attrValue(target, attr.Attr), nil
	case rules.KindRatingClass:
		return ratingValue(target, rules.DecodeRatingClass, "word-encoded")
	case rules.KindRatingDash:
		return ratingValue(target, rules.DecodeRatingDash, "numeric-dash")
	case rules.KindPhotoURL:
		u, err := rules.ResolvePhotoURL(target)
		if err != nil {
			return model.Null(), err
		}
		return model.Text(u), nil
	default:
		return model.Null(), eris.Errorf("extract: unsupported group attr kind %d", attr.Kind)
	}
}

// textValue normalizes scalar text; empty means absent.
func textValue(s string) model.Value {
	s = rules.CollapseSpace(s)
	if s == "" {
		return model.Null()
	}
	return model.Text(s)
}

// attrValue reads a raw attribute; a missing or blank attribute is absent.
func attrValue(el *goquery.Selection, name string) model.Value {
	v, ok := el.Attr(name)
	if !ok || strings.TrimSpace(v) == "" {
		return model.Null()
	}
	return model.Text(v)
}

// ratingValue decodes a class-encoded rating. An element whose class lacks
// the expected encoding is an extraction error, not a silent miss: the
// detector saw the element, so a decode failure means the encoding drifted.
func ratingValue(el *goquery.Selection, decode func(string) (float64, bool), encoding string) (model.Value, error) {
	class, _ := el.Attr("class")
	if v, ok := decode(class); ok {
		return model.Number(v), nil
	}
	return model.Null(), eris.Errorf("extract: no %s rating in class %q", encoding, class)
}

// groupCache enumerates each group's instances at most once per page.
type groupCache struct {
	m map[string]*goquery.Selection
}

func newGroupCache() *groupCache {
	return &groupCache{m: make(map[string]*goquery.Selection)}
}

func (c *groupCache) instances(container *goquery.Selection, g *rules.Group) *goquery.Selection {
	if sel, ok := c.m[g.Name]; ok {
		return sel
	}
	sel := container.Find(g.Selector)
	c.m[g.Name] = sel
	return sel
}

func (c *groupCache) count(container *goquery.Selection, g *rules.Group) int {
	return c.instances(container, g).Length()
}
