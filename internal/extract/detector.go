// Package extract implements field detection and schema-driven value
// extraction for detail pages. Both sides consume the same rule table and
// resolve the content container through the same chain, so presence and
// extraction always agree about which DOM node is the business's content.
package extract

import (
	"go.uber.org/zap"

	"github.com/sells-group/listing-harvester/internal/browser"
	"github.com/sells-group/listing-harvester/internal/model"
	"github.com/sells-group/listing-harvester/internal/rules"
)

// DetectorOptions configures detection behavior.
type DetectorOptions struct {
	// GenericCapture enables the forward-compatibility fallback that
	// synthesizes a field per container element with an id or class.
	// Produces large, low-signal schemas; off by default.
	GenericCapture bool
	// GenericCaptureMax bounds the generic capture per page.
	GenericCaptureMax int
}

// Detector inspects a rendered detail page and reports which fields it
// exposes. Presence only; no value extraction happens here.
type Detector struct {
	set        *rules.Set
	generic    bool
	genericMax int
}

// NewDetector creates a Detector over a rule table.
func NewDetector(set *rules.Set, opts DetectorOptions) *Detector {
	max := opts.GenericCaptureMax
	if max <= 0 {
		max = 50
	}
	return &Detector{set: set, generic: opts.GenericCapture, genericMax: max}
}

// Detect returns the page's presence map, or nil when no container in the
// resolution chain matches ("page shape not recognized"). A nil result
// means zero fields learned from this page, not an error.
func (d *Detector) Detect(page *browser.Page) *model.PresenceMap {
	container := d.set.ResolveContainer(page.Doc())
	if container == nil {
		zap.L().Warn("detect: no content container", zap.String("url", page.URL))
		return nil
	}

	pm := model.NewPresenceMap()

	for _, r := range d.set.Rules() {
		if container.Find(r.Selector).Length() > 0 {
			pm.Add(r.Field)
		}
	}

	for _, g := range d.set.Groups() {
		instances := container.Find(g.Selector)
		n := instances.Length()
		if n == 0 {
			continue
		}
		limit := n
		if limit > g.Cap {
			limit = g.Cap
		}
		for i := 0; i < limit; i++ {
			inst := instances.Eq(i)
			for _, attr := range g.Attrs {
				target := inst
				if attr.Selector != "" {
					target = inst.Find(attr.Selector)
				}
				if target.Length() > 0 {
					pm.Add(rules.InstanceField(&g, i+1, attr.Name))
				}
			}
		}
		pm.Add(g.TotalField)
	}

	if d.generic {
		for _, id := range rules.GenericCaptureIDs(container, d.genericMax) {
			pm.Add(id)
		}
	}

	return pm
}
