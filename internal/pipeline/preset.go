package pipeline

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/enrich"
	"github.com/sells-group/leadgen-cli/internal/query"
)

// AdapterKind selects the result provider of a preset.
type AdapterKind string

// Adapter kinds.
const (
	AdapterMaps   AdapterKind = "maps"
	AdapterPlaces AdapterKind = "places"
	AdapterXRay   AdapterKind = "xray"
	AdapterFile   AdapterKind = "file"
)

// ExpanderKind selects how an intent becomes queries.
type ExpanderKind string

// Expander kinds.
const (
	ExpandTemplate ExpanderKind = "template"
	ExpandCatalog  ExpanderKind = "catalog"
	ExpandXRay     ExpanderKind = "xray"
	ExpandFile     ExpanderKind = "file"
)

// Preset is a named combination of expander, provider and enrichment
// steps.
type Preset struct {
	Name     string
	Prefix   string
	Adapter  AdapterKind
	Expander ExpanderKind
	Template string
	Steps    []string
	// Theme names the report style. Empty means no report.
	Theme string
}

// Presets are the built-in run variants.
var Presets = map[string]Preset{
	"maps": {
		Name: "maps", Prefix: "leads",
		Adapter: AdapterMaps, Expander: ExpandTemplate, Template: query.TemplateSpace,
		Steps: []string{enrich.StepContact},
	},
	"places": {
		Name: "places", Prefix: "places_leads",
		Adapter: AdapterPlaces, Expander: ExpandTemplate, Template: query.TemplateSpace,
		Steps: []string{enrich.StepContact},
	},
	"email": {
		Name: "email", Prefix: "leads",
		Adapter: AdapterMaps, Expander: ExpandTemplate, Template: query.TemplateSpace,
		Steps: []string{enrich.StepContact, enrich.StepEmailSearch, enrich.StepClassify},
	},
	"b2b": {
		Name: "b2b", Prefix: "b2b_leads",
		Adapter: AdapterMaps, Expander: ExpandTemplate, Template: query.TemplateIn,
		Steps: []string{enrich.StepContact, enrich.StepDecisionMaker, enrich.StepClassify},
		Theme: "b2b",
	},
	"xray": {
		Name: "xray", Prefix: "linkedin_leads",
		Adapter: AdapterXRay, Expander: ExpandXRay,
		Theme: "linkedin",
	},
	"catalog": {
		Name: "catalog", Prefix: "catalog_leads",
		Adapter: AdapterMaps, Expander: ExpandCatalog,
		Steps: []string{enrich.StepContact, enrich.StepEmailSearch, enrich.StepClassify},
	},
	"analyze": {
		Name: "analyze", Prefix: "analyzed",
		Adapter: AdapterFile, Expander: ExpandFile,
		Steps: []string{enrich.StepPitch},
		Theme: "report",
	},
}

// LookupPreset returns the named preset.
func LookupPreset(name string) (Preset, error) {
	p, ok := Presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Preset{}, eris.Errorf("pipeline: unknown preset %q (want one of %s)", name, strings.Join(PresetNames(), ", "))
	}
	return p, nil
}

// PresetNames returns the preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for n := range Presets {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
