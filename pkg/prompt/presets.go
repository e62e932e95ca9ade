package prompt

import (
	"slices"

	"github.com/plumbus-labs/plumbus/pkg/models"
)

var presets = map[string]models.GenerationRequest{
	"hero": {
		Style:      models.StyleRealistic,
		Components: models.Components,
		Size:       models.Size{Width: 1024, Height: 768},
		Variant:    models.VariantDeluxe,
	},
	"featureCard": {
		Style:      models.StyleArtistic,
		Components: []models.Component{models.ComponentDinglebop, models.ComponentSchleem, models.ComponentFleeb},
		Size:       models.Size{Width: 512, Height: 512},
		Variant:    models.VariantStandard,
	},
	"iconSize": {
		Style:      models.StyleSimple,
		Components: []models.Component{models.ComponentGrumbo, models.ComponentDinglebop},
		Size:       models.Size{Width: 64, Height: 64},
		Variant:    models.VariantStandard,
	},
	"pricingCard": {
		Style:      models.StyleCartoon,
		Components: []models.Component{models.ComponentDinglebop, models.ComponentGrumbo, models.ComponentPloobis},
		Size:       models.Size{Width: 384, Height: 384},
		Variant:    models.VariantMini,
	},
	"testimonial": {
		Style:      models.StyleTechnical,
		Components: []models.Component{models.ComponentSchleem, models.ComponentChumbles},
		Size:       models.Size{Width: 256, Height: 256},
		Variant:    models.VariantVintage,
	},
}

// Preset returns the named request.
func Preset(name string) (models.GenerationRequest, bool) {
	p, ok := presets[name]
	if !ok {
		return models.GenerationRequest{}, false
	}
	p.Components = slices.Clone(p.Components)
	return p, true
}

// PresetNames returns all preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
