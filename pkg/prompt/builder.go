// Package prompt renders generation requests into provider prompts.
package prompt

import (
	"strings"

	"github.com/plumbus-labs/plumbus/pkg/models"
)

// Brand colors. Every prompt names all three.
const (
	ColorPink  = "#ED829E"
	ColorCream = "#F6E8CB"
	ColorBrown = "#A36E4F"
)

// Prompt is the text sent to a provider.
type Prompt struct {
	Text     string `json:"text"`
	Negative string `json:"negative"`
}

var stylePhrases = map[models.Style]string{
	models.StyleRealistic: "photorealistic product photography with soft studio lighting",
	models.StyleCartoon:   "bright cartoon illustration with bold outlines",
	models.StyleTechnical: "technical blueprint diagram with labeled parts",
	models.StyleArtistic:  "artistic painterly rendering with expressive brush strokes",
	models.StyleSimple:    "simple clean design with minimal details",
}

var componentPhrases = map[models.Component]string{
	models.ComponentDinglebop: "a smooth rounded dinglebop",
	models.ComponentSchleem:   "a glistening layer of schleem",
	models.ComponentGrumbo:    "a sturdy grumbo at the base",
	models.ComponentFleeb:     "a fleeb rubbed against the body",
	models.ComponentChumbles:  "tiny chumbles along the side",
	models.ComponentBlamf:     "a blamf tucked behind",
	models.ComponentPloobis:   "a curved ploobis on top",
}

var variantPhrases = map[models.Variant]string{
	models.VariantStandard: "a standard household plumbus",
	models.VariantDeluxe:   "a deluxe plumbus with polished finish",
	models.VariantMini:     "a compact mini plumbus",
	models.VariantVintage:  "a vintage handcrafted plumbus",
}

var styleNegatives = map[models.Style]string{
	models.StyleRealistic: "cartoon, illustration, drawing",
	models.StyleCartoon:   "photorealistic, photograph",
	models.StyleTechnical: "photograph, painterly, shading",
	models.StyleArtistic:  "photograph, flat vector",
	models.StyleSimple:    "clutter, busy background, excessive detail, texture noise",
}

const baseNegative = "blurry, low quality, distorted, deformed, text, watermark, signature, extra limbs"

// Build renders req into a prompt. Unknown options use the default phrase
// for their table, so Build never fails.
func Build(req models.GenerationRequest) Prompt {
	req = req.Normalize()

	style, ok := stylePhrases[req.Style]
	if !ok {
		style = stylePhrases[models.StyleRealistic]
	}
	variant, ok := variantPhrases[req.Variant]
	if !ok {
		variant = variantPhrases[models.VariantStandard]
	}

	var b strings.Builder
	b.WriteString(variant)
	b.WriteString(", ")
	b.WriteString(style)

	parts := make([]string, 0, len(req.Components))
	for _, c := range req.Components {
		if p, ok := componentPhrases[c]; ok {
			parts = append(parts, p)
		}
	}
	if len(parts) > 0 {
		b.WriteString(", featuring ")
		b.WriteString(joinList(parts))
	}

	b.WriteString(", brand colors pink ")
	b.WriteString(ColorPink)
	b.WriteString(", cream ")
	b.WriteString(ColorCream)
	b.WriteString(" and brown ")
	b.WriteString(ColorBrown)
	b.WriteString(", centered on a plain background")

	negative := baseNegative
	if extra, ok := styleNegatives[req.Style]; ok {
		negative += ", " + extra
	}

	return Prompt{Text: b.String(), Negative: negative}
}

func joinList(parts []string) string {
	switch len(parts) {
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " and " + parts[1]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
}
