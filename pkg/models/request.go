package models

import (
	"fmt"
	"slices"

	"github.com/samber/lo"
)

// Style selects the overall rendering look of a generated image.
type Style string

const (
	StyleRealistic Style = "realistic"
	StyleCartoon   Style = "cartoon"
	StyleTechnical Style = "technical"
	StyleArtistic  Style = "artistic"
	StyleSimple    Style = "simple"
)

// Styles lists every supported style.
var Styles = []Style{StyleRealistic, StyleCartoon, StyleTechnical, StyleArtistic, StyleSimple}

// Component is a visible part of a plumbus.
type Component string

const (
	ComponentDinglebop Component = "dinglebop"
	ComponentSchleem   Component = "schleem"
	ComponentGrumbo    Component = "grumbo"
	ComponentFleeb     Component = "fleeb"
	ComponentChumbles  Component = "chumbles"
	ComponentBlamf     Component = "blamf"
	ComponentPloobis   Component = "ploobis"
)

// Components lists every supported component.
var Components = []Component{
	ComponentDinglebop, ComponentSchleem, ComponentGrumbo, ComponentFleeb,
	ComponentChumbles, ComponentBlamf, ComponentPloobis,
}

// Variant is the product line being depicted.
type Variant string

const (
	VariantStandard Variant = "standard"
	VariantDeluxe   Variant = "deluxe"
	VariantMini     Variant = "mini"
	VariantVintage  Variant = "vintage"
)

// Variants lists every supported variant.
var Variants = []Variant{VariantStandard, VariantDeluxe, VariantMini, VariantVintage}

// Size is an image size in pixels.
type Size struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// DefaultSize is used when a request carries no size.
var DefaultSize = Size{Width: 512, Height: 512}

// MaxDimension bounds either side of a requested image.
const MaxDimension = 2048

// GenerationRequest describes the image to generate. Two requests with the
// same canonical form share a cache entry.
type GenerationRequest struct {
	Style      Style       `json:"style" yaml:"style"`
	Components []Component `json:"components" yaml:"components"`
	Size       Size        `json:"size" yaml:"size"`
	Variant    Variant     `json:"variant" yaml:"variant"`
}

// Normalize fills defaults and returns components sorted and de-duplicated.
// The receiver is not modified.
func (r GenerationRequest) Normalize() GenerationRequest {
	out := GenerationRequest{
		Style:      r.Style,
		Components: SortedComponents(r.Components),
		Size:       r.Size,
		Variant:    r.Variant,
	}
	if out.Style == "" {
		out.Style = StyleRealistic
	}
	if out.Variant == "" {
		out.Variant = VariantStandard
	}
	if out.Size.Width <= 0 || out.Size.Height <= 0 {
		out.Size = DefaultSize
	}
	return out
}

// Validate reports the first unsupported option in the request.
func (r GenerationRequest) Validate() error {
	if r.Style != "" && !slices.Contains(Styles, r.Style) {
		return fmt.Errorf("unknown style %q", r.Style)
	}
	if r.Variant != "" && !slices.Contains(Variants, r.Variant) {
		return fmt.Errorf("unknown variant %q", r.Variant)
	}
	for _, c := range r.Components {
		if !slices.Contains(Components, c) {
			return fmt.Errorf("unknown component %q", c)
		}
	}
	if r.Size.Width < 0 || r.Size.Height < 0 || r.Size.Width > MaxDimension || r.Size.Height > MaxDimension {
		return fmt.Errorf("size %s out of range (max %d)", r.Size, MaxDimension)
	}
	return nil
}

// SortedComponents returns a sorted copy of cs without duplicates.
func SortedComponents(cs []Component) []Component {
	out := lo.Uniq(cs)
	slices.Sort(out)
	return out
}
