// Package fallback provides static images that render without any provider.
package fallback

import (
	_ "embed"
	"encoding/base64"
	"slices"
)

// DataURIPrefix starts every URI returned by SVG.
const DataURIPrefix = "data:image/svg+xml;base64,"

var (
	//go:embed plumbus.svg
	plumbusSVG []byte

	//go:embed placeholder.svg
	placeholderSVG []byte

	dataURI = DataURIPrefix + base64.StdEncoding.EncodeToString(plumbusSVG)
)

// SVG returns the plumbus illustration as a base64 data URI.
func SVG() string {
	return dataURI
}

// Raw returns a copy of the plumbus illustration.
func Raw() []byte {
	return slices.Clone(plumbusSVG)
}

// Placeholder returns a copy of the "image offline" placeholder.
func Placeholder() []byte {
	return slices.Clone(placeholderSVG)
}
