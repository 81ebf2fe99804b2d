// Package zoning resolves the planning classification of a point from the
// national and regional zoning services of Portugal, Spain, and Germany.
package zoning

import "context"

// ZoningInfo is the merged zoning classification at a point. Label is the
// working value and may be translated; once Translated is set LabelOriginal
// holds the untranslated designation and must not change again.
type ZoningInfo struct {
	Label         string  `json:"label"`
	LabelOriginal string  `json:"label_original,omitempty"`
	Translated    bool    `json:"translated"`
	Confidence    float64 `json:"translation_confidence,omitempty"`
	LandCover     string  `json:"land_cover,omitempty"`
	Parish        string  `json:"parish,omitempty"`
	Region        string  `json:"region,omitempty"`
	Source        string  `json:"source,omitempty"`
}

// Resolver resolves zoning at a coordinate. A nil info with nil error means
// no zoning source covers the point.
type Resolver interface {
	ResolveZoning(ctx context.Context, lat, lng float64) (*ZoningInfo, error)
}
