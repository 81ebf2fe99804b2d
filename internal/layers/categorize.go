package layers

import "strings"

// Semantic buckets for categorized layer results.
const (
	CategoryAdministrative = "administrative"
	CategoryCadastre       = "cadastre"
	CategoryZoning         = "zoning"
	CategoryLandUse        = "landuse"
	CategoryElevation      = "elevation"
	CategoryOther          = "other"
)

// CategorizeLayers buckets results by the category segment of the layer ID
// (the part after the country prefix). Results keep their catalog order
// within each bucket.
func CategorizeLayers(results []LayerResult) map[string][]LayerResult {
	out := make(map[string][]LayerResult)
	for _, r := range results {
		c := categoryOf(r.LayerID)
		out[c] = append(out[c], r)
	}
	return out
}

func categoryOf(id string) string {
	parts := strings.SplitN(id, "-", 3)
	if len(parts) < 2 {
		return CategoryOther
	}
	switch parts[1] {
	case "admin":
		return CategoryAdministrative
	case "cadastre":
		return CategoryCadastre
	case "zoning":
		return CategoryZoning
	case "landuse":
		return CategoryLandUse
	case "elevation":
		return CategoryElevation
	}
	return CategoryOther
}
