package ogc

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
)

// BBox is a geographic bounding box in EPSG:4326.
type BBox struct {
	MinLng float64 `json:"min_lng"`
	MinLat float64 `json:"min_lat"`
	MaxLng float64 `json:"max_lng"`
	MaxLat float64 `json:"max_lat"`
}

// String renders the bbox in lon,lat axis order as WFS and OGC API expect.
func (b BBox) String() string {
	return fmt.Sprintf("%f,%f,%f,%f", b.MinLng, b.MinLat, b.MaxLng, b.MaxLat)
}

// Contains reports whether the point falls inside the box.
func (b BBox) Contains(lng, lat float64) bool {
	return lng >= b.MinLng && lng <= b.MaxLng && lat >= b.MinLat && lat <= b.MaxLat
}

// PointBuffer returns a bbox of ±delta degrees around a point.
func PointBuffer(lng, lat, delta float64) BBox {
	return BBox{
		MinLng: lng - delta,
		MinLat: lat - delta,
		MaxLng: lng + delta,
		MaxLat: lat + delta,
	}
}

// Feature is a GeoJSON feature as returned by WFS, OGC API Features, and
// ArcGIS REST in geojson mode.
type Feature struct {
	ID         any             `json:"id,omitempty"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// StringProp returns a property coerced to string, or "" when absent.
func (f Feature) StringProp(key string) string {
	v, ok := f.Properties[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// FloatProp returns a numeric property, or 0 and false when absent.
func (f Feature) FloatProp(key string) (float64, bool) {
	v, ok := f.Properties[key]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	default:
		return 0, false
	}
}

// FeatureCollection is the GeoJSON response envelope. Validate rejects
// payloads that are not feature collections instead of passing raw objects
// through.
type FeatureCollection struct {
	Type           string    `json:"type"`
	Features       []Feature `json:"features"`
	NumberReturned int       `json:"numberReturned,omitempty"`
}

// Validate checks the envelope's discriminator.
func (fc *FeatureCollection) Validate() error {
	if fc.Type != "FeatureCollection" {
		return eris.Errorf("ogc: expected FeatureCollection, got %q", fc.Type)
	}
	return nil
}
