// Package cadastre resolves the official land parcel under a coordinate from
// the Portuguese and Spanish cadastral services. Queries run through
// progressive buffer expansion and a deterministic best-candidate selection,
// so every lookup yields at most one parcel.
package cadastre

import (
	"context"
	"encoding/json"

	"github.com/twpayne/go-geom"
)

// Point is an EPSG:4326 coordinate pair.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// CadastralInfo is a resolved parcel. ContainsPoint=true implies
// DistanceMeters=0.
type CadastralInfo struct {
	CadastralReference string          `json:"cadastral_reference"`
	AreaM2             float64         `json:"area_m2,omitempty"`
	Geometry           json.RawMessage `json:"geometry,omitempty"`
	Centroid           *Point          `json:"centroid,omitempty"`
	DistanceMeters     float64         `json:"distance_meters"`
	ContainsPoint      bool            `json:"contains_point"`
	Source             string          `json:"source"`
	ServiceURL         string          `json:"service_url,omitempty"`
}

// Candidate is one feature from a spatial query, decoded far enough for
// selection.
type Candidate struct {
	Reference string
	AreaM2    float64
	Geometry  geom.T
	Raw       json.RawMessage
}

// Resolver finds the parcel at a coordinate. A nil result with nil error
// means no parcel is registered there.
type Resolver interface {
	ResolveParcel(ctx context.Context, lat, lng float64) (*CadastralInfo, error)
}
