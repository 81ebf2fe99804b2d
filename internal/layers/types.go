// Package layers fans a coordinate out to every geospatial layer applicable
// to its country and collects the answers into a uniform result list.
package layers

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/terrafind/enrich-cli/pkg/ogc"
)

// Coordinate is a WGS84 point.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate rejects coordinates outside the WGS84 domain.
func (c Coordinate) Validate() error {
	if c.Latitude < -90 || c.Latitude > 90 {
		return eris.Errorf("layers: latitude %f out of range", c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return eris.Errorf("layers: longitude %f out of range", c.Longitude)
	}
	return nil
}

// Request asks for all layers at a point. AreaM2 widens the query box to
// roughly the plot's footprint; Polygon, when present, wins over AreaM2.
type Request struct {
	Coordinate
	Country string          `json:"country"`
	AreaM2  float64         `json:"area_m2,omitempty"`
	Polygon json.RawMessage `json:"polygon,omitempty"`
}

// LayerResult is one layer's answer. A connector failure sets Error and
// leaves Found false; it never aborts the surrounding query.
type LayerResult struct {
	LayerID    string         `json:"layer_id"`
	LayerName  string         `json:"layer_name"`
	Found      bool           `json:"found"`
	Value      string         `json:"value,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// LayerQueryResponse is the aggregate answer for one point. BoundingBox is
// the query box derived from AreaM2 when no explicit polygon was supplied.
type LayerQueryResponse struct {
	Location    Coordinate      `json:"location"`
	Country     string          `json:"country"`
	Layers      []LayerResult   `json:"layers"`
	AreaM2      float64         `json:"area_m2,omitempty"`
	BoundingBox *ogc.BBox       `json:"bounding_box,omitempty"`
	Polygon     json.RawMessage `json:"polygon,omitempty"`
	QueriedAt   time.Time       `json:"queried_at"`
}
