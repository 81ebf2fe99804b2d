package spatial

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// DecodeGeometry parses a GeoJSON geometry object into a go-geom geometry.
// Only Polygon and MultiPolygon are accepted; everything else is rejected at
// the connector boundary rather than passed through.
func DecodeGeometry(raw json.RawMessage) (geom.T, error) {
	if len(raw) == 0 {
		return nil, eris.New("spatial: empty geometry")
	}

	var g geom.T
	if err := geojson.Unmarshal(raw, &g); err != nil {
		return nil, eris.Wrap(err, "spatial: decode geometry")
	}

	switch g.(type) {
	case *geom.Polygon, *geom.MultiPolygon:
		return g, nil
	default:
		return nil, eris.Errorf("spatial: unsupported geometry type %T", g)
	}
}

// EncodeGeometry renders a geometry back to GeoJSON for persistence.
func EncodeGeometry(g geom.T) (json.RawMessage, error) {
	data, err := geojson.Marshal(g)
	if err != nil {
		return nil, eris.Wrap(err, "spatial: encode geometry")
	}
	return data, nil
}
