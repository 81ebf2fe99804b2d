package ogc

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// BuildGetFeature builds a WFS 2.0 GetFeature URL with a bbox filter and
// GeoJSON output.
func BuildGetFeature(endpoint, typeNames string, bbox BBox, maxFeatures int) string {
	params := url.Values{}
	params.Set("service", "WFS")
	params.Set("version", "2.0.0")
	params.Set("request", "GetFeature")
	params.Set("typeNames", typeNames)
	params.Set("bbox", bbox.String()+",EPSG:4326")
	params.Set("srsName", "EPSG:4326")
	params.Set("outputFormat", "application/json")
	if maxFeatures > 0 {
		params.Set("count", fmt.Sprintf("%d", maxFeatures))
	}
	return joinParams(endpoint, params)
}

// BuildGetFeatureInfo builds a WMS 1.1.1 GetFeatureInfo URL probing the pixel
// at the center of a small box around the point. Version 1.1.1 keeps lon,lat
// axis order for EPSG:4326, which the Portuguese WMS servers expect.
func BuildGetFeatureInfo(endpoint, layer string, lng, lat float64) string {
	const (
		size  = 101
		delta = 0.001
	)
	bbox := PointBuffer(lng, lat, delta)

	params := url.Values{}
	params.Set("service", "WMS")
	params.Set("version", "1.1.1")
	params.Set("request", "GetFeatureInfo")
	params.Set("layers", layer)
	params.Set("query_layers", layer)
	params.Set("styles", "")
	params.Set("srs", "EPSG:4326")
	params.Set("bbox", bbox.String())
	params.Set("width", fmt.Sprintf("%d", size))
	params.Set("height", fmt.Sprintf("%d", size))
	params.Set("x", fmt.Sprintf("%d", size/2))
	params.Set("y", fmt.Sprintf("%d", size/2))
	params.Set("info_format", "application/json")
	params.Set("feature_count", "5")
	return joinParams(endpoint, params)
}

// BuildItemsURL builds an OGC API Features items query with a bbox filter.
func BuildItemsURL(endpoint, collection string, bbox BBox, limit int) string {
	base := strings.TrimRight(endpoint, "/")
	params := url.Values{}
	params.Set("bbox", bbox.String())
	params.Set("f", "json")
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	return fmt.Sprintf("%s/collections/%s/items?%s", base, url.PathEscape(collection), params.Encode())
}

// BuildArcGISEnvelopeQuery builds an ArcGIS REST layer query intersecting an
// envelope, asking for GeoJSON output.
func BuildArcGISEnvelopeQuery(endpoint string, bbox BBox) string {
	params := url.Values{}
	params.Set("geometry", bbox.String())
	params.Set("geometryType", "esriGeometryEnvelope")
	params.Set("inSR", "4326")
	params.Set("outSR", "4326")
	params.Set("spatialRel", "esriSpatialRelIntersects")
	params.Set("outFields", "*")
	params.Set("returnGeometry", "true")
	params.Set("f", "geojson")
	return joinParams(strings.TrimRight(endpoint, "/")+"/query", params)
}

// BuildArcGISPointQuery builds an ArcGIS REST layer query intersecting a
// point.
func BuildArcGISPointQuery(endpoint string, lng, lat float64) string {
	params := url.Values{}
	params.Set("geometry", fmt.Sprintf("%f,%f", lng, lat))
	params.Set("geometryType", "esriGeometryPoint")
	params.Set("inSR", "4326")
	params.Set("outSR", "4326")
	params.Set("spatialRel", "esriSpatialRelIntersects")
	params.Set("outFields", "*")
	params.Set("returnGeometry", "true")
	params.Set("f", "geojson")
	return joinParams(strings.TrimRight(endpoint, "/")+"/query", params)
}

// GetFeatures fetches and validates a feature collection from any of the
// GeoJSON-speaking endpoints above.
func (r *Registry) GetFeatures(ctx context.Context, rawURL string) (*FeatureCollection, error) {
	var fc FeatureCollection
	if err := r.GetJSON(ctx, rawURL, &fc); err != nil {
		return nil, err
	}
	if err := fc.Validate(); err != nil {
		return nil, err
	}
	return &fc, nil
}

func joinParams(endpoint string, params url.Values) string {
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + params.Encode()
}
