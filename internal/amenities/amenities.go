// Package amenities measures the distance from a plot to nearby points of
// interest using OpenStreetMap data. One combined Overpass query fetches all
// categories in a single round trip.
package amenities

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/terrafind/enrich-cli/internal/spatial"
	"github.com/terrafind/enrich-cli/pkg/overpass"
)

// DefaultRadiusMeters is the search radius around the plot.
const DefaultRadiusMeters = 10_000

// Categories in presentation order.
const (
	CategoryCoastline       = "coastline"
	CategoryBeach           = "beach"
	CategoryAirport         = "airport"
	CategoryTown            = "town"
	CategoryPublicTransport = "public_transport"
	CategorySupermarket     = "supermarket"
	CategoryConvenience     = "convenience"
	CategoryRestaurant      = "restaurant"
	CategoryCafe            = "cafe"
)

// AllCategories lists every category the combined query covers.
var AllCategories = []string{
	CategoryCoastline,
	CategoryBeach,
	CategoryAirport,
	CategoryTown,
	CategoryPublicTransport,
	CategorySupermarket,
	CategoryConvenience,
	CategoryRestaurant,
	CategoryCafe,
}

// Amenity is the nearest feature of one category.
type Amenity struct {
	Category       string  `json:"category"`
	Name           string  `json:"name,omitempty"`
	DistanceMeters float64 `json:"distance_meters"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	OSMType        string  `json:"osm_type"`
	OSMID          int64   `json:"osm_id"`
}

// Info maps category to its nearest amenity. Categories with nothing in
// range are absent.
type Info struct {
	RadiusMeters int                 `json:"radius_meters"`
	Nearest      map[string]*Amenity `json:"nearest"`
}

// Service finds nearby amenities through Overpass.
type Service struct {
	client overpass.Client
	radius int
}

// NewService creates the amenities service. radius <= 0 uses the default.
func NewService(client overpass.Client, radius int) *Service {
	if radius <= 0 {
		radius = DefaultRadiusMeters
	}
	return &Service{client: client, radius: radius}
}

// Nearby runs the combined query and reduces each category to its nearest
// feature.
func (s *Service) Nearby(ctx context.Context, lat, lng float64) (*Info, error) {
	resp, err := s.client.Query(ctx, buildQuery(lat, lng, s.radius))
	if err != nil {
		return nil, eris.Wrap(err, "amenities: overpass query")
	}

	info := &Info{
		RadiusMeters: s.radius,
		Nearest:      make(map[string]*Amenity),
	}
	for _, el := range resp.Elements {
		cat := categorize(el.Tags)
		if cat == "" {
			continue
		}
		a := nearestPoint(cat, el, lat, lng)
		if a == nil {
			continue
		}
		if best, ok := info.Nearest[cat]; !ok || a.DistanceMeters < best.DistanceMeters {
			info.Nearest[cat] = a
		}
	}

	zap.L().Debug("amenities resolved",
		zap.Float64("lat", lat), zap.Float64("lng", lng),
		zap.Int("categories_found", len(info.Nearest)))
	return info, nil
}

// buildQuery assembles one Overpass QL statement covering every category.
// Ways are fetched with geometry so distance can consider each vertex.
func buildQuery(lat, lng float64, radius int) string {
	around := fmt.Sprintf("(around:%d,%f,%f)", radius, lat, lng)

	var b strings.Builder
	b.WriteString("[out:json][timeout:60];\n(\n")
	for _, sel := range []string{
		`way["natural"="coastline"]`,
		`node["natural"="beach"]`,
		`way["natural"="beach"]`,
		`node["aeroway"="aerodrome"]`,
		`way["aeroway"="aerodrome"]`,
		`node["place"~"^(town|city)$"]`,
		`node["public_transport"="station"]`,
		`node["railway"="station"]`,
		`node["highway"="bus_stop"]`,
		`node["shop"="supermarket"]`,
		`way["shop"="supermarket"]`,
		`node["shop"="convenience"]`,
		`node["amenity"~"^(restaurant|fast_food)$"]`,
		`node["amenity"="cafe"]`,
	} {
		b.WriteString("  ")
		b.WriteString(sel)
		b.WriteString(around)
		b.WriteString(";\n")
	}
	b.WriteString(");\nout tags geom;")
	return b.String()
}

// categorize buckets an element by its OSM tags. Unrecognized elements are
// dropped.
func categorize(tags map[string]string) string {
	switch {
	case tags["natural"] == "coastline":
		return CategoryCoastline
	case tags["natural"] == "beach":
		return CategoryBeach
	case tags["aeroway"] == "aerodrome":
		return CategoryAirport
	case tags["place"] == "town" || tags["place"] == "city":
		return CategoryTown
	case tags["public_transport"] == "station",
		tags["railway"] == "station",
		tags["highway"] == "bus_stop":
		return CategoryPublicTransport
	case tags["shop"] == "supermarket":
		return CategorySupermarket
	case tags["shop"] == "convenience":
		return CategoryConvenience
	case tags["amenity"] == "restaurant" || tags["amenity"] == "fast_food":
		return CategoryRestaurant
	case tags["amenity"] == "cafe":
		return CategoryCafe
	}
	return ""
}

// nearestPoint measures the element's closest point to the plot. Nodes are
// single points; for ways every vertex is considered, so a sparsely drawn
// way understates the distance to its interior edges.
func nearestPoint(category string, el overpass.Element, lat, lng float64) *Amenity {
	a := &Amenity{
		Category: category,
		Name:     el.Tags["name"],
		OSMType:  el.Type,
		OSMID:    el.ID,
	}

	switch el.Type {
	case "node":
		a.Latitude = el.Lat
		a.Longitude = el.Lon
		a.DistanceMeters = spatial.Haversine(lng, lat, el.Lon, el.Lat)
	case "way":
		if len(el.Geometry) == 0 {
			return nil
		}
		best := -1.0
		for _, v := range el.Geometry {
			d := spatial.Haversine(lng, lat, v.Lon, v.Lat)
			if best < 0 || d < best {
				best = d
				a.Latitude = v.Lat
				a.Longitude = v.Lon
			}
		}
		a.DistanceMeters = best
	default:
		return nil
	}
	return a
}
