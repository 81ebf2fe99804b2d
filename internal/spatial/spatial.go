// Package spatial holds the pure geometry primitives used by parcel
// selection and the amenities engine: great-circle distance, vertex
// centroids, and a ray-casting point-in-polygon test. No I/O.
package spatial

import (
	"math"

	"github.com/twpayne/go-geom"
)

// earthRadiusM is the mean Earth radius in meters.
const earthRadiusM = 6371000.0

// Haversine returns the great-circle distance in meters between two
// EPSG:4326 points.
func Haversine(lon1, lat1, lon2, lat2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusM * c
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Centroid returns the arithmetic mean of the exterior-ring vertices.
// For a MultiPolygon only the first polygon's exterior ring is used; this
// understates multi-part parcels of comparable size but matches the cadastral
// sources, which emit the primary part first.
func Centroid(g geom.T) (lng, lat float64, ok bool) {
	ring := exteriorRing(g)
	if len(ring) == 0 {
		return 0, 0, false
	}

	var sumX, sumY float64
	for _, c := range ring {
		sumX += c[0]
		sumY += c[1]
	}
	n := float64(len(ring))
	return sumX / n, sumY / n, true
}

// exteriorRing extracts the exterior ring coordinates of the first polygon.
func exteriorRing(g geom.T) []geom.Coord {
	switch t := g.(type) {
	case *geom.Polygon:
		if t.NumLinearRings() == 0 {
			return nil
		}
		return t.LinearRing(0).Coords()
	case *geom.MultiPolygon:
		if t.NumPolygons() == 0 {
			return nil
		}
		p := t.Polygon(0)
		if p.NumLinearRings() == 0 {
			return nil
		}
		return p.LinearRing(0).Coords()
	default:
		return nil
	}
}

// PointInGeometry reports whether the point lies inside the polygon or, for
// a MultiPolygon, inside any of its member polygons. Interior rings are not
// subtracted.
func PointInGeometry(lon, lat float64, g geom.T) bool {
	switch t := g.(type) {
	case *geom.Polygon:
		if t.NumLinearRings() == 0 {
			return false
		}
		return pointInRing(lon, lat, t.LinearRing(0).Coords())
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			p := t.Polygon(i)
			if p.NumLinearRings() == 0 {
				continue
			}
			if pointInRing(lon, lat, p.LinearRing(0).Coords()) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// pointInRing is the classic ray-casting test over a closed ring.
func pointInRing(lon, lat float64, ring []geom.Coord) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]

		if (yi > lat) != (yj > lat) &&
			lon < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}
