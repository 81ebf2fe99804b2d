package cadastre

import (
	"github.com/terrafind/enrich-cli/internal/spatial"
)

// selection is the outcome of best-candidate selection.
type selection struct {
	Candidate      Candidate
	CentroidLng    float64
	CentroidLat    float64
	DistanceMeters float64
	ContainsPoint  bool
}

// selectBest picks exactly one candidate for the query point.
//
// Containment wins outright: the first candidate whose polygon contains the
// point is returned with distance 0 (cadastral layers do not overlap, so a
// second containing candidate would indicate upstream data problems, not a
// tie to break). Otherwise the candidate with the nearest centroid wins,
// first-seen on equal distance. Candidates without usable geometry are
// skipped; if none remain, ok=false.
func selectBest(lat, lng float64, cands []Candidate) (selection, bool) {
	// Containment pass.
	for _, c := range cands {
		if c.Geometry == nil {
			continue
		}
		if spatial.PointInGeometry(lng, lat, c.Geometry) {
			cLng, cLat, _ := spatial.Centroid(c.Geometry)
			return selection{
				Candidate:      c,
				CentroidLng:    cLng,
				CentroidLat:    cLat,
				DistanceMeters: 0,
				ContainsPoint:  true,
			}, true
		}
	}

	// Nearest-centroid fallback.
	var best selection
	found := false
	for _, c := range cands {
		if c.Geometry == nil {
			continue
		}
		cLng, cLat, ok := spatial.Centroid(c.Geometry)
		if !ok {
			continue
		}
		d := spatial.Haversine(lng, lat, cLng, cLat)
		if !found || d < best.DistanceMeters {
			best = selection{
				Candidate:      c,
				CentroidLng:    cLng,
				CentroidLat:    cLat,
				DistanceMeters: d,
			}
			found = true
		}
	}

	return best, found
}

// toInfo converts a selection into the exported parcel record.
func (s selection) toInfo(source, serviceURL string) *CadastralInfo {
	return &CadastralInfo{
		CadastralReference: s.Candidate.Reference,
		AreaM2:             s.Candidate.AreaM2,
		Geometry:           s.Candidate.Raw,
		Centroid: &Point{
			Latitude:  s.CentroidLat,
			Longitude: s.CentroidLng,
		},
		DistanceMeters: s.DistanceMeters,
		ContainsPoint:  s.ContainsPoint,
		Source:         source,
		ServiceURL:     serviceURL,
	}
}
