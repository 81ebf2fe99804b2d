// Package caop loads the Portuguese official administrative chart (Carta
// Administrativa Oficial de Portugal) from shapefiles into the database, so
// the admin-boundary connectors can use a local mirror instead of the public
// WFS.
package caop

import (
	"strings"

	"github.com/google/uuid"
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"
)

// Level of an administrative boundary in the chart.
type Level string

const (
	LevelDistrict     Level = "district"
	LevelMunicipality Level = "municipality"
	LevelParish       Level = "parish"
)

// Attribute names vary across CAOP releases; each list is tried in order.
var (
	nameFields = map[Level][]string{
		LevelDistrict:     {"distrito", "designacao"},
		LevelMunicipality: {"municipio", "concelho", "designacao"},
		LevelParish:       {"freguesia", "des_simpli", "designacao"},
	}
	idFields       = []string{"dicofre", "dico", "di", "codigo"}
	districtFields = []string{"distrito"}
)

// Boundary is one parsed administrative polygon, geometry already encoded
// as EWKB SRID 4326.
type Boundary struct {
	ID       string
	Level    Level
	Name     string
	District string
	GeomEWKB []byte
}

// ParseShapefile reads one CAOP shapefile into boundary rows. Records with
// no name or unusable geometry are skipped and counted, not fatal.
func ParseShapefile(path string, level Level) ([]Boundary, error) {
	names, ok := nameFields[level]
	if !ok {
		return nil, eris.Errorf("caop: unknown level %q", level)
	}

	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "caop: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}

	attr := func(row int, candidates []string) string {
		for _, c := range candidates {
			idx, ok := fieldIdx[c]
			if !ok {
				continue
			}
			v := strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
			if v != "" {
				return v
			}
		}
		return ""
	}

	var (
		boundaries []Boundary
		skipped    int
	)
	for reader.Next() {
		n, shape := reader.Shape()

		name := attr(n, names)
		if name == "" {
			skipped++
			continue
		}

		wkb, err := encodePolygonEWKB(shape)
		if err != nil || wkb == nil {
			skipped++
			continue
		}

		id := attr(n, idFields)
		if id == "" {
			id = uuid.New().String()
		}

		boundaries = append(boundaries, Boundary{
			ID:       id,
			Level:    level,
			Name:     name,
			District: attr(n, districtFields),
			GeomEWKB: wkb,
		})
	}

	if skipped > 0 {
		zap.L().Debug("caop: skipped shapefile records",
			zap.String("path", path),
			zap.String("level", string(level)),
			zap.Int("skipped", skipped))
	}
	return boundaries, nil
}

// encodePolygonEWKB converts a shapefile polygon to EWKB SRID 4326 bytes.
// Non-polygon shapes return nil, nil.
func encodePolygonEWKB(shape shp.Shape) ([]byte, error) {
	p, ok := shape.(*shp.Polygon)
	if !ok || p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil, nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		ring := geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}).SetSRID(4326)
		if err := mp.Push(ring); err != nil {
			zap.L().Debug("caop: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
		}
	}
	if mp.NumPolygons() == 0 {
		return nil, nil
	}

	data, err := ewkb.Marshal(mp, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "caop: encode EWKB")
	}
	return data, nil
}
