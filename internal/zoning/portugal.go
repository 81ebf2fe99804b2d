package zoning

import (
	"context"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/terrafind/enrich-cli/internal/spatial"
	"github.com/terrafind/enrich-cli/pkg/ogc"
)

// PortugalConfig holds the Portuguese zoning service endpoints: CRUS for the
// planning designation, COS for land cover, CAOP for the parish.
type PortugalConfig struct {
	CRUSEndpoint   string `yaml:"crus_endpoint" mapstructure:"crus_endpoint"`
	CRUSLayer      string `yaml:"crus_layer" mapstructure:"crus_layer"`
	COSEndpoint    string `yaml:"cos_endpoint" mapstructure:"cos_endpoint"`
	COSLayer       string `yaml:"cos_layer" mapstructure:"cos_layer"`
	CAOPEndpoint   string `yaml:"caop_endpoint" mapstructure:"caop_endpoint"`
	ParishTypeName string `yaml:"parish_type_name" mapstructure:"parish_type_name"`
}

// DefaultPortugalConfig returns the DGT production endpoints.
func DefaultPortugalConfig() PortugalConfig {
	return PortugalConfig{
		CRUSEndpoint:   "https://servicos.dgterritorio.gov.pt/wms/crus",
		CRUSLayer:      "CRUS",
		COSEndpoint:    "https://geo2.dgterritorio.gov.pt/geoserver/COS/wms",
		COSLayer:       "COS2018v2",
		CAOPEndpoint:   "https://geo2.dgterritorio.gov.pt/geoserver/caop/wfs",
		ParishTypeName: "caop:cont_freg",
	}
}

var (
	crusLabelKeys  = []string{"designacao", "categoria", "classe", "uso"}
	cosLabelKeys   = []string{"legenda", "cos_l4", "classe", "label"}
	parishNameKeys = []string{"freguesia", "des_simpli", "designacao"}
	parishMuniKeys = []string{"municipio", "concelho"}
)

// Portugal merges CRUS designation, COS land cover, and CAOP parish into one
// zoning answer.
type Portugal struct {
	cfg      PortugalConfig
	registry *ogc.Registry
}

// NewPortugal creates the Portuguese zoning resolver.
func NewPortugal(cfg PortugalConfig, registry *ogc.Registry) *Portugal {
	if cfg.CRUSEndpoint == "" {
		cfg = DefaultPortugalConfig()
	}
	return &Portugal{cfg: cfg, registry: registry}
}

// Query carries the optional context the orchestrator has already gathered:
// the municipality from reverse geocoding disambiguates parish candidates,
// and the cadastral parcel gives a second probe point when the raw
// coordinate falls on a CRUS tile boundary.
type Query struct {
	Lat, Lng     float64
	Municipality string
	Parcel       geom.T
}

// ResolveZoning implements Resolver.
func (p *Portugal) ResolveZoning(ctx context.Context, lat, lng float64) (*ZoningInfo, error) {
	return p.Resolve(ctx, Query{Lat: lat, Lng: lng})
}

// Resolve answers a zoning query. Each sub-source fails independently; the
// merged result carries whatever was found, and only a fully empty answer is
// reported as no data.
func (p *Portugal) Resolve(ctx context.Context, q Query) (*ZoningInfo, error) {
	label := p.featureInfo(ctx, p.cfg.CRUSEndpoint, p.cfg.CRUSLayer, q.Lat, q.Lng, crusLabelKeys)
	if label == "" && q.Parcel != nil {
		if clng, clat, ok := spatial.Centroid(q.Parcel); ok {
			label = p.featureInfo(ctx, p.cfg.CRUSEndpoint, p.cfg.CRUSLayer, clat, clng, crusLabelKeys)
		}
	}

	landCover := p.featureInfo(ctx, p.cfg.COSEndpoint, p.cfg.COSLayer, q.Lat, q.Lng, cosLabelKeys)
	parish := p.parish(ctx, q)

	if label == "" && landCover == "" && parish == "" {
		return nil, nil
	}

	source := "pt-crus"
	if label == "" {
		source = "pt-cos"
		if landCover == "" {
			source = "pt-caop"
		}
	}
	return &ZoningInfo{
		Label:     label,
		LandCover: landCover,
		Parish:    parish,
		Source:    source,
	}, nil
}

// featureInfo probes a WMS layer at the point and extracts the first label
// key present. Errors are logged and treated as no data; the caller merges
// whatever the other sub-sources return.
func (p *Portugal) featureInfo(ctx context.Context, endpoint, layer string, lat, lng float64, keys []string) string {
	u := ogc.BuildGetFeatureInfo(endpoint, layer, lng, lat)
	fc, err := p.registry.GetFeatures(ctx, u)
	if err != nil {
		zap.L().Warn("pt zoning: wms probe failed",
			zap.String("layer", layer),
			zap.Float64("lat", lat), zap.Float64("lng", lng),
			zap.Error(err))
		return ""
	}
	for _, f := range fc.Features {
		if v := labelFromFeature(f, keys); v != "" {
			return v
		}
	}
	return ""
}

func (p *Portugal) parish(ctx context.Context, q Query) string {
	u := ogc.BuildGetFeature(p.cfg.CAOPEndpoint, p.cfg.ParishTypeName, ogc.PointBuffer(q.Lng, q.Lat, 0.001), 10)
	fc, err := p.registry.GetFeatures(ctx, u)
	if err != nil {
		zap.L().Warn("pt zoning: parish lookup failed",
			zap.Float64("lat", q.Lat), zap.Float64("lng", q.Lng),
			zap.Error(err))
		return ""
	}
	if len(fc.Features) == 0 {
		return ""
	}

	for _, f := range fc.Features {
		g, err := spatial.DecodeGeometry(f.Geometry)
		if err != nil {
			continue
		}
		if spatial.PointInGeometry(q.Lng, q.Lat, g) {
			return labelFromFeature(f, parishNameKeys)
		}
	}

	// A border point may sit in no candidate polygon once the bbox filter
	// widens the set; the municipality from reverse geocoding picks the
	// right side. Names are folded because the services disagree on accents
	// and casing.
	if q.Municipality != "" {
		want := NormalizeName(q.Municipality)
		for _, f := range fc.Features {
			if NormalizeName(labelFromFeature(f, parishMuniKeys)) == want {
				return labelFromFeature(f, parishNameKeys)
			}
		}
	}
	return labelFromFeature(fc.Features[0], parishNameKeys)
}
