package cadastre

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/terrafind/enrich-cli/internal/spatial"
	"github.com/terrafind/enrich-cli/pkg/ogc"
)

// madeiraBBox covers the Madeira archipelago; BUPi serves it from a separate
// ArcGIS instance than the continent.
var madeiraBBox = ogc.BBox{MinLng: -17.4, MinLat: 32.3, MaxLng: -16.2, MaxLat: 33.2}

// PortugalConfig holds the Portuguese cadastre endpoints.
type PortugalConfig struct {
	OGCAPIEndpoint  string `yaml:"ogcapi_endpoint" mapstructure:"ogcapi_endpoint"`
	OGCCollection   string `yaml:"ogc_collection" mapstructure:"ogc_collection"`
	BUPiContinental string `yaml:"bupi_continental" mapstructure:"bupi_continental"`
	BUPiMadeira     string `yaml:"bupi_madeira" mapstructure:"bupi_madeira"`
	Buffers         []float64
}

// DefaultPortugalConfig returns the production endpoints.
func DefaultPortugalConfig() PortugalConfig {
	return PortugalConfig{
		OGCAPIEndpoint:  "https://ogcapi.dgterritorio.gov.pt",
		OGCCollection:   "cadastro-predial",
		BUPiContinental: "https://geo.bupi.gov.pt/arcgis/rest/services/bupi/MapServer/0",
		BUPiMadeira:     "https://geo.bupi.gov.pt/arcgis/rest/services/bupi_madeira/MapServer/0",
		Buffers:         DefaultBuffers,
	}
}

// Portugal resolves parcels from the national cadastre (OGC API Features)
// with the BUPi property registry as fallback.
type Portugal struct {
	cfg      PortugalConfig
	registry *ogc.Registry
}

// NewPortugal creates the Portuguese resolver.
func NewPortugal(cfg PortugalConfig, registry *ogc.Registry) *Portugal {
	if cfg.OGCAPIEndpoint == "" {
		cfg = DefaultPortugalConfig()
	}
	if len(cfg.Buffers) == 0 {
		cfg.Buffers = DefaultBuffers
	}
	return &Portugal{cfg: cfg, registry: registry}
}

// ResolveParcel implements Resolver. The official cadastre is tried first;
// when it has no coverage (most of the interior is still unregistered) the
// BUPi sketch registry is consulted.
func (p *Portugal) ResolveParcel(ctx context.Context, lat, lng float64) (*CadastralInfo, error) {
	info, err := p.resolveOGCAPI(ctx, lat, lng)
	if err != nil {
		zap.L().Warn("pt cadastre: official cadastre query failed, falling back to bupi",
			zap.Float64("lat", lat), zap.Float64("lng", lng), zap.Error(err))
	}
	if info != nil {
		return info, nil
	}

	return p.resolveBUPi(ctx, lat, lng)
}

func (p *Portugal) resolveOGCAPI(ctx context.Context, lat, lng float64) (*CadastralInfo, error) {
	serviceURL := p.cfg.OGCAPIEndpoint

	feats, err := queryWithBuffers(ctx, "pt-cadastro", p.cfg.Buffers, func(ctx context.Context, delta float64) ([]ogc.Feature, error) {
		u := ogc.BuildItemsURL(p.cfg.OGCAPIEndpoint, p.cfg.OGCCollection, ogc.PointBuffer(lng, lat, delta), 50)
		fc, err := p.registry.GetFeatures(ctx, u)
		if err != nil {
			return nil, err
		}
		return fc.Features, nil
	})
	if err != nil || len(feats) == 0 {
		return nil, err
	}

	sel, ok := selectBest(lat, lng, decodeCandidates(feats, []string{"nip", "referencia", "id"}, []string{"area_m2", "shape_area"}))
	if !ok {
		return nil, nil
	}
	return sel.toInfo("pt-cadastro", serviceURL), nil
}

func (p *Portugal) resolveBUPi(ctx context.Context, lat, lng float64) (*CadastralInfo, error) {
	endpoint := p.cfg.BUPiContinental
	source := "pt-bupi"
	if madeiraBBox.Contains(lng, lat) {
		endpoint = p.cfg.BUPiMadeira
		source = "pt-bupi-madeira"
	}

	feats, err := queryWithBuffers(ctx, source, p.cfg.Buffers, func(ctx context.Context, delta float64) ([]ogc.Feature, error) {
		u := ogc.BuildArcGISEnvelopeQuery(endpoint, ogc.PointBuffer(lng, lat, delta))
		fc, err := p.registry.GetFeatures(ctx, u)
		if err != nil {
			return nil, err
		}
		return fc.Features, nil
	})
	if err != nil {
		return nil, err
	}
	if len(feats) == 0 {
		return nil, nil
	}

	sel, ok := selectBest(lat, lng, decodeCandidates(feats, []string{"id_processo", "objectid", "id"}, []string{"area_m2", "shape_area", "st_area(shape)"}))
	if !ok {
		return nil, nil
	}
	return sel.toInfo(source, endpoint), nil
}

// decodeCandidates converts raw features into selection candidates, trying
// the given property keys for the parcel reference and area. Features with
// undecodable geometry are kept with nil geometry so selection can skip
// them.
func decodeCandidates(feats []ogc.Feature, refKeys, areaKeys []string) []Candidate {
	cands := make([]Candidate, 0, len(feats))
	for _, f := range feats {
		c := Candidate{Raw: f.Geometry}

		for _, k := range refKeys {
			if v := f.StringProp(k); v != "" {
				c.Reference = v
				break
			}
		}
		if c.Reference == "" {
			switch id := f.ID.(type) {
			case string:
				c.Reference = id
			case float64:
				c.Reference = fmt.Sprintf("%.0f", id)
			}
		}

		for _, k := range areaKeys {
			if v, ok := f.FloatProp(k); ok {
				c.AreaM2 = v
				break
			}
		}

		if g, err := spatial.DecodeGeometry(f.Geometry); err == nil {
			c.Geometry = g
		}
		cands = append(cands, c)
	}
	return cands
}
