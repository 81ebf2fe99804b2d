package cadastre

import (
	"context"

	"go.uber.org/zap"

	"github.com/terrafind/enrich-cli/pkg/catastro"
	"github.com/terrafind/enrich-cli/pkg/ogc"
)

// SpainConfig holds the Spanish cadastre endpoints.
type SpainConfig struct {
	WFSEndpoint string `yaml:"wfs_endpoint" mapstructure:"wfs_endpoint"`
	TypeName    string `yaml:"type_name" mapstructure:"type_name"`
	Buffers     []float64
}

// DefaultSpainConfig returns the INSPIRE cadastral parcel endpoints.
func DefaultSpainConfig() SpainConfig {
	return SpainConfig{
		WFSEndpoint: "https://ovc.catastro.meh.es/INSPIRE/wfsCP.aspx",
		TypeName:    "CP:CadastralParcel",
		Buffers:     DefaultBuffers,
	}
}

// Spain resolves parcels from the Dirección General del Catastro: the
// coordinate service names the parcel, the INSPIRE WFS supplies its
// geometry.
type Spain struct {
	cfg      SpainConfig
	coords   catastro.Client
	registry *ogc.Registry
}

// NewSpain creates the Spanish resolver.
func NewSpain(cfg SpainConfig, coords catastro.Client, registry *ogc.Registry) *Spain {
	if cfg.WFSEndpoint == "" {
		cfg = DefaultSpainConfig()
	}
	if len(cfg.Buffers) == 0 {
		cfg.Buffers = DefaultBuffers
	}
	return &Spain{cfg: cfg, coords: coords, registry: registry}
}

// ResolveParcel implements Resolver.
func (s *Spain) ResolveParcel(ctx context.Context, lat, lng float64) (*CadastralInfo, error) {
	// The coordinate lookup is authoritative for the reference but carries
	// no geometry; a miss here does not end the search because RCCOOR lags
	// behind the WFS for recently registered parcels.
	var reference string
	ref, err := s.coords.ReverseReference(ctx, lat, lng)
	if err != nil {
		zap.L().Warn("es cadastre: coordinate lookup failed, continuing with wfs only",
			zap.Float64("lat", lat), zap.Float64("lng", lng), zap.Error(err))
	} else if ref.Matched {
		reference = ref.CadastralReference
	}

	feats, err := queryWithBuffers(ctx, "es-cadastro", s.cfg.Buffers, func(ctx context.Context, delta float64) ([]ogc.Feature, error) {
		u := ogc.BuildGetFeature(s.cfg.WFSEndpoint, s.cfg.TypeName, ogc.PointBuffer(lng, lat, delta), 50)
		fc, err := s.registry.GetFeatures(ctx, u)
		if err != nil {
			return nil, err
		}
		return fc.Features, nil
	})
	if err != nil {
		return nil, err
	}
	if len(feats) == 0 {
		if reference == "" {
			return nil, nil
		}
		// Reference without geometry still identifies the parcel.
		return &CadastralInfo{
			CadastralReference: reference,
			Source:             "es-catastro",
			ServiceURL:         s.cfg.WFSEndpoint,
		}, nil
	}

	cands := decodeCandidates(feats, []string{"nationalCadastralReference", "localId", "gml_id"}, []string{"areaValue", "area_m2"})

	// When RCCOOR named a parcel, prefer the candidate with the matching
	// reference over pure geometry selection.
	if reference != "" {
		for _, c := range cands {
			if c.Reference == reference {
				sel, ok := selectBest(lat, lng, []Candidate{c})
				if ok {
					return sel.toInfo("es-catastro", s.cfg.WFSEndpoint), nil
				}
			}
		}
	}

	sel, ok := selectBest(lat, lng, cands)
	if !ok {
		if reference == "" {
			return nil, nil
		}
		return &CadastralInfo{
			CadastralReference: reference,
			Source:             "es-catastro",
			ServiceURL:         s.cfg.WFSEndpoint,
		}, nil
	}

	info := sel.toInfo("es-catastro", s.cfg.WFSEndpoint)
	if reference != "" {
		info.CadastralReference = reference
	}
	return info, nil
}
