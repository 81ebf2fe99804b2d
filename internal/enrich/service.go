package enrich

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/terrafind/enrich-cli/internal/amenities"
	"github.com/terrafind/enrich-cli/internal/cadastre"
	"github.com/terrafind/enrich-cli/internal/layers"
	"github.com/terrafind/enrich-cli/internal/spatial"
	"github.com/terrafind/enrich-cli/internal/store"
	"github.com/terrafind/enrich-cli/internal/zoning"
	"github.com/terrafind/enrich-cli/pkg/nominatim"
	"github.com/terrafind/enrich-cli/pkg/translate"
)

// Geocoder reverse-geocodes a coordinate. It is the pipeline's sole source
// of country determination.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lng float64) (*nominatim.Result, error)
}

// LayerQuerier runs the layer aggregator.
type LayerQuerier interface {
	QueryAllLayers(ctx context.Context, req layers.Request) (*layers.LayerQueryResponse, error)
}

// AmenityFinder finds nearby points of interest.
type AmenityFinder interface {
	Nearby(ctx context.Context, lat, lng float64) (*amenities.Info, error)
}

// PortugalZoner is the Portuguese zoning resolver with its context-aware
// entry point; the cadastral parcel feeds it as a spatial hint.
type PortugalZoner interface {
	Resolve(ctx context.Context, q zoning.Query) (*zoning.ZoningInfo, error)
}

// Deps wires the orchestrator. Cadastre and Zoning are keyed by ISO country
// code; PTZoning handles Portugal separately because it consumes the parcel
// hint. Store and Translator may be nil when those stages are unused.
type Deps struct {
	Geocoder   Geocoder
	Layers     LayerQuerier
	Amenities  AmenityFinder
	Cadastre   map[string]cadastre.Resolver
	PTZoning   PortugalZoner
	Zoning     map[string]zoning.Resolver
	Translator translate.Translator
	Store      store.Store
}

// Service runs the enrichment pipeline.
type Service struct {
	deps Deps
}

// NewService creates the orchestrator.
func NewService(deps Deps) *Service {
	return &Service{deps: deps}
}

// EnrichLocation runs the five-stage pipeline. Stages execute in order and
// are individually fault-isolated: a failed stage is recorded in
// EnrichmentsFailed and the pipeline continues. Only request validation
// fails the call itself.
func (s *Service) EnrichLocation(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.TargetLanguage == "" {
		req.TargetLanguage = "en"
	}

	resp := &Response{
		RunID:          uuid.New().String(),
		Location:       Location{Latitude: req.Latitude, Longitude: req.Longitude},
		EnrichmentData: make(map[string]json.RawMessage),
		Timestamp:      time.Now().UTC(),
	}
	log := zap.L().With(
		zap.String("run_id", resp.RunID),
		zap.Float64("lat", req.Latitude), zap.Float64("lng", req.Longitude),
	)

	s.resolveMunicipality(ctx, req, resp, log)
	s.aggregateLayers(ctx, req, resp, log)
	s.findAmenities(ctx, req, resp, log)
	s.countryEnrichments(ctx, req, resp, log)
	s.persist(ctx, req, resp, log)

	if err := ctx.Err(); err != nil {
		resp.Error = err.Error()
	}

	log.Info("enrichment finished",
		zap.Strings("run", resp.EnrichmentsRun),
		zap.Strings("skipped", resp.EnrichmentsSkipped),
		zap.Strings("failed", resp.EnrichmentsFailed))
	return resp, nil
}

// resolveMunicipality is stage 1 and the sole source of country
// determination. A coordinate with no address (open sea, disputed
// territory) counts as a failed resolution; later country-conditional
// stages are then skipped, not failed.
func (s *Service) resolveMunicipality(ctx context.Context, req Request, resp *Response, log *zap.Logger) {
	muni, err := s.deps.Geocoder.Reverse(ctx, req.Latitude, req.Longitude)
	if err != nil {
		log.Warn("municipality resolution failed", zap.Error(err))
		resp.markFailed(StageMunicipality)
		return
	}
	if !muni.Matched {
		log.Info("no municipality at location")
		resp.markFailed(StageMunicipality)
		return
	}
	resp.markRun(StageMunicipality)

	resp.Municipality = muni
	resp.Country = strings.ToUpper(muni.CountryCode)
	s.attach(resp, "municipality", muni, log)
}

// aggregateLayers is stage 2, for countries with a layer set.
func (s *Service) aggregateLayers(ctx context.Context, req Request, resp *Response, log *zap.Logger) {
	if resp.Country != "PT" && resp.Country != "ES" {
		resp.markSkipped(StageLayers)
		return
	}

	out, err := s.deps.Layers.QueryAllLayers(ctx, layers.Request{
		Coordinate: layers.Coordinate{Latitude: req.Latitude, Longitude: req.Longitude},
		Country:    resp.Country,
	})
	if err != nil {
		log.Warn("layer aggregation failed", zap.Error(err))
		resp.markFailed(StageLayers)
		return
	}

	resp.Layers = &LayersEnrichment{
		ByCategory: layers.CategorizeLayers(out.Layers),
		Raw:        out.Layers,
	}
	resp.markRun(StageLayers)
	s.attach(resp, "layers", resp.Layers, log)
}

// findAmenities is stage 3 and runs regardless of country.
func (s *Service) findAmenities(ctx context.Context, req Request, resp *Response, log *zap.Logger) {
	info, err := s.deps.Amenities.Nearby(ctx, req.Latitude, req.Longitude)
	if err != nil {
		log.Warn("amenities enrichment failed", zap.Error(err))
		resp.markFailed(StageAmenities)
		return
	}
	resp.Amenities = info
	resp.markRun(StageAmenities)
	s.attach(resp, "amenities", info, log)
}

// countryEnrichments is stage 4: cadastre and zoning dispatched on country.
func (s *Service) countryEnrichments(ctx context.Context, req Request, resp *Response, log *zap.Logger) {
	switch resp.Country {
	case "PT":
		s.runCadastre(ctx, req, resp, log)
		s.runZoningPT(ctx, req, resp, log)
	case "ES":
		s.runCadastre(ctx, req, resp, log)
		s.runZoning(ctx, req, resp, log)
	case "DE":
		resp.markSkipped(StageCadastre)
		s.runZoning(ctx, req, resp, log)
	default:
		resp.markSkipped(StageCadastre)
		resp.markSkipped(StageZoning)
	}
}

func (s *Service) runCadastre(ctx context.Context, req Request, resp *Response, log *zap.Logger) {
	resolver, ok := s.deps.Cadastre[resp.Country]
	if !ok {
		resp.markSkipped(StageCadastre)
		return
	}
	info, err := resolver.ResolveParcel(ctx, req.Latitude, req.Longitude)
	if err != nil {
		log.Warn("cadastre enrichment failed", zap.String("country", resp.Country), zap.Error(err))
		resp.markFailed(StageCadastre)
		return
	}
	resp.markRun(StageCadastre)
	if info == nil {
		return
	}
	resp.Cadastre = info
	s.attach(resp, "cadastral", info, log)
}

// runZoningPT feeds the cadastral parcel to the Portuguese resolver as a
// spatial hint, so zoning still resolves when the advertised coordinate is
// slightly off the parcel.
func (s *Service) runZoningPT(ctx context.Context, req Request, resp *Response, log *zap.Logger) {
	if s.deps.PTZoning == nil {
		resp.markSkipped(StageZoning)
		return
	}

	q := zoning.Query{Lat: req.Latitude, Lng: req.Longitude}
	if resp.Municipality != nil {
		q.Municipality = resp.Municipality.Municipality
	}
	if resp.Cadastre != nil && len(resp.Cadastre.Geometry) > 0 {
		if g, err := spatial.DecodeGeometry(resp.Cadastre.Geometry); err == nil {
			q.Parcel = g
		}
	}

	info, err := s.deps.PTZoning.Resolve(ctx, q)
	s.finishZoning(ctx, req, resp, info, err, log)
}

func (s *Service) runZoning(ctx context.Context, req Request, resp *Response, log *zap.Logger) {
	resolver, ok := s.deps.Zoning[resp.Country]
	if !ok {
		resp.markSkipped(StageZoning)
		return
	}
	info, err := resolver.ResolveZoning(ctx, req.Latitude, req.Longitude)
	s.finishZoning(ctx, req, resp, info, err, log)
}

func (s *Service) finishZoning(ctx context.Context, req Request, resp *Response, info *zoning.ZoningInfo, err error, log *zap.Logger) {
	if err != nil {
		log.Warn("zoning enrichment failed", zap.String("country", resp.Country), zap.Error(err))
		resp.markFailed(StageZoning)
		return
	}
	resp.markRun(StageZoning)
	if info == nil {
		return
	}
	if req.Translate {
		info = zoning.ApplyTranslation(ctx, s.deps.Translator, info, req.TargetLanguage)
	}
	resp.Zoning = info
	s.attach(resp, "zoning", info, log)
}

// persist is stage 5. Failure is logged and recorded but never fails the
// enrichment call; the caller still gets the full response.
func (s *Service) persist(ctx context.Context, req Request, resp *Response, log *zap.Logger) {
	if !req.StoreResults {
		resp.markSkipped(StagePersistence)
		return
	}
	if s.deps.Store == nil {
		log.Warn("persistence requested but no store configured", zap.String("plot_id", req.PlotID))
		resp.markFailed(StagePersistence)
		return
	}

	var coords *store.RealCoords
	if resp.Cadastre != nil && resp.Cadastre.Centroid != nil && resp.Cadastre.ContainsPoint {
		// A containing parcel's centroid is the best position fix we have;
		// the store only overwrites when it differs from the saved pair.
		coords = &store.RealCoords{
			Latitude:  resp.Cadastre.Centroid.Latitude,
			Longitude: resp.Cadastre.Centroid.Longitude,
		}
	}

	err := s.deps.Store.UpsertEnrichment(ctx, req.PlotID, req.Latitude, req.Longitude, resp.EnrichmentData, coords)
	if err != nil {
		log.Warn("persistence failed", zap.String("plot_id", req.PlotID), zap.Error(err))
		resp.markFailed(StagePersistence)
		return
	}
	resp.markRun(StagePersistence)
}

// attach serializes a stage output into the merged enrichment bag. A
// marshal failure drops the key, never the stage.
func (s *Service) attach(resp *Response, key string, v any, log *zap.Logger) {
	raw, err := json.Marshal(v)
	if err != nil {
		log.Warn("marshal enrichment key failed", zap.String("key", key), zap.Error(err))
		return
	}
	resp.EnrichmentData[key] = raw
}
