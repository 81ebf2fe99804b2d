package enrich

import (
	"context"
	"encoding/json"
	"sort"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrafind/enrich-cli/internal/amenities"
	"github.com/terrafind/enrich-cli/internal/cadastre"
	"github.com/terrafind/enrich-cli/internal/layers"
	"github.com/terrafind/enrich-cli/internal/store"
	"github.com/terrafind/enrich-cli/internal/zoning"
	"github.com/terrafind/enrich-cli/pkg/nominatim"
	"github.com/terrafind/enrich-cli/pkg/translate"
)

type stubGeocoder struct {
	result *nominatim.Result
	err    error
}

func (s *stubGeocoder) Reverse(ctx context.Context, lat, lng float64) (*nominatim.Result, error) {
	return s.result, s.err
}

type stubLayers struct {
	resp *layers.LayerQueryResponse
	err  error
}

func (s *stubLayers) QueryAllLayers(ctx context.Context, req layers.Request) (*layers.LayerQueryResponse, error) {
	if s.resp != nil {
		s.resp.Country = req.Country
	}
	return s.resp, s.err
}

type stubAmenities struct {
	info *amenities.Info
	err  error
}

func (s *stubAmenities) Nearby(ctx context.Context, lat, lng float64) (*amenities.Info, error) {
	return s.info, s.err
}

type stubCadastre struct {
	info *cadastre.CadastralInfo
	err  error
}

func (s *stubCadastre) ResolveParcel(ctx context.Context, lat, lng float64) (*cadastre.CadastralInfo, error) {
	return s.info, s.err
}

type stubPTZoner struct {
	lastQuery zoning.Query
	info      *zoning.ZoningInfo
	err       error
}

func (s *stubPTZoner) Resolve(ctx context.Context, q zoning.Query) (*zoning.ZoningInfo, error) {
	s.lastQuery = q
	return s.info, s.err
}

type stubZoning struct {
	info *zoning.ZoningInfo
	err  error
}

func (s *stubZoning) ResolveZoning(ctx context.Context, lat, lng float64) (*zoning.ZoningInfo, error) {
	return s.info, s.err
}

type stubStore struct {
	store.Store
	plotID string
	lat    float64
	lng    float64
	data   map[string]json.RawMessage
	coords *store.RealCoords
	err    error
	calls  int
}

func (s *stubStore) UpsertEnrichment(ctx context.Context, plotID string, lat, lng float64, data map[string]json.RawMessage, coords *store.RealCoords) error {
	s.calls++
	s.plotID, s.lat, s.lng, s.data, s.coords = plotID, lat, lng, data, coords
	return s.err
}

type stubTranslator struct {
	result *translate.Translation
	err    error
}

func (s *stubTranslator) Translate(ctx context.Context, label, targetLanguage string) (*translate.Translation, error) {
	return s.result, s.err
}

func ptDeps() Deps {
	return Deps{
		Geocoder: &stubGeocoder{result: &nominatim.Result{
			Municipality: "Lisboa", CountryCode: "pt", Matched: true,
		}},
		Layers: &stubLayers{resp: &layers.LayerQueryResponse{Layers: []layers.LayerResult{
			{LayerID: "pt-admin-municipality", Found: true, Value: "Lisboa"},
			{LayerID: "pt-elevation", Found: true, Value: "87.5"},
		}}},
		Amenities: &stubAmenities{info: &amenities.Info{RadiusMeters: 10000}},
		Cadastre: map[string]cadastre.Resolver{"PT": &stubCadastre{info: &cadastre.CadastralInfo{
			CadastralReference: "PT-1",
			ContainsPoint:      true,
			Centroid:           &cadastre.Point{Latitude: 38.7201, Longitude: -9.1399},
		}}},
		PTZoning: &stubPTZoner{info: &zoning.ZoningInfo{Label: "Espaço agrícola"}},
		Store:    &stubStore{},
	}
}

// assertStagePartition checks that every stage appears in exactly one list.
func assertStagePartition(t *testing.T, resp *Response) {
	t.Helper()
	all := append(append(append([]string{}, resp.EnrichmentsRun...), resp.EnrichmentsSkipped...), resp.EnrichmentsFailed...)
	sort.Strings(all)
	assert.Equal(t, []string{
		StageAmenities, StageCadastre, StageLayers, StageMunicipality, StagePersistence, StageZoning,
	}, all)
}

func TestEnrichLocation_FullPortugalRun(t *testing.T) {
	t.Parallel()

	deps := ptDeps()
	st := deps.Store.(*stubStore)
	svc := NewService(deps)

	resp, err := svc.EnrichLocation(context.Background(), Request{
		Latitude: 38.72, Longitude: -9.14,
		PlotID: "plot-1", StoreResults: true,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, "PT", resp.Country)
	assert.Equal(t, "Lisboa", resp.Municipality.Municipality)
	assert.NotNil(t, resp.Layers)
	assert.NotNil(t, resp.Amenities)
	assert.Equal(t, "PT-1", resp.Cadastre.CadastralReference)
	assert.Equal(t, "Espaço agrícola", resp.Zoning.Label)
	assert.Empty(t, resp.Error)

	assert.ElementsMatch(t, []string{
		StageMunicipality, StageLayers, StageAmenities, StageCadastre, StageZoning, StagePersistence,
	}, resp.EnrichmentsRun)
	assert.Empty(t, resp.EnrichmentsSkipped)
	assert.Empty(t, resp.EnrichmentsFailed)
	assertStagePartition(t, resp)

	// Persistence received the merged bag and the parcel centroid.
	assert.Equal(t, 1, st.calls)
	assert.Equal(t, "plot-1", st.plotID)
	for _, key := range []string{"municipality", "layers", "amenities", "cadastral", "zoning"} {
		assert.Contains(t, st.data, key)
	}
	require.NotNil(t, st.coords)
	assert.Equal(t, 38.7201, st.coords.Latitude)
}

func TestEnrichLocation_ValidationFailsBeforeIO(t *testing.T) {
	t.Parallel()

	gc := &stubGeocoder{err: eris.New("must not be called")}
	svc := NewService(Deps{Geocoder: gc})

	_, err := svc.EnrichLocation(context.Background(), Request{
		Latitude: 38.72, Longitude: -9.14,
		StoreResults: true, // no PlotID
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plot_id")

	_, err = svc.EnrichLocation(context.Background(), Request{Latitude: 95, Longitude: 0})
	require.Error(t, err)
}

func TestEnrichLocation_GeocodeFailureSkipsCountryStages(t *testing.T) {
	t.Parallel()

	deps := ptDeps()
	deps.Geocoder = &stubGeocoder{err: eris.New("nominatim down")}
	svc := NewService(deps)

	resp, err := svc.EnrichLocation(context.Background(), Request{Latitude: 38.72, Longitude: -9.14})
	require.NoError(t, err)

	assert.Empty(t, resp.Country)
	assert.Contains(t, resp.EnrichmentsFailed, StageMunicipality)
	// Global stage still ran.
	assert.Contains(t, resp.EnrichmentsRun, StageAmenities)
	// Country-conditional stages are skipped, not failed.
	assert.Contains(t, resp.EnrichmentsSkipped, StageLayers)
	assert.Contains(t, resp.EnrichmentsSkipped, StageCadastre)
	assert.Contains(t, resp.EnrichmentsSkipped, StageZoning)
	assertStagePartition(t, resp)
}

// Open ocean: the geocoder answers cleanly but with no address.
func TestEnrichLocation_UnmatchedGeocodeFailsStage(t *testing.T) {
	t.Parallel()

	deps := ptDeps()
	deps.Geocoder = &stubGeocoder{result: &nominatim.Result{Matched: false}}
	svc := NewService(deps)

	resp, err := svc.EnrichLocation(context.Background(), Request{Latitude: 0, Longitude: -30})
	require.NoError(t, err)

	assert.Contains(t, resp.EnrichmentsFailed, StageMunicipality)
	assert.Nil(t, resp.Municipality)
	assert.Empty(t, resp.Country)
	// Amenities still run; country-conditional stages are skipped.
	assert.Contains(t, resp.EnrichmentsRun, StageAmenities)
	assert.Contains(t, resp.EnrichmentsSkipped, StageLayers)
	assert.Contains(t, resp.EnrichmentsSkipped, StageCadastre)
	assert.Contains(t, resp.EnrichmentsSkipped, StageZoning)
	assertStagePartition(t, resp)
}

func TestEnrichLocation_FailedStageDoesNotAbortPipeline(t *testing.T) {
	t.Parallel()

	deps := ptDeps()
	deps.Amenities = &stubAmenities{err: eris.New("all mirrors failed")}
	deps.Cadastre = map[string]cadastre.Resolver{"PT": &stubCadastre{err: eris.New("cadastre 502")}}
	svc := NewService(deps)

	resp, err := svc.EnrichLocation(context.Background(), Request{Latitude: 38.72, Longitude: -9.14})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{StageAmenities, StageCadastre}, resp.EnrichmentsFailed)
	assert.Contains(t, resp.EnrichmentsRun, StageMunicipality)
	assert.Contains(t, resp.EnrichmentsRun, StageLayers)
	assert.Contains(t, resp.EnrichmentsRun, StageZoning)
	assertStagePartition(t, resp)
}

func TestEnrichLocation_GermanyZoningOnly(t *testing.T) {
	t.Parallel()

	deps := ptDeps()
	deps.Geocoder = &stubGeocoder{result: &nominatim.Result{Municipality: "München", CountryCode: "de", Matched: true}}
	deps.Zoning = map[string]zoning.Resolver{"DE": &stubZoning{info: &zoning.ZoningInfo{Label: "Wohnbaufläche", Region: "Bayern"}}}
	svc := NewService(deps)

	resp, err := svc.EnrichLocation(context.Background(), Request{Latitude: 48.1, Longitude: 11.6})
	require.NoError(t, err)

	assert.Equal(t, "DE", resp.Country)
	assert.Contains(t, resp.EnrichmentsSkipped, StageLayers)
	assert.Contains(t, resp.EnrichmentsSkipped, StageCadastre)
	assert.Contains(t, resp.EnrichmentsRun, StageZoning)
	assert.Equal(t, "Wohnbaufläche", resp.Zoning.Label)
	assertStagePartition(t, resp)
}

func TestEnrichLocation_OtherCountrySkipsAllCountryStages(t *testing.T) {
	t.Parallel()

	deps := ptDeps()
	deps.Geocoder = &stubGeocoder{result: &nominatim.Result{Municipality: "Paris", CountryCode: "fr", Matched: true}}
	svc := NewService(deps)

	resp, err := svc.EnrichLocation(context.Background(), Request{Latitude: 48.85, Longitude: 2.35})
	require.NoError(t, err)

	assert.Equal(t, "FR", resp.Country)
	assert.ElementsMatch(t, []string{StageLayers, StageCadastre, StageZoning, StagePersistence}, resp.EnrichmentsSkipped)
	assert.ElementsMatch(t, []string{StageMunicipality, StageAmenities}, resp.EnrichmentsRun)
	assertStagePartition(t, resp)
}

func TestEnrichLocation_ParcelFeedsZoningHint(t *testing.T) {
	t.Parallel()

	deps := ptDeps()
	zoner := &stubPTZoner{info: &zoning.ZoningInfo{Label: "Espaço florestal"}}
	deps.PTZoning = zoner
	deps.Cadastre = map[string]cadastre.Resolver{"PT": &stubCadastre{info: &cadastre.CadastralInfo{
		CadastralReference: "PT-2",
		Geometry:           json.RawMessage(`{"type":"Polygon","coordinates":[[[-8.01,40.09],[-7.99,40.09],[-7.99,40.11],[-8.01,40.11],[-8.01,40.09]]]}`),
	}}}
	svc := NewService(deps)

	_, err := svc.EnrichLocation(context.Background(), Request{Latitude: 40.1, Longitude: -8.0})
	require.NoError(t, err)

	assert.Equal(t, "Lisboa", zoner.lastQuery.Municipality)
	require.NotNil(t, zoner.lastQuery.Parcel)
}

func TestEnrichLocation_TranslationApplied(t *testing.T) {
	t.Parallel()

	deps := ptDeps()
	deps.Translator = &stubTranslator{result: &translate.Translation{Label: "Agricultural space", Confidence: 0.9}}
	svc := NewService(deps)

	resp, err := svc.EnrichLocation(context.Background(), Request{
		Latitude: 38.72, Longitude: -9.14,
		Translate: true, TargetLanguage: "en",
	})
	require.NoError(t, err)

	assert.Equal(t, "Agricultural space", resp.Zoning.Label)
	assert.Equal(t, "Espaço agrícola", resp.Zoning.LabelOriginal)
	assert.True(t, resp.Zoning.Translated)
}

func TestEnrichLocation_TranslationFailureDegrades(t *testing.T) {
	t.Parallel()

	deps := ptDeps()
	deps.Translator = &stubTranslator{err: eris.New("model unavailable")}
	svc := NewService(deps)

	resp, err := svc.EnrichLocation(context.Background(), Request{
		Latitude: 38.72, Longitude: -9.14,
		Translate: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "Espaço agrícola", resp.Zoning.Label)
	assert.False(t, resp.Zoning.Translated)
	assert.NotContains(t, resp.EnrichmentsFailed, StageZoning)
}

func TestEnrichLocation_PersistenceFailureDoesNotFailCall(t *testing.T) {
	t.Parallel()

	deps := ptDeps()
	deps.Store = &stubStore{err: eris.New("connection refused")}
	svc := NewService(deps)

	resp, err := svc.EnrichLocation(context.Background(), Request{
		Latitude: 38.72, Longitude: -9.14,
		PlotID: "plot-9", StoreResults: true,
	})
	require.NoError(t, err)

	assert.Contains(t, resp.EnrichmentsFailed, StagePersistence)
	assert.Contains(t, resp.EnrichmentsRun, StageZoning)
	assertStagePartition(t, resp)
}

func TestEnrichLocation_StoreRequestedButNotConfigured(t *testing.T) {
	t.Parallel()

	deps := ptDeps()
	deps.Store = nil
	svc := NewService(deps)

	resp, err := svc.EnrichLocation(context.Background(), Request{
		Latitude: 38.72, Longitude: -9.14,
		PlotID: "plot-9", StoreResults: true,
	})
	require.NoError(t, err)

	assert.Contains(t, resp.EnrichmentsFailed, StagePersistence)
	assertStagePartition(t, resp)
}

func TestEnrichLocation_NoRealCoordsWithoutContainment(t *testing.T) {
	t.Parallel()

	deps := ptDeps()
	st := deps.Store.(*stubStore)
	deps.Cadastre = map[string]cadastre.Resolver{"PT": &stubCadastre{info: &cadastre.CadastralInfo{
		CadastralReference: "PT-3",
		Centroid:           &cadastre.Point{Latitude: 38.7, Longitude: -9.1},
		ContainsPoint:      false,
		DistanceMeters:     420,
	}}}
	svc := NewService(deps)

	_, err := svc.EnrichLocation(context.Background(), Request{
		Latitude: 38.72, Longitude: -9.14,
		PlotID: "plot-4", StoreResults: true,
	})
	require.NoError(t, err)
	assert.Nil(t, st.coords)
}
