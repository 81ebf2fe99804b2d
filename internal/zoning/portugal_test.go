package zoning

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/terrafind/enrich-cli/internal/resilience"
	"github.com/terrafind/enrich-cli/pkg/ogc"
)

func testRegistry() *ogc.Registry {
	return ogc.NewRegistry(
		ogc.WithTimeout(2*time.Second),
		ogc.WithRetryPolicy(resilience.Policy{Attempts: 2, BaseDelay: time.Millisecond, Multiplier: 1}),
	)
}

func emptyCollection(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
}

func parishCollection(w http.ResponseWriter, _ *http.Request) {
	// Two adjacent parishes; the point 38.72,-9.14 falls inside the first.
	fmt.Fprint(w, `{"type":"FeatureCollection","features":[
		{
			"geometry": {"type":"Polygon","coordinates":[[[-9.15,38.71],[-9.13,38.71],[-9.13,38.73],[-9.15,38.73],[-9.15,38.71]]]},
			"properties": {"freguesia": "Alvalade", "municipio": "Lisboa"}
		},
		{
			"geometry": {"type":"Polygon","coordinates":[[[-9.13,38.71],[-9.11,38.71],[-9.11,38.73],[-9.13,38.73],[-9.13,38.71]]]},
			"properties": {"freguesia": "Areeiro", "municipio": "Lisboa"}
		}
	]}`)
}

func TestPortugal_MergesAllSources(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/crus", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GetFeatureInfo", r.URL.Query().Get("request"))
		fmt.Fprint(w, `{"type":"FeatureCollection","features":[{"properties":{"designacao":"Espaço agrícola"}}]}`)
	})
	mux.HandleFunc("/cos", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"type":"FeatureCollection","features":[{"properties":{"legenda":"Culturas temporárias de sequeiro"}}]}`)
	})
	mux.HandleFunc("/caop", parishCollection)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewPortugal(PortugalConfig{
		CRUSEndpoint:   srv.URL + "/crus",
		CRUSLayer:      "CRUS",
		COSEndpoint:    srv.URL + "/cos",
		COSLayer:       "COS2018v2",
		CAOPEndpoint:   srv.URL + "/caop",
		ParishTypeName: "caop:cont_freg",
	}, testRegistry())

	info, err := p.ResolveZoning(context.Background(), 38.72, -9.14)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "Espaço agrícola", info.Label)
	assert.Equal(t, "Culturas temporárias de sequeiro", info.LandCover)
	assert.Equal(t, "Alvalade", info.Parish)
	assert.Equal(t, "pt-crus", info.Source)
	assert.False(t, info.Translated)
}

func TestPortugal_ParcelCentroidRetry(t *testing.T) {
	t.Parallel()

	// The raw coordinate misses CRUS coverage; the parcel centroid hits.
	var probes []string
	mux := http.NewServeMux()
	mux.HandleFunc("/crus", func(w http.ResponseWriter, r *http.Request) {
		bbox := r.URL.Query().Get("bbox")
		probes = append(probes, bbox)
		if len(probes) == 1 {
			emptyCollection(w, r)
			return
		}
		fmt.Fprint(w, `{"type":"FeatureCollection","features":[{"properties":{"designacao":"Espaço florestal"}}]}`)
	})
	mux.HandleFunc("/cos", emptyCollection)
	mux.HandleFunc("/caop", emptyCollection)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewPortugal(PortugalConfig{
		CRUSEndpoint:   srv.URL + "/crus",
		CRUSLayer:      "CRUS",
		COSEndpoint:    srv.URL + "/cos",
		COSLayer:       "COS",
		CAOPEndpoint:   srv.URL + "/caop",
		ParishTypeName: "caop:cont_freg",
	}, testRegistry())

	parcel := geom.NewPolygonFlat(geom.XY, []float64{
		-8.01, 40.09, -7.99, 40.09, -7.99, 40.11, -8.01, 40.11, -8.01, 40.09,
	}, []int{10})

	info, err := p.Resolve(context.Background(), Query{Lat: 40.2, Lng: -8.2, Parcel: parcel})
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "Espaço florestal", info.Label)
	assert.Len(t, probes, 2)
	assert.NotEqual(t, probes[0], probes[1])
}

func TestPortugal_MunicipalityHintDisambiguatesParish(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/crus", emptyCollection)
	mux.HandleFunc("/cos", emptyCollection)
	mux.HandleFunc("/caop", func(w http.ResponseWriter, _ *http.Request) {
		// Neither polygon contains the probe point; the hint decides.
		fmt.Fprint(w, `{"type":"FeatureCollection","features":[
			{
				"geometry": {"type":"Polygon","coordinates":[[[-9.5,39.5],[-9.4,39.5],[-9.4,39.6],[-9.5,39.6],[-9.5,39.5]]]},
				"properties": {"freguesia": "Ferrel", "municipio": "Peniche"}
			},
			{
				"geometry": {"type":"Polygon","coordinates":[[[-9.3,39.3],[-9.2,39.3],[-9.2,39.4],[-9.3,39.4],[-9.3,39.3]]]},
				"properties": {"freguesia": "Gaeiras", "municipio": "Óbidos"}
			}
		]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewPortugal(PortugalConfig{
		CRUSEndpoint:   srv.URL + "/crus",
		CRUSLayer:      "CRUS",
		COSEndpoint:    srv.URL + "/cos",
		COSLayer:       "COS",
		CAOPEndpoint:   srv.URL + "/caop",
		ParishTypeName: "caop:cont_freg",
	}, testRegistry())

	// Reverse geocoding spells the municipality without the accent.
	info, err := p.Resolve(context.Background(), Query{Lat: 39.36, Lng: -9.15, Municipality: "OBIDOS"})
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "Gaeiras", info.Parish)
	assert.Equal(t, "pt-caop", info.Source)
}

func TestPortugal_SubSourceFailureDegrades(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/crus", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	})
	mux.HandleFunc("/cos", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"type":"FeatureCollection","features":[{"properties":{"legenda":"Matos"}}]}`)
	})
	mux.HandleFunc("/caop", emptyCollection)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewPortugal(PortugalConfig{
		CRUSEndpoint:   srv.URL + "/crus",
		CRUSLayer:      "CRUS",
		COSEndpoint:    srv.URL + "/cos",
		COSLayer:       "COS",
		CAOPEndpoint:   srv.URL + "/caop",
		ParishTypeName: "caop:cont_freg",
	}, testRegistry())

	info, err := p.ResolveZoning(context.Background(), 38.72, -9.14)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Empty(t, info.Label)
	assert.Equal(t, "Matos", info.LandCover)
	assert.Equal(t, "pt-cos", info.Source)
}

func TestPortugal_NoDataAnywhere(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", emptyCollection)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewPortugal(PortugalConfig{
		CRUSEndpoint:   srv.URL + "/crus",
		CRUSLayer:      "CRUS",
		COSEndpoint:    srv.URL + "/cos",
		COSLayer:       "COS",
		CAOPEndpoint:   srv.URL + "/caop",
		ParishTypeName: "caop:cont_freg",
	}, testRegistry())

	info, err := p.ResolveZoning(context.Background(), 38.72, -9.14)
	require.NoError(t, err)
	assert.Nil(t, info)
}
