package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrafind/enrich-cli/internal/enrich"
	"github.com/terrafind/enrich-cli/internal/layers"
)

type stubEnricher struct {
	lastReq enrich.Request
	resp    *enrich.Response
	err     error
}

func (s *stubEnricher) EnrichLocation(_ context.Context, req enrich.Request) (*enrich.Response, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.resp, nil
}

type stubLayerQuerier struct {
	lastReq layers.Request
	resp    *layers.LayerQueryResponse
	err     error
}

func (s *stubLayerQuerier) QueryAllLayers(_ context.Context, req layers.Request) (*layers.LayerQueryResponse, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func TestRouter_Health(t *testing.T) {
	t.Parallel()

	r := buildRouter(&stubEnricher{}, &stubLayerQuerier{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_Enrich(t *testing.T) {
	t.Parallel()

	svc := &stubEnricher{resp: &enrich.Response{
		RunID:    "run-1",
		Location: enrich.Location{Latitude: 39.5, Longitude: -8.0},
		Country:  "PT",
	}}
	r := buildRouter(svc, &stubLayerQuerier{})

	payload, _ := json.Marshal(enrichRequestBody{
		Latitude:       39.5,
		Longitude:      -8.0,
		PlotID:         "plot-7",
		StoreResults:   true,
		Translate:      true,
		TargetLanguage: "de",
	})
	req := httptest.NewRequest(http.MethodPost, "/enrich", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp enrich.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, "PT", resp.Country)

	assert.Equal(t, "plot-7", svc.lastReq.PlotID)
	assert.True(t, svc.lastReq.StoreResults)
	assert.True(t, svc.lastReq.Translate)
	assert.Equal(t, "de", svc.lastReq.TargetLanguage)
}

func TestRouter_Enrich_InvalidBody(t *testing.T) {
	t.Parallel()

	r := buildRouter(&stubEnricher{}, &stubLayerQuerier{})

	req := httptest.NewRequest(http.MethodPost, "/enrich", bytes.NewReader([]byte("{not json")))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid request body")
}

func TestRouter_Enrich_InvalidCoordinates(t *testing.T) {
	t.Parallel()

	r := buildRouter(&stubEnricher{}, &stubLayerQuerier{})

	payload, _ := json.Marshal(enrichRequestBody{Latitude: 95, Longitude: 0})
	req := httptest.NewRequest(http.MethodPost, "/enrich", bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_Layers(t *testing.T) {
	t.Parallel()

	agg := &stubLayerQuerier{resp: &layers.LayerQueryResponse{
		Country: "ES",
		Layers:  []layers.LayerResult{{LayerID: "es-cadastre", Found: true}},
	}}
	r := buildRouter(&stubEnricher{}, agg)

	req := httptest.NewRequest(http.MethodGet, "/layers?lat=40.4&lng=-3.7&country=ES", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp layers.LayerQueryResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ES", resp.Country)
	require.Len(t, resp.Layers, 1)
	assert.Equal(t, "es-cadastre", resp.Layers[0].LayerID)

	assert.InDelta(t, 40.4, agg.lastReq.Latitude, 0.001)
	assert.InDelta(t, -3.7, agg.lastReq.Longitude, 0.001)
	assert.Equal(t, "ES", agg.lastReq.Country)
}

func TestRouter_Layers_DefaultCountry(t *testing.T) {
	t.Parallel()

	agg := &stubLayerQuerier{resp: &layers.LayerQueryResponse{Country: "PT"}}
	r := buildRouter(&stubEnricher{}, agg)

	req := httptest.NewRequest(http.MethodGet, "/layers?lat=39.5&lng=-8.0", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "PT", agg.lastReq.Country)
}

func TestRouter_Layers_MissingCoordinates(t *testing.T) {
	t.Parallel()

	r := buildRouter(&stubEnricher{}, &stubLayerQuerier{})

	req := httptest.NewRequest(http.MethodGet, "/layers?lat=39.5", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "lat and lng")
}
