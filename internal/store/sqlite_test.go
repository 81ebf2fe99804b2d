package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "plots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLite_UpsertAndGet(t *testing.T) {
	t.Parallel()
	s := newSQLiteStore(t)
	ctx := context.Background()

	err := s.UpsertEnrichment(ctx, "plot-1", 38.72, -9.14, map[string]json.RawMessage{
		"amenities": json.RawMessage(`{"radius_meters":10000}`),
	}, nil)
	require.NoError(t, err)

	p, err := s.GetPlot(ctx, "plot-1")
	require.NoError(t, err)
	assert.Equal(t, 38.72, p.Latitude)
	assert.JSONEq(t, `{"radius_meters":10000}`, string(p.EnrichmentData["amenities"]))
	assert.Nil(t, p.RealLatitude)
}

func TestSQLite_MergePreservesSiblingKeys(t *testing.T) {
	t.Parallel()
	s := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertEnrichment(ctx, "plot-1", 1, 2, map[string]json.RawMessage{
		"zoning": json.RawMessage(`{"label":"rustico"}`),
	}, nil))
	require.NoError(t, s.UpsertEnrichment(ctx, "plot-1", 1, 2, map[string]json.RawMessage{
		"layers": json.RawMessage(`{"found":5}`),
	}, nil))

	p, err := s.GetPlot(ctx, "plot-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"label":"rustico"}`, string(p.EnrichmentData["zoning"]))
	assert.JSONEq(t, `{"found":5}`, string(p.EnrichmentData["layers"]))
}

func TestSQLite_SameKeyLastWriteWins(t *testing.T) {
	t.Parallel()
	s := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertEnrichment(ctx, "plot-1", 1, 2, map[string]json.RawMessage{
		"zoning": json.RawMessage(`{"label":"old"}`),
	}, nil))
	require.NoError(t, s.UpsertEnrichment(ctx, "plot-1", 1, 2, map[string]json.RawMessage{
		"zoning": json.RawMessage(`{"label":"new"}`),
	}, nil))

	p, err := s.GetPlot(ctx, "plot-1")
	require.NoError(t, err)

	var z struct {
		Label string `json:"label"`
	}
	require.NoError(t, json.Unmarshal(p.EnrichmentData["zoning"], &z))
	assert.Equal(t, "new", z.Label)
}

func TestSQLite_RealCoords(t *testing.T) {
	t.Parallel()
	s := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertEnrichment(ctx, "plot-1", 38.0, -9.0, nil, &RealCoords{Latitude: 38.001, Longitude: -9.001}))

	p, err := s.GetPlot(ctx, "plot-1")
	require.NoError(t, err)
	require.NotNil(t, p.RealLatitude)
	assert.Equal(t, 38.001, *p.RealLatitude)
	require.NotNil(t, p.RealLongitude)
	assert.Equal(t, -9.001, *p.RealLongitude)
}

func TestSQLite_ListPlots(t *testing.T) {
	t.Parallel()
	s := newSQLiteStore(t)
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, s.UpsertEnrichment(ctx, id, 1, 2, nil, nil))
	}

	plots, err := s.ListPlots(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, plots, 2)
	assert.Equal(t, "a", plots[0].ID)
	assert.Equal(t, "b", plots[1].ID)

	rest, err := s.ListPlots(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "c", rest[0].ID)
}

func TestSQLite_GetPlotNotFound(t *testing.T) {
	t.Parallel()
	s := newSQLiteStore(t)

	_, err := s.GetPlot(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
