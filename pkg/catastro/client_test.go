package catastro

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrafind/enrich-cli/internal/resilience"
)

func testPolicy() resilience.Policy {
	return resilience.Policy{Attempts: 2, BaseDelay: time.Millisecond, Multiplier: 1}
}

func TestReverseReference_Match(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "Consulta_RCCOOR")
		assert.Equal(t, "EPSG:4326", r.URL.Query().Get("SRS"))

		w.Write([]byte(`{"Consulta_RCCOORResult":{
			"control":{"cucoor":1,"cuerr":0},
			"coordenadas":{"coord":[{"pc":{"pc1":"9872023V","pc2":"H5797S"},"ldt":"CL GRAN VIA 1 MADRID"}]}
		}}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	got, err := c.ReverseReference(context.Background(), 40.42, -3.70)

	require.NoError(t, err)
	assert.True(t, got.Matched)
	assert.Equal(t, "9872023VH5797S", got.CadastralReference)
	assert.Equal(t, "CL GRAN VIA 1 MADRID", got.Address)
}

func TestReverseReference_NoParcel(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Consulta_RCCOORResult":{
			"control":{"cucoor":0,"cuerr":1},
			"lerr":{"err":[{"cod":"16","des":"NO HAY PARCELA"}]}
		}}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	got, err := c.ReverseReference(context.Background(), 43.0, -8.0)

	require.NoError(t, err)
	assert.False(t, got.Matched)
	assert.Empty(t, got.CadastralReference)
}

func TestReverseReference_ServerError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetryPolicy(testPolicy()))
	_, err := c.ReverseReference(context.Background(), 40.4, -3.7)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	// A transient status is retried up to the attempt budget.
	assert.Equal(t, int32(2), calls.Load())
}

func TestReverseReference_RetriesTransientFailure(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"Consulta_RCCOORResult":{
			"control":{"cucoor":1,"cuerr":0},
			"coordenadas":{"coord":[{"pc":{"pc1":"9872023V","pc2":"H5797S"},"ldt":"CL GRAN VIA 1 MADRID"}]}
		}}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetryPolicy(testPolicy()))
	got, err := c.ReverseReference(context.Background(), 40.42, -3.70)

	require.NoError(t, err)
	assert.True(t, got.Matched)
	assert.Equal(t, "9872023VH5797S", got.CadastralReference)
	assert.Equal(t, int32(2), calls.Load())
}

func TestReverseReference_MalformedJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<xml/>`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.ReverseReference(context.Background(), 40.4, -3.7)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}
