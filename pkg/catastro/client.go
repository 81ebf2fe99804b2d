// Package catastro queries the Spanish Direccion General del Catastro
// coordinate services (Consulta_RCCOOR) for the cadastral reference at a
// point. Parcel geometry comes separately from the INSPIRE WFS.
package catastro

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/terrafind/enrich-cli/internal/resilience"
)

const defaultBaseURL = "https://ovc.catastro.meh.es/OVCServWeb/OVCSWLocalizacionRC/OVCCoordenadas.svc/json"

// Client resolves cadastral references from coordinates.
type Client interface {
	ReverseReference(ctx context.Context, lat, lng float64) (*Reference, error)
}

// Reference is the cadastral reference at a coordinate. Matched=false means
// no registered parcel covers the point.
type Reference struct {
	CadastralReference string `json:"cadastral_reference"`
	Address            string `json:"address,omitempty"`
	Matched            bool   `json:"matched"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the Catastro endpoint.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetryPolicy overrides the default retry behavior.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(c *httpClient) {
		c.retry = p
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	retry   resilience.Policy
}

// NewClient creates a Catastro coordinate client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		retry:   resilience.DefaultPolicy(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// rccoorResponse mirrors the Consulta_RCCOOR JSON envelope.
type rccoorResponse struct {
	Result struct {
		Control struct {
			CUCoor int `json:"cucoor"`
			CUErr  int `json:"cuerr"`
		} `json:"control"`
		Coordenadas struct {
			Coord []struct {
				PC struct {
					PC1 string `json:"pc1"`
					PC2 string `json:"pc2"`
				} `json:"pc"`
				LDT string `json:"ldt"`
			} `json:"coord"`
		} `json:"coordenadas"`
		Errores struct {
			Err []struct {
				Cod string `json:"cod"`
				Des string `json:"des"`
			} `json:"err"`
		} `json:"lerr"`
	} `json:"Consulta_RCCOORResult"`
}

func (c *httpClient) ReverseReference(ctx context.Context, lat, lng float64) (*Reference, error) {
	params := url.Values{
		"SRS":          {"EPSG:4326"},
		"Coordenada_X": {fmt.Sprintf("%f", lng)},
		"Coordenada_Y": {fmt.Sprintf("%f", lat)},
	}
	reqURL := c.baseURL + "/Consulta_RCCOOR?" + params.Encode()

	p := c.retry
	p.OnRetry = resilience.RetryLogger("catastro", "rccoor")

	body, err := resilience.DoVal(ctx, p, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "catastro: build request")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "catastro: send request")
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "catastro: read response")
		}
		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("catastro: unexpected status %d", resp.StatusCode)
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}

	var rr rccoorResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return nil, eris.Wrap(err, "catastro: unmarshal response")
	}

	// Error code 16 means "no parcel at these coordinates", which is a
	// miss rather than a failure.
	if rr.Result.Control.CUErr > 0 || len(rr.Result.Coordenadas.Coord) == 0 {
		return &Reference{Matched: false}, nil
	}

	coord := rr.Result.Coordenadas.Coord[0]
	ref := coord.PC.PC1 + coord.PC.PC2
	if ref == "" {
		return &Reference{Matched: false}, nil
	}

	return &Reference{
		CadastralReference: ref,
		Address:            coord.LDT,
		Matched:            true,
	}, nil
}
