// Package elevation looks up terrain elevation through the Open-Elevation
// REST API.
package elevation

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

const defaultBaseURL = "https://api.open-elevation.com"

// Client resolves elevation for a coordinate.
type Client interface {
	Lookup(ctx context.Context, lat, lng float64) (*Result, error)
}

// Result holds the elevation at a point.
type Result struct {
	ElevationM float64 `json:"elevation_m"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the API endpoint.
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

// NewClient creates an Open-Elevation client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		retry:   resilience.DefaultPolicy(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type lookupResponse struct {
	Results []struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Elevation float64 `json:"elevation"`
	} `json:"results"`
}

// Lookup resolves the elevation at a point. Transient HTTP statuses (429,
// 5xx) are retried with backoff before the call fails.
func (c *httpClient) Lookup(ctx context.Context, lat, lng float64) (*Result, error) {
	params := url.Values{
		"locations": {fmt.Sprintf("%f,%f", lat, lng)},
	}
	reqURL := c.baseURL + "/api/v1/lookup?" + params.Encode()

	p := c.retry
	p.OnRetry = resilience.RetryLogger("elevation", "lookup")

	body, err := resilience.DoVal(ctx, p, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "elevation: build request")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "elevation: send request")
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "elevation: read response")
		}
		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("elevation: unexpected status %d", resp.StatusCode)
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

	var lr lookupResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return nil, eris.Wrap(err, "elevation: unmarshal response")
	}
	if len(lr.Results) == 0 {
		return nil, eris.New("elevation: empty result set")
	}

	return &Result{ElevationM: lr.Results[0].Elevation}, nil
}
