// Package overpass queries OpenStreetMap data through the Overpass API,
// falling back across mirrored endpoints when one is overloaded.
package overpass

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/terrafind/enrich-cli/internal/resilience"
)

// DefaultEndpoints are the public Overpass mirrors, tried in order.
var DefaultEndpoints = []string{
	"https://overpass-api.de/api/interpreter",
	"https://overpass.kumi.systems/api/interpreter",
	"https://maps.mail.ru/osm/tools/overpass/api/interpreter",
}

// Client executes Overpass QL queries.
type Client interface {
	Query(ctx context.Context, ql string) (*Response, error)
}

// LatLon is a vertex of a way geometry.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Element is a single OSM element from an Overpass response.
type Element struct {
	Type     string            `json:"type"` // node | way | relation
	ID       int64             `json:"id"`
	Lat      float64           `json:"lat,omitempty"`
	Lon      float64           `json:"lon,omitempty"`
	Tags     map[string]string `json:"tags,omitempty"`
	Geometry []LatLon          `json:"geometry,omitempty"`
}

// Response is the Overpass JSON envelope.
type Response struct {
	Version  float64   `json:"version"`
	Elements []Element `json:"elements"`
}

// Option configures the client.
type Option func(*httpClient)

// WithEndpoints overrides the mirror list.
func WithEndpoints(endpoints []string) Option {
	return func(c *httpClient) {
		c.endpoints = endpoints
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetryPolicy overrides the per-mirror retry policy.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(c *httpClient) {
		c.retry = p
	}
}

type httpClient struct {
	endpoints []string
	http      *http.Client
	retry     resilience.Policy
}

// NewClient creates an Overpass client over the default mirrors.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		endpoints: DefaultEndpoints,
		// Combined category queries routinely take tens of seconds.
		http:  &http.Client{Timeout: 120 * time.Second},
		retry: resilience.DefaultPolicy(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Query runs the QL statement against each mirror in order. A mirror is
// retried on transient failure before falling through to the next one; only
// when every mirror is exhausted does the call fail.
func (c *httpClient) Query(ctx context.Context, ql string) (*Response, error) {
	if len(c.endpoints) == 0 {
		return nil, eris.New("overpass: no endpoints configured")
	}

	var lastErr error
	for _, endpoint := range c.endpoints {
		p := c.retry
		p.OnRetry = resilience.RetryLogger("overpass", endpoint)

		resp, err := resilience.DoVal(ctx, p, func(ctx context.Context) (*Response, error) {
			return c.queryOne(ctx, endpoint, ql)
		})
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, lastErr
		}
		zap.L().Warn("overpass mirror failed, trying next",
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
	}
	return nil, eris.Wrap(lastErr, "overpass: all mirrors failed")
}

func (c *httpClient) queryOne(ctx context.Context, endpoint, ql string) (*Response, error) {
	form := url.Values{"data": {ql}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "overpass: build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("overpass: unexpected status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "overpass: unmarshal response")
	}
	return &out, nil
}
