// Package ogc provides shared plumbing for the OGC-flavored geodata
// services this tool queries: WFS GetFeature, WMS GetFeatureInfo, OGC API
// Features and ArcGIS REST. It owns the per-endpoint HTTP clients and the
// typed response envelopes that connectors validate at their boundary.
package ogc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/terrafind/enrich-cli/internal/resilience"
)

const defaultTimeout = 45 * time.Second

// Registry hands out one *http.Client per service host. Government WFS
// endpoints behave very differently (some need long timeouts, some drop
// keep-alive connections), so each host gets its own transport. Callers own
// the registry lifetime and must Clear it on teardown.
type Registry struct {
	mu      sync.Mutex
	clients map[string]*http.Client
	timeout time.Duration
	retry   resilience.Policy
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithTimeout sets the per-request timeout for all clients in the registry.
func WithTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.timeout = d
	}
}

// WithRetryPolicy overrides the retry policy used by GetJSON.
func WithRetryPolicy(p resilience.Policy) RegistryOption {
	return func(r *Registry) {
		r.retry = p
	}
}

// NewRegistry creates an empty client registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		clients: make(map[string]*http.Client),
		timeout: defaultTimeout,
		retry:   resilience.DefaultPolicy(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ClientFor returns the HTTP client for the given URL's host, creating it on
// first use.
func (r *Registry) ClientFor(rawURL string) *http.Client {
	host := hostKey(rawURL)

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[host]; ok {
		return c
	}
	c := &http.Client{
		Timeout: r.timeout,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	r.clients[host] = c
	return c
}

// Clear drops all cached clients and closes their idle connections.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.clients {
		if t, ok := c.Transport.(*http.Transport); ok {
			t.CloseIdleConnections()
		}
	}
	r.clients = make(map[string]*http.Client)
}

func hostKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}

// GetJSON fetches rawURL with retry and decodes the JSON body into out.
// Transient HTTP statuses (429, 5xx) are retried under the registry policy;
// everything else fails immediately.
func (r *Registry) GetJSON(ctx context.Context, rawURL string, out any) error {
	client := r.ClientFor(rawURL)

	body, err := resilience.DoVal(ctx, r.retry, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "ogc: build request")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "ogc: send request")
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "ogc: read response")
		}

		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("ogc: unexpected status %d from %s", resp.StatusCode, hostKey(rawURL))
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}
		return data, nil
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "ogc: unmarshal response")
	}
	return nil
}
