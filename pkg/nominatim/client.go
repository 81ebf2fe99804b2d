// Package nominatim reverse-geocodes coordinates to municipality and country
// via the OSM Nominatim API, honoring its 1 request/second usage policy.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL   = "https://nominatim.openstreetmap.org"
	defaultUserAgent = "terrafind-enrich-cli/1.0"
)

// Client reverse-geocodes a coordinate.
type Client interface {
	Reverse(ctx context.Context, lat, lng float64) (*Result, error)
}

// Result is the reverse-geocoding outcome. Matched=false means the point has
// no address (open ocean) and is not an error.
type Result struct {
	Municipality string `json:"municipality"`
	County       string `json:"county,omitempty"`
	State        string `json:"state,omitempty"`
	CountryCode  string `json:"country_code"` // ISO 3166-1 alpha-2, upper case
	DisplayName  string `json:"display_name,omitempty"`
	Matched      bool   `json:"matched"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the Nominatim endpoint (for mirrors and tests).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithUserAgent sets the User-Agent header Nominatim requires.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default 1 rps limiter (tests only; the public
// API forbids more).
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

type httpClient struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
}

// NewClient creates a Nominatim client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:   defaultBaseURL,
		userAgent: defaultUserAgent,
		http:      &http.Client{Timeout: 15 * time.Second},
		limiter:   rate.NewLimiter(1, 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// reverseResponse is the subset of the Nominatim JSON response we consume.
type reverseResponse struct {
	Error       string `json:"error,omitempty"`
	DisplayName string `json:"display_name"`
	Address     struct {
		Municipality string `json:"municipality"`
		City         string `json:"city"`
		Town         string `json:"town"`
		Village      string `json:"village"`
		County       string `json:"county"`
		State        string `json:"state"`
		CountryCode  string `json:"country_code"`
	} `json:"address"`
}

func (c *httpClient) Reverse(ctx context.Context, lat, lng float64) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "nominatim: rate limit")
	}

	params := url.Values{
		"lat":            {fmt.Sprintf("%f", lat)},
		"lon":            {fmt.Sprintf("%f", lng)},
		"format":         {"jsonv2"},
		"zoom":           {"10"},
		"addressdetails": {"1"},
	}
	reqURL := c.baseURL + "/reverse?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "nominatim: build request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "nominatim: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "nominatim: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("nominatim: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var rr reverseResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return nil, eris.Wrap(err, "nominatim: unmarshal response")
	}

	// "Unable to geocode" is the ocean case, not a failure.
	if rr.Error != "" {
		return &Result{Matched: false}, nil
	}

	return &Result{
		Municipality: pickMunicipality(rr),
		County:       rr.Address.County,
		State:        rr.Address.State,
		CountryCode:  strings.ToUpper(rr.Address.CountryCode),
		DisplayName:  rr.DisplayName,
		Matched:      true,
	}, nil
}

// pickMunicipality prefers the explicit municipality field, then falls back
// through the settlement ladder Nominatim uses for Iberian addresses.
func pickMunicipality(rr reverseResponse) string {
	for _, v := range []string{
		rr.Address.Municipality,
		rr.Address.City,
		rr.Address.Town,
		rr.Address.Village,
		rr.Address.County,
	} {
		if v != "" {
			return v
		}
	}
	return ""
}
