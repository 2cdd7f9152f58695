// Package geo resolves origin addresses to locations via the ip-api.com
// JSON endpoint, with a process-lifetime cache in front of it.
//
// The resolver carries a short timeout and fails open: a timeout, rate
// limit, or malformed response yields the Unknown placeholder instead of
// stalling the reconciliation pass.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/Peuqui/endlessh-exporter/internal/domain"
)

// DefaultEndpoint is the lookup URL template; %s is the origin address.
// ip-api.com allows 45 unauthenticated requests per minute, which the
// cache keeps us well under.
const DefaultEndpoint = "http://ip-api.com/json/%s?fields=status,country,countryCode,lat,lon,city"

const (
	defaultTimeout  = 2 * time.Second
	maxResponseSize = 64 * 1024
)

var errLookupFailed = errors.New("geolocation lookup failed")

type apiResponse struct {
	Status      string  `json:"status"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

// Resolver queries the online API. It implements ports.GeoResolver.
type Resolver struct {
	mu       sync.RWMutex
	endpoint string
	client   *http.Client
}

// ResolverConfig configures the online lookup.
type ResolverConfig struct {
	Endpoint string        // URL template with %s for the address
	Timeout  time.Duration // per-request timeout (default 2s)
}

func NewResolver(config ResolverConfig) *Resolver {
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	return &Resolver{
		endpoint: config.Endpoint,
		client:   &http.Client{Timeout: config.Timeout},
	}
}

// SetEndpoint swaps the URL template; applied on the next lookup.
func (r *Resolver) SetEndpoint(endpoint string) {
	if endpoint == "" {
		return
	}
	r.mu.Lock()
	r.endpoint = endpoint
	r.mu.Unlock()
}

func (r *Resolver) lookupURL(ip string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fmt.Sprintf(r.endpoint, ip)
}

// Resolve looks up ip online. On any failure it returns the Unknown
// placeholder together with the error.
func (r *Resolver) Resolve(ctx context.Context, ip string) (domain.GeoLocation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.lookupURL(ip), nil)
	if err != nil {
		return domain.UnknownLocation(), fmt.Errorf("build geolocation request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return domain.UnknownLocation(), fmt.Errorf("%w: %w", errLookupFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.UnknownLocation(), fmt.Errorf("%w: status %d", errLookupFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return domain.UnknownLocation(), fmt.Errorf("%w: %w", errLookupFailed, err)
	}

	var api apiResponse
	if err := json.Unmarshal(body, &api); err != nil {
		return domain.UnknownLocation(), fmt.Errorf("%w: %w", errLookupFailed, err)
	}
	if api.Status != "success" {
		return domain.UnknownLocation(), fmt.Errorf("%w: api status %q", errLookupFailed, api.Status)
	}

	loc := domain.GeoLocation{
		Country:     api.Country,
		CountryCode: api.CountryCode,
		City:        api.City,
		Lat:         api.Lat,
		Lon:         api.Lon,
	}
	if loc.Country == "" {
		loc.Country = "Unknown"
	}
	if loc.CountryCode == "" {
		loc.CountryCode = "XX"
	}
	if loc.City == "" {
		loc.City = "Unknown"
	}
	return loc, nil
}
