// Package nominatim provides a client for the OpenStreetMap Nominatim search API.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/atmosguard/atmosguard/internal/environment"
	"github.com/atmosguard/atmosguard/internal/geo"
	"github.com/atmosguard/atmosguard/internal/provider/resilience"
	"github.com/atmosguard/atmosguard/internal/telemetry"
)

const (
	// ProviderName identifies this geocoding provider.
	ProviderName = "nominatim"

	// DefaultBaseURL is the public Nominatim instance.
	DefaultBaseURL = "https://nominatim.openstreetmap.org"

	// DefaultUserAgent identifies the application, as the Nominatim usage policy requires.
	DefaultUserAgent = "atmosguard/1.0 (+https://github.com/atmosguard/atmosguard)"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Nominatim client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional, defaults to the public instance).
	BaseURL string

	// UserAgent is sent with every request (optional).
	UserAgent string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Metrics records provider call metrics (optional).
	Metrics *telemetry.ProviderMetrics

	// Logger for client operations.
	Logger zerolog.Logger
}

// Place is one search candidate.
type Place struct {
	Coordinate  geo.Coordinate
	DisplayName string
	Type        string
	Importance  float64
}

// Client is a Nominatim API client. It implements environment.Geocoder.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new Nominatim client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.Registry = cfg.Registry
		clientCfg.Metrics = cfg.Metrics
		clientCfg.Logger = cfg.Logger
		// The public instance allows one request per second.
		clientCfg.MaxRetries = 1
		clientCfg.InitialInterval = time.Second
		breaker := resilience.DefaultBreakerConfig(ProviderName)
		breaker.OpenTimeout = 2 * time.Minute
		clientCfg.Breaker = &breaker
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Search returns the ordered candidates for a free-text query.
// Candidates whose coordinates cannot be parsed are skipped.
func (c *Client) Search(ctx context.Context, query string) ([]Place, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("q", query)
	endpoint := c.baseURL + "/search?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("query", query).Msg("nominatim request failed")
		return nil, &environment.ProviderError{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach geocoding provider",
			Err:      fmt.Errorf("%w: %w", environment.ErrProviderUnavailable, err),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error().Int("status", resp.StatusCode).Msg("nominatim returned non-200 status")
		return nil, environment.StatusError(ProviderName, resp.StatusCode)
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, &environment.ProviderError{
			Provider: ProviderName,
			Code:     "DECODE_FAILED",
			Message:  "could not decode search results",
			Err:      fmt.Errorf("%w: %w", environment.ErrInvalidResponse, err),
		}
	}

	places := make([]Place, 0, len(results))
	for _, r := range results {
		place, err := r.toPlace()
		if err != nil {
			c.logger.Warn().Err(err).Str("display_name", r.DisplayName).Msg("skipping unparsable candidate")
			continue
		}
		places = append(places, place)
	}

	c.logger.Debug().
		Str("query", query).
		Int("candidates", len(places)).
		Msg("geocoded query")

	return places, nil
}

// Geocode returns the first candidate for query, or environment.ErrLocationNotFound
// when there is none.
func (c *Client) Geocode(ctx context.Context, query string) (geo.Coordinate, error) {
	places, err := c.Search(ctx, query)
	if err != nil {
		return geo.Coordinate{}, err
	}
	if len(places) == 0 {
		return geo.Coordinate{}, fmt.Errorf("%q: %w", query, environment.ErrLocationNotFound)
	}
	return places[0].Coordinate, nil
}

// searchResult is one element of the Nominatim JSON array. Coordinates are strings.
type searchResult struct {
	PlaceID     int64   `json:"place_id"`
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Type        string  `json:"type"`
	Importance  float64 `json:"importance"`
}

func (r searchResult) toPlace() (Place, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return Place{}, fmt.Errorf("parsing lat %q: %w", r.Lat, err)
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return Place{}, fmt.Errorf("parsing lon %q: %w", r.Lon, err)
	}
	return Place{
		Coordinate:  geo.Coordinate{Lat: lat, Lon: lon},
		DisplayName: r.DisplayName,
		Type:        r.Type,
		Importance:  r.Importance,
	}, nil
}
