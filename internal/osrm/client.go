// Package osrm provides a client for the OSRM route service.
package osrm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
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
	// ProviderName identifies this routing provider.
	ProviderName = "osrm"

	// DefaultBaseURL is the public OSRM demo server.
	DefaultBaseURL = "https://router.project-osrm.org"

	// DefaultProfile is the routing profile used for every request.
	DefaultProfile = "driving"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 15 * time.Second
)

// OSRM response codes that mean the points could not be connected.
const (
	codeNoRoute   = "NoRoute"
	codeNoSegment = "NoSegment"
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the OSRM client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional, defaults to the public demo server).
	BaseURL string

	// Profile is the routing profile (optional, defaults to "driving").
	Profile string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 15s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Metrics records provider call metrics (optional).
	Metrics *telemetry.ProviderMetrics

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OSRM route client. It implements environment.Router.
type Client struct {
	baseURL    string
	profile    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new OSRM client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	profile := cfg.Profile
	if profile == "" {
		profile = DefaultProfile
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
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		profile:    profile,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Route returns the geometry of the first route between from and to, in
// (latitude, longitude) order.
func (c *Client) Route(ctx context.Context, from, to geo.Coordinate) ([]geo.Coordinate, error) {
	// OSRM takes {lon},{lat} pairs.
	endpoint := fmt.Sprintf("%s/route/v1/%s/%s,%s;%s,%s?overview=full&geometries=geojson",
		c.baseURL, c.profile,
		formatFloat(from.Lon), formatFloat(from.Lat),
		formatFloat(to.Lon), formatFloat(to.Lat))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Float64("origin_lat", from.Lat).
		Float64("origin_lon", from.Lon).
		Float64("dest_lat", to.Lat).
		Float64("dest_lon", to.Lon).
		Msg("requesting route from OSRM")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Msg("osrm request failed")
		return nil, &environment.ProviderError{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach routing provider",
			Err:      fmt.Errorf("%w: %w", environment.ErrProviderUnavailable, err),
		}
	}
	defer resp.Body.Close()

	var body routeResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)

	// OSRM answers unroutable requests with 400 and a NoRoute/NoSegment code.
	if decodeErr == nil && (body.Code == codeNoRoute || body.Code == codeNoSegment) {
		return nil, &environment.ProviderError{
			Provider: ProviderName,
			Code:     "NO_ROUTE",
			Message:  body.Message,
			Err:      environment.ErrNoRoute,
		}
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error().
			Int("status", resp.StatusCode).
			Str("code", body.Code).
			Msg("osrm returned non-200 status")
		return nil, environment.StatusError(ProviderName, resp.StatusCode)
	}

	if decodeErr != nil {
		return nil, &environment.ProviderError{
			Provider: ProviderName,
			Code:     "DECODE_FAILED",
			Message:  "could not decode route response",
			Err:      fmt.Errorf("%w: %w", environment.ErrInvalidResponse, decodeErr),
		}
	}

	if len(body.Routes) == 0 {
		return nil, &environment.ProviderError{
			Provider: ProviderName,
			Code:     "NO_ROUTE",
			Message:  "no routes in response",
			Err:      environment.ErrNoRoute,
		}
	}

	path, err := body.Routes[0].Geometry.path()
	if err != nil {
		return nil, &environment.ProviderError{
			Provider: ProviderName,
			Code:     "INVALID_GEOMETRY",
			Message:  "route geometry is malformed",
			Err:      fmt.Errorf("%w: %w", environment.ErrInvalidResponse, err),
		}
	}

	c.logger.Debug().
		Int("points", len(path)).
		Float64("distance_m", body.Routes[0].Distance).
		Msg("received route from OSRM")

	return path, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
