// Package openmeteo provides a client for the Open-Meteo forecast and air-quality APIs.
package openmeteo

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
	// ForecastProviderName identifies the weather endpoint in the health registry.
	ForecastProviderName = "open-meteo-forecast"

	// AirQualityProviderName identifies the air-quality endpoint in the health registry.
	AirQualityProviderName = "open-meteo-air-quality"

	// DefaultForecastURL is the Open-Meteo forecast API host.
	DefaultForecastURL = "https://api.open-meteo.com"

	// DefaultAirQualityURL is the Open-Meteo air-quality API host.
	DefaultAirQualityURL = "https://air-quality-api.open-meteo.com"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second
)

// Weather fields requested for every current-conditions call.
var weatherFields = []string{"temperature_2m", "relative_humidity_2m"}

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Open-Meteo client.
type ClientConfig struct {
	// ForecastURL is the forecast API host (optional).
	ForecastURL string

	// AirQualityURL is the air-quality API host (optional).
	AirQualityURL string

	// ForecastHTTPClient and AirQualityHTTPClient are used for the two hosts (optional).
	// If nil, resilient clients with defaults are created, one per host.
	ForecastHTTPClient   HTTPDoer
	AirQualityHTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Metrics records provider call metrics (optional).
	Metrics *telemetry.ProviderMetrics

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an Open-Meteo API client. It implements environment.WeatherSource
// and environment.AirQualitySource.
type Client struct {
	forecastURL   string
	airQualityURL string
	forecast      HTTPDoer
	airQuality    HTTPDoer
	logger        zerolog.Logger
}

// NewClient creates a new Open-Meteo client.
func NewClient(cfg ClientConfig) *Client {
	forecastURL := cfg.ForecastURL
	if forecastURL == "" {
		forecastURL = DefaultForecastURL
	}

	airQualityURL := cfg.AirQualityURL
	if airQualityURL == "" {
		airQualityURL = DefaultAirQualityURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	newHTTPClient := func(name string) HTTPDoer {
		clientCfg := resilience.DefaultClientConfig(name)
		clientCfg.Timeout = timeout
		clientCfg.Registry = cfg.Registry
		clientCfg.Metrics = cfg.Metrics
		clientCfg.Logger = cfg.Logger
		return resilience.NewClient(clientCfg)
	}

	forecast := cfg.ForecastHTTPClient
	if forecast == nil {
		forecast = newHTTPClient(ForecastProviderName)
	}

	airQuality := cfg.AirQualityHTTPClient
	if airQuality == nil {
		airQuality = newHTTPClient(AirQualityProviderName)
	}

	return &Client{
		forecastURL:   strings.TrimRight(forecastURL, "/"),
		airQualityURL: strings.TrimRight(airQualityURL, "/"),
		forecast:      forecast,
		airQuality:    airQuality,
		logger:        cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "open-meteo"
}

// GetCurrentWeather fetches current temperature and relative humidity.
func (c *Client) GetCurrentWeather(ctx context.Context, coord geo.Coordinate) (*environment.CurrentWeather, error) {
	endpoint := c.forecastURL + "/v1/forecast?" + currentQuery(coord, weatherFields)

	var resp forecastResponse
	if err := c.get(ctx, c.forecast, ForecastProviderName, endpoint, &resp); err != nil {
		return nil, err
	}

	if resp.Current == nil || resp.Current.Temperature == nil || resp.Current.Humidity == nil {
		return nil, &environment.ProviderError{
			Provider: ForecastProviderName,
			Code:     "MISSING_CURRENT",
			Message:  "response has no current conditions",
			Err:      environment.ErrMissingCurrent,
		}
	}

	return &environment.CurrentWeather{
		Temperature: *resp.Current.Temperature,
		Humidity:    *resp.Current.Humidity,
	}, nil
}

// GetCurrentAirQuality fetches current pollutant values. Fields are Open-Meteo
// variable names, e.g. "us_aqi" or "pm2_5"; values that were not requested stay nil.
func (c *Client) GetCurrentAirQuality(ctx context.Context, coord geo.Coordinate, fields ...string) (*environment.CurrentAirQuality, error) {
	if len(fields) == 0 {
		fields = environment.OverviewAirQualityFields
	}
	endpoint := c.airQualityURL + "/v1/air-quality?" + currentQuery(coord, fields)

	var resp airQualityResponse
	if err := c.get(ctx, c.airQuality, AirQualityProviderName, endpoint, &resp); err != nil {
		return nil, err
	}

	if resp.Current == nil {
		return nil, &environment.ProviderError{
			Provider: AirQualityProviderName,
			Code:     "MISSING_CURRENT",
			Message:  "response has no current conditions",
			Err:      environment.ErrMissingCurrent,
		}
	}

	cur := resp.Current
	return &environment.CurrentAirQuality{
		USAQI: cur.USAQI,
		PM25:  cur.PM25,
		PM10:  cur.PM10,
		CO:    cur.CarbonMonoxide,
		NO2:   cur.NitrogenDioxide,
		O3:    cur.Ozone,
	}, nil
}

func (c *Client) get(ctx context.Context, doer HTTPDoer, provider, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := doer.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("provider", provider).Msg("open-meteo request failed")
		return &environment.ProviderError{
			Provider: provider,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach provider",
			Err:      fmt.Errorf("%w: %w", environment.ErrProviderUnavailable, err),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error().
			Int("status", resp.StatusCode).
			Str("provider", provider).
			Msg("open-meteo returned non-200 status")
		return environment.StatusError(provider, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &environment.ProviderError{
			Provider: provider,
			Code:     "DECODE_FAILED",
			Message:  "could not decode response",
			Err:      fmt.Errorf("%w: %w", environment.ErrInvalidResponse, err),
		}
	}

	return nil
}

// currentQuery builds latitude/longitude/current query parameters.
// The separating commas are left unescaped, as Open-Meteo documents them.
func currentQuery(coord geo.Coordinate, fields []string) string {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(coord.Lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(coord.Lon, 'f', -1, 64))

	escaped := make([]string, len(fields))
	for i, f := range fields {
		escaped[i] = url.QueryEscape(f)
	}
	return q.Encode() + "&current=" + strings.Join(escaped, ",")
}
