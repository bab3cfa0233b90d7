// Package environment turns raw weather, air-quality, geocoding and routing
// responses into the values the dashboard renders.
//
// Everything in this package is stateless: operations take a coordinate or a
// place name and return a freshly built value or an error. Keeping the last
// good value around is the caller's responsibility.
package environment

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/atmosguard/atmosguard/internal/geo"
)

// Upstream errors.
var (
	ErrMissingCurrent      = errors.New("upstream response has no current payload")
	ErrProviderUnavailable = errors.New("environment provider unavailable")
	ErrRateLimitExceeded   = errors.New("provider rate limit exceeded")
	ErrInvalidResponse     = errors.New("provider response does not match schema")
)

// ProviderError provides detailed error information from an upstream provider.
type ProviderError struct {
	Provider string // Provider that generated the error
	Code     string // Short machine-readable code, e.g. HTTP_503
	Message  string // Human-readable error message
	Err      error  // Underlying error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Provider + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Provider + ": " + e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the failure is transient.
func (e *ProviderError) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}

// StatusError maps a non-200 upstream status code to a ProviderError.
func StatusError(provider string, statusCode int) *ProviderError {
	err := &ProviderError{
		Provider: provider,
		Code:     fmt.Sprintf("HTTP_%d", statusCode),
		Message:  fmt.Sprintf("provider returned status %d", statusCode),
		Err:      ErrProviderUnavailable,
	}
	if statusCode == http.StatusTooManyRequests {
		err.Code = "RATE_LIMIT"
		err.Message = "provider rate limit exceeded"
		err.Err = ErrRateLimitExceeded
	}
	return err
}

// Status is the qualitative label attached to an AQI value.
type Status string

const (
	StatusGood               Status = "GOOD"
	StatusModerate           Status = "MODERATE"
	StatusUnhealthySensitive Status = "UNHEALTHY_SENSITIVE"
	StatusUnhealthy          Status = "UNHEALTHY"
	StatusHazardous          Status = "HAZARDOUS"
	StatusLoading            Status = "LOADING"
)

// Label returns the display label for the status.
func (s Status) Label() string {
	switch s {
	case StatusGood:
		return "Good"
	case StatusModerate:
		return "Moderate"
	case StatusUnhealthySensitive:
		return "Unhealthy for Sensitive"
	case StatusUnhealthy:
		return "Unhealthy"
	case StatusHazardous:
		return "Hazardous"
	default:
		return "Loading..."
	}
}

// ThermalStatus classifies a surface temperature.
type ThermalStatus string

const (
	ThermalNormal           ThermalStatus = "NORMAL"
	ThermalSevereHeatIsland ThermalStatus = "SEVERE_HEAT_ISLAND"
	ThermalElevatedStress   ThermalStatus = "ELEVATED_STRESS"
)

// Label returns the display label for the thermal status.
func (s ThermalStatus) Label() string {
	switch s {
	case ThermalSevereHeatIsland:
		return "Severe Heat Island"
	case ThermalElevatedStress:
		return "Elevated Stress"
	default:
		return "Normal"
	}
}

// Reading is the overview reading for the user's current location.
// Nil fields are unknown (not yet fetched).
type Reading struct {
	Temperature *int
	Humidity    *int
	PM25        *float64
	AQI         *int
	Status      Status
}

// LoadingReading returns the sentinel shown before the first successful fetch.
func LoadingReading() Reading {
	return Reading{Status: StatusLoading}
}

// IsLoading reports whether r is still the loading sentinel.
func (r Reading) IsLoading() bool {
	return r.Status == StatusLoading
}

// StationSnapshot is the pollutant breakdown for the most recently selected point.
type StationSnapshot struct {
	Name    string
	AQI     *int
	Status  Status
	Message string
	PM10    *float64
	PM25    *float64
	NO2     *float64
	O3      *float64
	CO      *float64
}

// DefaultStationSnapshot returns the snapshot shown before any map selection.
func DefaultStationSnapshot() StationSnapshot {
	return StationSnapshot{
		Name:    "IIT Patna",
		AQI:     intPtr(45),
		Status:  StatusGood,
		Message: "Perfect conditions.",
		PM10:    floatPtr(32),
		PM25:    floatPtr(12),
		NO2:     floatPtr(12),
		O3:      floatPtr(18),
		CO:      floatPtr(0.4),
	}
}

// HeatSnapshot is the thermal reading for the most recently selected heat point.
type HeatSnapshot struct {
	Name               string
	Temperature        int
	SurfaceTemperature int
	Humidity           float64
	Status             ThermalStatus
	Message            string
}

// DefaultHeatSnapshot returns the snapshot shown before any heat map selection.
func DefaultHeatSnapshot() HeatSnapshot {
	return HeatSnapshot{
		Name:               "Regional Overview",
		Temperature:        34,
		SurfaceTemperature: 42,
		Humidity:           45,
		Status:             ThermalElevatedStress,
		Message:            "High urban heat retention detected. Hydration mandatory.",
	}
}

// RouteResult is a computed driving path between two geocoded places.
// Path is in (latitude, longitude) order.
type RouteResult struct {
	Start geo.Coordinate
	End   geo.Coordinate
	Path  []geo.Coordinate
}

// CurrentWeather is the subset of the weather service's current payload we use.
type CurrentWeather struct {
	Temperature float64
	Humidity    float64
}

// CurrentAirQuality is the subset of the air-quality service's current payload we use.
// Optional pollutants are nil when they were not requested or not reported.
type CurrentAirQuality struct {
	USAQI *float64
	PM25  *float64
	PM10  *float64
	CO    *float64
	NO2   *float64
	O3    *float64
}

func intPtr(v int) *int {
	return &v
}

func floatPtr(v float64) *float64 {
	return &v
}
