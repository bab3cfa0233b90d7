package environment

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/atmosguard/atmosguard/internal/geo"
)

// Air-quality fields requested by each fetcher.
var (
	OverviewAirQualityFields = []string{"pm2_5", "us_aqi"}
	PointAirQualityFields    = []string{"us_aqi", "pm10", "pm2_5", "carbon_monoxide", "nitrogen_dioxide", "ozone"}
)

// WeatherSource returns current ambient conditions for a coordinate.
type WeatherSource interface {
	GetCurrentWeather(ctx context.Context, coord geo.Coordinate) (*CurrentWeather, error)
}

// AirQualitySource returns current pollutant values for a coordinate.
type AirQualitySource interface {
	GetCurrentAirQuality(ctx context.Context, coord geo.Coordinate, fields ...string) (*CurrentAirQuality, error)
}

// ServiceConfig holds configuration for the environment service.
type ServiceConfig struct {
	Weather    WeatherSource
	AirQuality AirQualitySource
	Geocoder   Geocoder
	Router     Router

	// Logger for service operations.
	Logger zerolog.Logger

	// RequestTimeout bounds every individual upstream call (default: 10 seconds).
	RequestTimeout time.Duration
}

// Service aggregates upstream responses into dashboard values.
type Service struct {
	weather        WeatherSource
	airQuality     AirQualitySource
	geocoder       Geocoder
	router         Router
	logger         zerolog.Logger
	requestTimeout time.Duration
}

// NewService creates a new environment service.
func NewService(cfg ServiceConfig) *Service {
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Service{
		weather:        cfg.Weather,
		airQuality:     cfg.AirQuality,
		geocoder:       cfg.Geocoder,
		router:         cfg.Router,
		logger:         cfg.Logger,
		requestTimeout: timeout,
	}
}

// FetchOverview fetches current weather and air quality for coord and merges them.
// Both requests run concurrently; the reading is only produced when both succeed.
func (s *Service) FetchOverview(ctx context.Context, coord geo.Coordinate) (*Reading, error) {
	var (
		weather *CurrentWeather
		air     *CurrentAirQuality
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		callCtx, cancel := context.WithTimeout(gctx, s.requestTimeout)
		defer cancel()

		w, err := s.weather.GetCurrentWeather(callCtx, coord)
		if err != nil {
			return fmt.Errorf("fetching weather: %w", err)
		}
		weather = w
		return nil
	})
	g.Go(func() error {
		callCtx, cancel := context.WithTimeout(gctx, s.requestTimeout)
		defer cancel()

		a, err := s.airQuality.GetCurrentAirQuality(callCtx, coord, OverviewAirQualityFields...)
		if err != nil {
			return fmt.Errorf("fetching air quality: %w", err)
		}
		air = a
		return nil
	})

	if err := g.Wait(); err != nil {
		s.logger.Debug().Err(err).
			Float64("lat", coord.Lat).
			Float64("lon", coord.Lon).
			Msg("overview fetch failed")
		return nil, err
	}

	if weather == nil || air == nil || air.USAQI == nil {
		return nil, ErrMissingCurrent
	}

	aqi := aqiValue(*air.USAQI)
	temp := Round(weather.Temperature)
	humidity := Round(weather.Humidity)

	return &Reading{
		Temperature: &temp,
		Humidity:    &humidity,
		PM25:        air.PM25,
		AQI:         &aqi,
		Status:      Classify(*air.USAQI),
	}, nil
}

// FetchPointDetail fetches the pollutant breakdown for a selected point.
func (s *Service) FetchPointDetail(ctx context.Context, coord geo.Coordinate) (*StationSnapshot, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	air, err := s.airQuality.GetCurrentAirQuality(callCtx, coord, PointAirQualityFields...)
	if err != nil {
		return nil, fmt.Errorf("fetching point air quality: %w", err)
	}
	if air.USAQI == nil {
		return nil, ErrMissingCurrent
	}

	aqi := aqiValue(*air.USAQI)

	return &StationSnapshot{
		Name:    coord.Name(),
		AQI:     &aqi,
		Status:  Classify(*air.USAQI),
		Message: Advisory(*air.USAQI),
		PM10:    air.PM10,
		PM25:    air.PM25,
		NO2:     air.NO2,
		O3:      air.O3,
		CO:      air.CO,
	}, nil
}

// FetchHeatDetail fetches ambient conditions for a selected heat point and
// derives the surface temperature estimate.
func (s *Service) FetchHeatDetail(ctx context.Context, coord geo.Coordinate) (*HeatSnapshot, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	w, err := s.weather.GetCurrentWeather(callCtx, coord)
	if err != nil {
		return nil, fmt.Errorf("fetching heat weather: %w", err)
	}

	surface := SurfaceTemperature(w.Temperature)
	status, message := ClassifyThermal(surface)

	return &HeatSnapshot{
		Name:               coord.Name(),
		Temperature:        Round(w.Temperature),
		SurfaceTemperature: surface,
		Humidity:           w.Humidity,
		Status:             status,
		Message:            message,
	}, nil
}

// aqiValue is the displayed index. Status and advisory are taken from the
// upstream value before rounding.
func aqiValue(v float64) int {
	return int(math.Round(v))
}
