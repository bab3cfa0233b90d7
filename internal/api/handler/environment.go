package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/atmosguard/atmosguard/internal/api/models"
	"github.com/atmosguard/atmosguard/internal/api/response"
	"github.com/atmosguard/atmosguard/internal/environment"
	"github.com/atmosguard/atmosguard/internal/geo"
	"github.com/atmosguard/atmosguard/internal/geolocation"
)

// EnvironmentFetcher is the part of the aggregation core the stateless
// environment endpoints use.
type EnvironmentFetcher interface {
	FetchOverview(ctx context.Context, coord geo.Coordinate) (*environment.Reading, error)
	FetchPointDetail(ctx context.Context, coord geo.Coordinate) (*environment.StationSnapshot, error)
	FetchHeatDetail(ctx context.Context, coord geo.Coordinate) (*environment.HeatSnapshot, error)
}

// EnvironmentHandler handles the stateless environment endpoints.
type EnvironmentHandler struct {
	fetcher    EnvironmentFetcher
	geolocator *geolocation.Geolocator
	logger     zerolog.Logger
}

// NewEnvironmentHandler creates a new EnvironmentHandler.
func NewEnvironmentHandler(fetcher EnvironmentFetcher, geolocator *geolocation.Geolocator, logger zerolog.Logger) *EnvironmentHandler {
	if geolocator == nil {
		geolocator = geolocation.New(logger)
	}
	return &EnvironmentHandler{fetcher: fetcher, geolocator: geolocator, logger: logger}
}

// Overview handles GET /v1/environment/overview. The lat/lon hint is optional;
// without one the default coordinate is used. Upstream failures answer 200
// with the loading reading.
func (h *EnvironmentHandler) Overview(w http.ResponseWriter, r *http.Request) {
	coord := h.geolocator.Resolve(r.Context(), geolocation.HintFromRequest(r))

	reading := environment.LoadingReading()
	if fetched, err := h.fetcher.FetchOverview(r.Context(), coord); err != nil {
		h.logger.Warn().Err(err).
			Float64("lat", coord.Lat).
			Float64("lon", coord.Lon).
			Msg("overview unavailable, serving loading reading")
	} else {
		reading = *fetched
	}

	response.JSON(w, r, http.StatusOK, models.OverviewResponse{
		Position: models.FromCoordinate(coord),
		Reading:  models.FromReading(reading),
		Time:     models.Now(),
	})
}

// Point handles GET /v1/environment/point.
func (h *EnvironmentHandler) Point(w http.ResponseWriter, r *http.Request) {
	coord, errs := coordinateQuery(r)
	if len(errs) > 0 {
		response.BadRequest(w, r, "lat and lon are required", errs)
		return
	}

	snapshot, err := h.fetcher.FetchPointDetail(r.Context(), coord)
	if err != nil {
		h.logger.Warn().Err(err).Float64("lat", coord.Lat).Float64("lon", coord.Lon).Msg("point detail unavailable")
		response.ServiceUnavailable(w, r, "air quality data is temporarily unavailable")
		return
	}

	response.JSON(w, r, http.StatusOK, models.FromStationSnapshot(*snapshot))
}

// Heat handles GET /v1/environment/heat.
func (h *EnvironmentHandler) Heat(w http.ResponseWriter, r *http.Request) {
	coord, errs := coordinateQuery(r)
	if len(errs) > 0 {
		response.BadRequest(w, r, "lat and lon are required", errs)
		return
	}

	snapshot, err := h.fetcher.FetchHeatDetail(r.Context(), coord)
	if err != nil {
		h.logger.Warn().Err(err).Float64("lat", coord.Lat).Float64("lon", coord.Lon).Msg("heat detail unavailable")
		response.ServiceUnavailable(w, r, "weather data is temporarily unavailable")
		return
	}

	response.JSON(w, r, http.StatusOK, models.FromHeatSnapshot(*snapshot))
}
