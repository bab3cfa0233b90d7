package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/atmosguard/atmosguard/internal/api/models"
	"github.com/atmosguard/atmosguard/internal/api/response"
	"github.com/atmosguard/atmosguard/internal/regional"
)

// RegionHandler serves the regional overview board the worker keeps fresh.
type RegionHandler struct {
	repo   regional.Repository
	logger zerolog.Logger
}

// NewRegionHandler creates a new RegionHandler.
func NewRegionHandler(repo regional.Repository, logger zerolog.Logger) *RegionHandler {
	return &RegionHandler{repo: repo, logger: logger}
}

// ListRegions handles GET /v1/regions.
func (h *RegionHandler) ListRegions(w http.ResponseWriter, r *http.Request) {
	rows, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("listing regional readings")
		response.ServiceUnavailable(w, r, "regional readings are temporarily unavailable")
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	response.JSON(w, r, http.StatusOK, models.FromRegionalReadings(rows))
}
