package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/atmosguard/atmosguard/internal/api/middleware"
	"github.com/atmosguard/atmosguard/internal/api/models"
	"github.com/atmosguard/atmosguard/internal/api/response"
)

// CacheInvalidator clears a cache and reports how many entries it removed.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) (int64, error)
}

// AdminHandler handles operator-only maintenance endpoints.
type AdminHandler struct {
	geocodeCache CacheInvalidator
	logger       zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(geocodeCache CacheInvalidator, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{geocodeCache: geocodeCache, logger: logger}
}

// InvalidateGeocodeCache handles POST /v1/admin/geocode-cache/invalidate.
func (h *AdminHandler) InvalidateGeocodeCache(w http.ResponseWriter, r *http.Request) {
	operator := middleware.GetOperator(r.Context())

	removed, err := h.geocodeCache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Str("operator", operator).Msg("geocode cache invalidation failed")
		response.InternalError(w, r, "could not clear the geocode cache")
		return
	}

	h.logger.Info().Str("operator", operator).Int64("removed", removed).Msg("geocode cache invalidated")
	response.JSON(w, r, http.StatusOK, models.CacheInvalidateResponse{
		Removed:       removed,
		InvalidatedBy: operator,
		InvalidatedAt: models.Now(),
	})
}
