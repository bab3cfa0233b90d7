package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/atmosguard/atmosguard/internal/api/models"
	"github.com/atmosguard/atmosguard/internal/api/response"
	"github.com/atmosguard/atmosguard/internal/dashboard"
	"github.com/atmosguard/atmosguard/internal/geolocation"
)

// SessionHandler exposes dashboard sessions: one view-model per open
// dashboard, driven by these actions.
type SessionHandler struct {
	store  *dashboard.Store
	logger zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(store *dashboard.Store, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{store: store, logger: logger}
}

// CreateSession handles POST /v1/sessions. The first overview refresh starts
// in the background from the optional lat/lon hint; subscribers see it land.
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess := h.store.Create()
	hint := geolocation.HintFromRequest(r)

	go sess.RefreshOverview(context.WithoutCancel(r.Context()), hint)

	response.Created(w, r, "/v1/sessions/"+sess.ID(), models.FromView(sess.View()))
}

// GetSession handles GET /v1/sessions/{id}.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	response.JSON(w, r, http.StatusOK, models.FromView(sess.View()))
}

// DeleteSession handles DELETE /v1/sessions/{id}.
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(chi.URLParam(r, "id")); err != nil {
		response.NotFound(w, r, "session not found")
		return
	}
	response.NoContent(w, r)
}

// SetTab handles PUT /v1/sessions/{id}/tab.
func (h *SessionHandler) SetTab(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var input models.SetTabRequest
	if err := decodeJSON(r, &input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	tab, err := dashboard.ParseTab(input.Tab)
	if err != nil {
		response.BadRequest(w, r, err.Error(), []models.FieldError{{Field: "tab", Message: "unknown tab", Code: "INVALID"}})
		return
	}

	h.writeMutation(w, r, sess, sess.SetTab(tab))
}

// SetForecastOffset handles PUT /v1/sessions/{id}/forecast-offset.
func (h *SessionHandler) SetForecastOffset(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var input models.SetForecastOffsetRequest
	if err := decodeJSON(r, &input); err != nil || input.Hours == nil {
		response.BadRequest(w, r, "hours is required", []models.FieldError{{Field: "hours", Message: "required", Code: "REQUIRED"}})
		return
	}

	h.writeMutation(w, r, sess, sess.SetForecastOffset(*input.Hours))
}

// SetPredictiveHour handles PUT /v1/sessions/{id}/predictive-hour. Moving the
// slider by hand stops auto-play.
func (h *SessionHandler) SetPredictiveHour(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var input models.SetPredictiveHourRequest
	if err := decodeJSON(r, &input); err != nil || input.Hour == nil {
		response.BadRequest(w, r, "hour is required", []models.FieldError{{Field: "hour", Message: "required", Code: "REQUIRED"}})
		return
	}

	h.writeMutation(w, r, sess, sess.SetPredictiveHour(*input.Hour))
}

// Play handles POST /v1/sessions/{id}/play.
func (h *SessionHandler) Play(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeMutation(w, r, sess, sess.Play())
}

// Pause handles POST /v1/sessions/{id}/pause.
func (h *SessionHandler) Pause(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeMutation(w, r, sess, sess.Pause())
}

// RefreshOverview handles POST /v1/sessions/{id}/overview:refresh with an
// optional lat/lon hint.
func (h *SessionHandler) RefreshOverview(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	changed := sess.RefreshOverview(r.Context(), geolocation.HintFromRequest(r))
	h.writeAction(w, r, sess, changed)
}

// SelectPoint handles POST /v1/sessions/{id}/point:select.
func (h *SessionHandler) SelectPoint(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var input models.SelectPointRequest
	if err := decodeJSON(r, &input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	coord, errs := coordinateBody(input)
	if len(errs) > 0 {
		response.BadRequest(w, r, "lat and lon are required", errs)
		return
	}

	changed := sess.SelectPoint(r.Context(), coord)
	h.writeAction(w, r, sess, changed)
}

// SelectHeatPoint handles POST /v1/sessions/{id}/heat:select.
func (h *SessionHandler) SelectHeatPoint(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var input models.SelectPointRequest
	if err := decodeJSON(r, &input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	coord, errs := coordinateBody(input)
	if len(errs) > 0 {
		response.BadRequest(w, r, "lat and lon are required", errs)
		return
	}

	changed := sess.SelectHeatPoint(r.Context(), coord)
	h.writeAction(w, r, sess, changed)
}

// ComputeRoute handles POST /v1/sessions/{id}/route:compute. A second request
// while one is running is rejected with 409.
func (h *SessionHandler) ComputeRoute(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var input models.RouteComputeRequest
	if err := decodeJSON(r, &input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	_, err := sess.ComputeRoute(r.Context(), input.Start, input.End)
	switch {
	case err == nil:
		response.JSON(w, r, http.StatusOK, models.FromView(sess.View()))
	case errors.Is(err, dashboard.ErrRouteBusy):
		response.Conflict(w, r, "a route is already being calculated for this session")
	case errors.Is(err, dashboard.ErrSessionClosed):
		response.NotFound(w, r, "session not found")
	default:
		writeRouteError(w, r, err)
	}
}

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*dashboard.Session, bool) {
	sess, err := h.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		response.NotFound(w, r, "session not found")
		return nil, false
	}
	return sess, true
}

func (h *SessionHandler) writeMutation(w http.ResponseWriter, r *http.Request, sess *dashboard.Session, err error) {
	switch {
	case err == nil:
		response.JSON(w, r, http.StatusOK, models.FromView(sess.View()))
	case errors.Is(err, dashboard.ErrOffsetOutOfRange):
		response.BadRequest(w, r, err.Error(), []models.FieldError{{Field: "hours", Message: "must be between -24 and 24", Code: "OUT_OF_RANGE"}})
	case errors.Is(err, dashboard.ErrHourOutOfRange):
		response.BadRequest(w, r, err.Error(), []models.FieldError{{Field: "hour", Message: "must be between 0 and 24", Code: "OUT_OF_RANGE"}})
	case errors.Is(err, dashboard.ErrSessionClosed):
		response.NotFound(w, r, "session not found")
	default:
		h.logger.Error().Err(err).Str("session_id", sess.ID()).Msg("session update failed")
		response.InternalError(w, r, "session update failed")
	}
}

func (h *SessionHandler) writeAction(w http.ResponseWriter, r *http.Request, sess *dashboard.Session, changed bool) {
	response.JSON(w, r, http.StatusOK, models.SessionActionResponse{
		Changed: changed,
		Session: models.FromView(sess.View()),
	})
}
