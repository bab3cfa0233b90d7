package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/atmosguard/atmosguard/internal/api/models"
	"github.com/atmosguard/atmosguard/internal/api/response"
	"github.com/atmosguard/atmosguard/internal/environment"
)

// RouteComputer computes a driving route between two place names.
type RouteComputer interface {
	ComputeRoute(ctx context.Context, start, end string) (*environment.RouteResult, error)
}

// RouteHandler handles routing endpoints.
type RouteHandler struct {
	computer RouteComputer
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(computer RouteComputer) *RouteHandler {
	return &RouteHandler{computer: computer}
}

// ComputeRoute handles POST /v1/routes:compute.
func (h *RouteHandler) ComputeRoute(w http.ResponseWriter, r *http.Request) {
	var input models.RouteComputeRequest
	if err := decodeJSON(r, &input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	result, err := h.computer.ComputeRoute(r.Context(), input.Start, input.End)
	if err != nil {
		writeRouteError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.FromRouteResult(result))
}

// writeRouteError maps a route failure stage to its status code. The
// user-facing message travels as the problem detail.
func writeRouteError(w http.ResponseWriter, r *http.Request, err error) {
	var routeErr *environment.RouteError
	if !errors.As(err, &routeErr) {
		response.BadGateway(w, r, environment.MessageRouteFailed)
		return
	}

	switch routeErr.Stage {
	case environment.StageValidation:
		response.BadRequest(w, r, routeErr.Message, []models.FieldError{
			{Field: "start", Message: "required", Code: "REQUIRED"},
			{Field: "end", Message: "required", Code: "REQUIRED"},
		})
	case environment.StageGeocode, environment.StageRoute:
		response.NotFound(w, r, routeErr.Message)
	default:
		response.BadGateway(w, r, routeErr.Message)
	}
}
