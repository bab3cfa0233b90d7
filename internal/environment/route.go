package environment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atmosguard/atmosguard/internal/geo"
)

// Route errors. Upstream clients return ErrLocationNotFound and ErrNoRoute
// directly so the service can map them to their stage.
var (
	ErrMissingLocation  = errors.New("start and end locations are required")
	ErrLocationNotFound = errors.New("location not found")
	ErrNoRoute          = errors.New("no route found")
)

// Geocoder resolves a free-text place name to a coordinate.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (geo.Coordinate, error)
}

// Router computes a driving path between two coordinates.
// The returned path is in (latitude, longitude) order.
type Router interface {
	Route(ctx context.Context, from, to geo.Coordinate) ([]geo.Coordinate, error)
}

// RouteStage identifies where a route computation failed.
type RouteStage string

const (
	StageValidation RouteStage = "validation"
	StageGeocode    RouteStage = "geocode"
	StageRoute      RouteStage = "route"
	StageUnexpected RouteStage = "unexpected"
)

// User-facing route failure messages.
const (
	MessageMissingLocation  = "Please enter both Start and End locations."
	MessageLocationNotFound = "Could not find one of the locations."
	MessageNoRoute          = "No driving route found between these locations."
	MessageRouteFailed      = "Error calculating route."
)

// RouteError is returned by ComputeRoute. Message is safe to show to users.
type RouteError struct {
	Stage   RouteStage
	Message string
	Err     error
}

func (e *RouteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("route %s: %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("route %s: %s", e.Stage, e.Message)
}

func (e *RouteError) Unwrap() error {
	return e.Err
}

// ComputeRoute geocodes start and end and asks the router for a driving path.
// Stages run strictly in order: validate, geocode start, geocode end, route.
func (s *Service) ComputeRoute(ctx context.Context, start, end string) (*RouteResult, error) {
	start = strings.TrimSpace(start)
	end = strings.TrimSpace(end)
	if start == "" || end == "" {
		return nil, &RouteError{Stage: StageValidation, Message: MessageMissingLocation, Err: ErrMissingLocation}
	}

	from, err := s.geocode(ctx, start)
	if err != nil {
		return nil, s.routeFailure(StageGeocode, err)
	}

	to, err := s.geocode(ctx, end)
	if err != nil {
		return nil, s.routeFailure(StageGeocode, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	path, err := s.router.Route(callCtx, from, to)
	if err != nil {
		return nil, s.routeFailure(StageRoute, err)
	}
	if len(path) == 0 {
		return nil, &RouteError{Stage: StageRoute, Message: MessageNoRoute, Err: ErrNoRoute}
	}

	s.logger.Debug().
		Str("start", start).
		Str("end", end).
		Int("points", len(path)).
		Msg("route computed")

	return &RouteResult{Start: from, End: to, Path: path}, nil
}

func (s *Service) geocode(ctx context.Context, query string) (geo.Coordinate, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	return s.geocoder.Geocode(callCtx, query)
}

// routeFailure maps a stage failure to its user-facing outcome.
// Anything that is not a known miss is reported as unexpected.
func (s *Service) routeFailure(stage RouteStage, err error) *RouteError {
	s.logger.Warn().Err(err).Str("stage", string(stage)).Msg("route computation failed")

	switch {
	case errors.Is(err, ErrLocationNotFound):
		return &RouteError{Stage: StageGeocode, Message: MessageLocationNotFound, Err: err}
	case errors.Is(err, ErrNoRoute):
		return &RouteError{Stage: StageRoute, Message: MessageNoRoute, Err: err}
	default:
		return &RouteError{Stage: StageUnexpected, Message: MessageRouteFailed, Err: err}
	}
}
