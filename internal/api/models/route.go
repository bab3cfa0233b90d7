package models

import (
	"math"

	"github.com/atmosguard/atmosguard/internal/environment"
	"github.com/atmosguard/atmosguard/internal/geo"
)

// RouteComputeRequest is the request body for computing a route between two
// free-text place names.
type RouteComputeRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// RouteResponse is a computed driving path. Path is in (lat, lon) order and
// Polyline is the same path in the precision-5 encoded polyline format.
type RouteResponse struct {
	Start          Point   `json:"start"`
	End            Point   `json:"end"`
	Path           []Point `json:"path"`
	Polyline       string  `json:"polyline"`
	DistanceMeters int     `json:"distanceMeters"`
}

// FromRouteResult converts a domain route; nil stays nil.
func FromRouteResult(r *environment.RouteResult) *RouteResponse {
	if r == nil {
		return nil
	}
	path := make([]Point, len(r.Path))
	for i, c := range r.Path {
		path[i] = FromCoordinate(c)
	}
	return &RouteResponse{
		Start:          FromCoordinate(r.Start),
		End:            FromCoordinate(r.End),
		Path:           path,
		Polyline:       geo.EncodePolyline(r.Path),
		DistanceMeters: int(math.Round(geo.PathLengthMeters(r.Path))),
	}
}
