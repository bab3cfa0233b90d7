package osrm

import (
	"fmt"

	"github.com/atmosguard/atmosguard/internal/geo"
)

// OSRM route API response structures.

type routeResponse struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Routes  []route `json:"routes"`
}

type route struct {
	Distance float64  `json:"distance"`
	Duration float64  `json:"duration"`
	Geometry geometry `json:"geometry"`
}

// geometry is a GeoJSON LineString; coordinates are [lon, lat] pairs.
type geometry struct {
	Type        string      `json:"type"`
	Coordinates [][]float64 `json:"coordinates"`
}

// path swaps every [lon, lat] pair into a Coordinate.
func (g geometry) path() ([]geo.Coordinate, error) {
	path := make([]geo.Coordinate, 0, len(g.Coordinates))
	for i, pair := range g.Coordinates {
		c, ok := geo.FromLonLat(pair)
		if !ok {
			return nil, fmt.Errorf("coordinate %d has %d elements", i, len(pair))
		}
		path = append(path, c)
	}
	return path, nil
}
