package models

import (
	"github.com/atmosguard/atmosguard/internal/regional"
)

// RegionalReading is one row of the regional overview board.
type RegionalReading struct {
	Region      string    `json:"region"`
	Slug        string    `json:"slug"`
	Position    Point     `json:"position"`
	Reading     Reading   `json:"reading"`
	RefreshedAt Timestamp `json:"refreshedAt"`
}

// RegionsResponse is the response for GET /v1/regions.
type RegionsResponse struct {
	Regions []RegionalReading `json:"regions"`
	Count   int               `json:"count"`
}

// FromRegionalReadings converts the board rows.
func FromRegionalReadings(rows []regional.Reading) RegionsResponse {
	out := make([]RegionalReading, len(rows))
	for i, r := range rows {
		out[i] = RegionalReading{
			Region:      r.Region,
			Slug:        regional.Slug(r.Region),
			Position:    FromCoordinate(r.Coordinate),
			Reading:     FromReading(r.Reading),
			RefreshedAt: Timestamp(r.RefreshedAt),
		}
	}
	return RegionsResponse{Regions: out, Count: len(out)}
}
