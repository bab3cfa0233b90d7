// Package models holds the wire types of the AtmosGuard API.
package models

import (
	"encoding/json"
	"time"

	"github.com/atmosguard/atmosguard/internal/geo"
)

// Point is a coordinate on the wire.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func FromCoordinate(c geo.Coordinate) Point {
	return Point{Lat: c.Lat, Lon: c.Lon}
}

func (p Point) Coordinate() geo.Coordinate {
	return geo.Coordinate{Lat: p.Lat, Lon: p.Lon}
}

// Timestamp serialises as RFC 3339 in UTC with second precision.
type Timestamp time.Time

// Now returns the current time as a Timestamp.
func Now() Timestamp {
	return Timestamp(time.Now())
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Truncate(time.Second))
}

// UnmarshalJSON accepts any RFC 3339 string. null leaves t untouched.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var parsed time.Time
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

func (t Timestamp) Time() time.Time {
	return time.Time(t)
}
