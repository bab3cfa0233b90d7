package models

import (
	"github.com/atmosguard/atmosguard/internal/environment"
)

// Reading is the overview reading. Null fields are not yet known.
type Reading struct {
	Temperature *int     `json:"temperature"`
	Humidity    *int     `json:"humidity"`
	PM25        *float64 `json:"pm25"`
	AQI         *int     `json:"aqi"`
	Status      string   `json:"status"`
	StatusLabel string   `json:"statusLabel"`
}

// FromReading converts a domain reading.
func FromReading(r environment.Reading) Reading {
	return Reading{
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		PM25:        r.PM25,
		AQI:         r.AQI,
		Status:      string(r.Status),
		StatusLabel: r.Status.Label(),
	}
}

// OverviewResponse is the response for GET /v1/environment/overview.
type OverviewResponse struct {
	Position Point     `json:"position"`
	Reading  Reading   `json:"reading"`
	Time     Timestamp `json:"time"`
}

// StationSnapshot is the pollutant breakdown for a selected point.
type StationSnapshot struct {
	Name        string   `json:"name"`
	AQI         *int     `json:"aqi"`
	Status      string   `json:"status"`
	StatusLabel string   `json:"statusLabel"`
	Message     string   `json:"message"`
	PM10        *float64 `json:"pm10"`
	PM25        *float64 `json:"pm25"`
	NO2         *float64 `json:"no2"`
	O3          *float64 `json:"o3"`
	CO          *float64 `json:"co"`
}

// FromStationSnapshot converts a domain station snapshot.
func FromStationSnapshot(s environment.StationSnapshot) StationSnapshot {
	return StationSnapshot{
		Name:        s.Name,
		AQI:         s.AQI,
		Status:      string(s.Status),
		StatusLabel: s.Status.Label(),
		Message:     s.Message,
		PM10:        s.PM10,
		PM25:        s.PM25,
		NO2:         s.NO2,
		O3:          s.O3,
		CO:          s.CO,
	}
}

// HeatSnapshot is the thermal reading for a selected heat point.
type HeatSnapshot struct {
	Name               string  `json:"name"`
	Temperature        int     `json:"temperature"`
	SurfaceTemperature int     `json:"surfaceTemperature"`
	Humidity           float64 `json:"humidity"`
	Status             string  `json:"status"`
	StatusLabel        string  `json:"statusLabel"`
	Message            string  `json:"message"`
}

// FromHeatSnapshot converts a domain heat snapshot.
func FromHeatSnapshot(s environment.HeatSnapshot) HeatSnapshot {
	return HeatSnapshot{
		Name:               s.Name,
		Temperature:        s.Temperature,
		SurfaceTemperature: s.SurfaceTemperature,
		Humidity:           s.Humidity,
		Status:             string(s.Status),
		StatusLabel:        s.Status.Label(),
		Message:            s.Message,
	}
}
