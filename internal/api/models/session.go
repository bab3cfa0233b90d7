package models

import (
	"github.com/atmosguard/atmosguard/internal/dashboard"
)

// SessionView is the full dashboard view-model for one session.
type SessionView struct {
	ID             string          `json:"id"`
	Tab            string          `json:"tab"`
	Tabs           []string        `json:"tabs"`
	ForecastOffset int             `json:"forecastOffset"`
	PredictiveHour int             `json:"predictiveHour"`
	Playing        bool            `json:"playing"`
	Position       Point           `json:"position"`
	Overview       Reading         `json:"overview"`
	Station        StationSnapshot `json:"station"`
	Heat           HeatSnapshot    `json:"heat"`
	Route          *RouteResponse  `json:"route"`
	RouteVisible   bool            `json:"routeVisible"`
	Routing        bool            `json:"routing"`
	UpdatedAt      Timestamp       `json:"updatedAt"`
	Derived        DerivedView     `json:"derived"`
}

// DerivedView holds the display values computed from the session state.
type DerivedView struct {
	DynamicAQI         *int               `json:"dynamicAqi"`
	DynamicStatus      *string            `json:"dynamicStatus"`
	DynamicStatusLabel *string            `json:"dynamicStatusLabel"`
	StationBand        *string            `json:"stationBand"`
	Forecast           []int              `json:"forecast"`
	ForecastBands      []string           `json:"forecastBands"`
	Interpolation      InterpolationPanel `json:"interpolation"`
	Spike              SpikeAlert         `json:"spike"`
	OutdoorAdvice      string             `json:"outdoorAdvice"`
	Visibility         string             `json:"visibility"`
}

// FromView converts a dashboard view.
func FromView(v dashboard.View) SessionView {
	tabs := make([]string, len(dashboard.Tabs))
	for i, t := range dashboard.Tabs {
		tabs[i] = string(t)
	}

	d := DerivedView{
		DynamicAQI:    v.Derived.DynamicAQI,
		Forecast:      v.Derived.Forecast,
		ForecastBands: bandStrings(v.Derived.ForecastBands),
		Interpolation: FromInterpolationPanel(v.Derived.Interpolation),
		Spike:         SpikeAlert{BasePM25: v.Derived.Spike.BasePM25, Projected: v.Derived.Spike.Projected},
		OutdoorAdvice: v.Derived.OutdoorAdvice,
		Visibility:    v.Derived.Visibility,
	}
	if s := v.Derived.DynamicStatus; s != nil {
		status, label := string(*s), s.Label()
		d.DynamicStatus = &status
		d.DynamicStatusLabel = &label
	}
	if b := v.Derived.StationBand; b != nil {
		band := string(*b)
		d.StationBand = &band
	}

	return SessionView{
		ID:             v.SessionID,
		Tab:            string(v.Tab),
		Tabs:           tabs,
		ForecastOffset: v.ForecastOffset,
		PredictiveHour: v.PredictiveHour,
		Playing:        v.Playing,
		Position:       FromCoordinate(v.Position),
		Overview:       FromReading(v.Overview),
		Station:        FromStationSnapshot(v.Station),
		Heat:           FromHeatSnapshot(v.Heat),
		Route:          FromRouteResult(v.Route),
		RouteVisible:   v.RouteVisible,
		Routing:        v.Routing,
		UpdatedAt:      Timestamp(v.UpdatedAt),
		Derived:        d,
	}
}

// SessionActionResponse is returned by the fetch actions. Changed is false when
// the fetch failed and the previous snapshot was kept.
type SessionActionResponse struct {
	Changed bool        `json:"changed"`
	Session SessionView `json:"session"`
}

// SetTabRequest is the body of PUT /v1/sessions/{id}/tab.
type SetTabRequest struct {
	Tab string `json:"tab"`
}

// SetForecastOffsetRequest is the body of PUT /v1/sessions/{id}/forecast-offset.
type SetForecastOffsetRequest struct {
	Hours *int `json:"hours"`
}

// SetPredictiveHourRequest is the body of PUT /v1/sessions/{id}/predictive-hour.
type SetPredictiveHourRequest struct {
	Hour *int `json:"hour"`
}

// SelectPointRequest is the body of the point and heat selection actions.
type SelectPointRequest struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}
