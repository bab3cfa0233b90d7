package models

import (
	"github.com/atmosguard/atmosguard/internal/environment"
)

// ForecastResponse is the 24-hour simulated AQI strip for a base AQI.
type ForecastResponse struct {
	Base   int      `json:"base"`
	Series []int    `json:"series"`
	Bands  []string `json:"bands"`
}

// DynamicAQIResponse is a base AQI shifted by a time offset.
type DynamicAQIResponse struct {
	Base        int    `json:"base"`
	Offset      int    `json:"offset"`
	AQI         int    `json:"aqi"`
	Status      string `json:"status"`
	StatusLabel string `json:"statusLabel"`
	Band        string `json:"band"`
}

// InterpolationNode is one neighbour in the interpolation panel.
type InterpolationNode struct {
	Name       string  `json:"name"`
	DistanceKM float64 `json:"distanceKm"`
	AQI        int     `json:"aqi"`
}

// InterpolationPanel is the display-only blind-spot estimate.
type InterpolationPanel struct {
	Nodes  []InterpolationNode `json:"nodes"`
	Target int                 `json:"target"`
}

// FromInterpolationPanel converts a domain panel.
func FromInterpolationPanel(p environment.InterpolationPanel) InterpolationPanel {
	nodes := make([]InterpolationNode, len(p.Nodes))
	for i, n := range p.Nodes {
		nodes[i] = InterpolationNode{Name: n.Name, DistanceKM: n.DistanceKM, AQI: n.AQI}
	}
	return InterpolationPanel{Nodes: nodes, Target: p.Target}
}

// SpikeAlert is the +2 hour PM2.5 projection.
type SpikeAlert struct {
	BasePM25  float64 `json:"basePm25"`
	Projected int     `json:"projected"`
}

func bandStrings(bands []environment.Band) []string {
	if bands == nil {
		return nil
	}
	out := make([]string, len(bands))
	for i, b := range bands {
		out[i] = string(b)
	}
	return out
}

// NewForecastResponse builds the forecast strip for base.
func NewForecastResponse(base int) ForecastResponse {
	series := environment.ForecastSeries(base)
	bands := make([]environment.Band, len(series))
	for i, v := range series {
		bands[i] = environment.ForecastBand(v)
	}
	return ForecastResponse{Base: base, Series: series, Bands: bandStrings(bands)}
}

// NewDynamicAQIResponse shifts base by offset hours.
func NewDynamicAQIResponse(base, offset int) DynamicAQIResponse {
	v := environment.DynamicAQI(base, offset)
	status := environment.Classify(v)
	return DynamicAQIResponse{
		Base:        base,
		Offset:      offset,
		AQI:         v,
		Status:      string(status),
		StatusLabel: status.Label(),
		Band:        string(environment.BandFor(v)),
	}
}
