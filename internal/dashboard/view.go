package dashboard

import (
	"slices"
	"time"

	"github.com/atmosguard/atmosguard/internal/environment"
	"github.com/atmosguard/atmosguard/internal/geo"
)

// View is an immutable snapshot of a session plus every value derived from it.
type View struct {
	SessionID      string
	Tab            Tab
	ForecastOffset int
	PredictiveHour int
	Playing        bool
	Position       geo.Coordinate
	Overview       environment.Reading
	Station        environment.StationSnapshot
	Heat           environment.HeatSnapshot
	Route          *environment.RouteResult
	RouteVisible   bool
	Routing        bool
	UpdatedAt      time.Time
	Derived        Derived
}

// Derived holds display values recomputed from the session state on every view.
type Derived struct {
	// DynamicAQI is the station AQI shifted by the forecast offset; nil when the station AQI is unknown.
	DynamicAQI    *int
	DynamicStatus *environment.Status
	StationBand   *environment.Band

	// Forecast is the 24-hour strip for the overview AQI; nil while it is unknown.
	Forecast      []int
	ForecastBands []environment.Band

	Interpolation environment.InterpolationPanel
	Spike         environment.SpikeAlert
	OutdoorAdvice string
	Visibility    string
}

func derive(st *state) Derived {
	d := Derived{
		Interpolation: environment.NewInterpolationPanel(st.overview.AQI),
		Spike:         environment.NewSpikeAlert(st.overview.PM25),
		// An unknown reading compares as false, so it reads as Caution and Hazy.
		OutdoorAdvice: "Caution",
		Visibility:    "Hazy",
	}

	if base := st.station.AQI; base != nil {
		v := environment.DynamicAQI(*base, st.forecastOffset)
		status := environment.Classify(v)
		band := environment.BandFor(v)
		d.DynamicAQI = &v
		d.DynamicStatus = &status
		d.StationBand = &band
	}

	if aqi := st.overview.AQI; aqi != nil {
		d.Forecast = environment.ForecastSeries(*aqi)
		d.ForecastBands = make([]environment.Band, len(d.Forecast))
		for i, v := range d.Forecast {
			d.ForecastBands[i] = environment.ForecastBand(v)
		}
		d.OutdoorAdvice = environment.OutdoorAdvice(*aqi)
	}
	if h := st.overview.Humidity; h != nil {
		d.Visibility = environment.Visibility(*h)
	}

	return d
}

func cloneRoute(r *environment.RouteResult) *environment.RouteResult {
	if r == nil {
		return nil
	}
	c := *r
	c.Path = slices.Clone(r.Path)
	return &c
}
