package environment

import (
	"math"
	"time"
)

// AutoPlayInterval is how often the predictive slider advances while playing.
const AutoPlayInterval = 800 * time.Millisecond

// ForecastHours is the length of the forecast strip.
const ForecastHours = 24

// MaxPredictiveHour is the upper bound of the predictive slider.
const MaxPredictiveHour = 24

// MinDisplayAQI is the floor applied to every simulated AQI value.
const MinDisplayAQI = 10

// MaxInputAQI bounds AQI values accepted from clients for the derived
// series. It sits well past the 500 top of the US scale.
const MaxInputAQI = 1000

// Round rounds half toward positive infinity, so Round(2.5) == 3 and
// Round(-2.5) == -2. This is the rounding the dashboard has always displayed.
func Round(x float64) int {
	return int(math.Floor(x + 0.5))
}

// DynamicAQI shifts a base AQI by a time offset (2.5 points per hour),
// never going below MinDisplayAQI.
func DynamicAQI(base, offsetHours int) int {
	return max(MinDisplayAQI, base+Round(float64(offsetHours)*2.5))
}

// ForecastSeries returns the 24-hour simulated strip for a base AQI:
// predicted[i] = max(10, base + round(sin(i/2) * 20)).
func ForecastSeries(base int) []int {
	series := make([]int, ForecastHours)
	for i := range series {
		series[i] = max(MinDisplayAQI, base+Round(math.Sin(float64(i)/2)*20))
	}
	return series
}

// AdvanceHour moves the predictive slider one step, wrapping to 0 after MaxPredictiveHour.
func AdvanceHour(hour int) int {
	if hour >= MaxPredictiveHour {
		return 0
	}
	return hour + 1
}

// Band is a coarse colour band used by the UI for AQI values.
type Band string

const (
	BandGreen  Band = "green"
	BandYellow Band = "yellow"
	BandRed    Band = "red"
)

// BandFor returns the band used for the station panel (strict lower bounds).
func BandFor(aqi int) Band {
	switch {
	case aqi < 50:
		return BandGreen
	case aqi < 100:
		return BandYellow
	default:
		return BandRed
	}
}

// ForecastBand returns the band used for forecast strip cells.
func ForecastBand(aqi int) Band {
	switch {
	case aqi > 100:
		return BandRed
	case aqi > 50:
		return BandYellow
	default:
		return BandGreen
	}
}

// InterpolationNode is one neighbour shown in the spatial interpolation panel.
type InterpolationNode struct {
	Name       string
	DistanceKM float64
	AQI        int
}

// InterpolationPanel is the display-only "blind spot" estimate.
type InterpolationPanel struct {
	Nodes  []InterpolationNode
	Target int
}

// interpolation offsets and fallbacks shown when the base AQI is unknown.
var interpolationNodes = []struct {
	name     string
	distance float64
	offset   int
	fallback int
}{
	{"Node Alpha", 1.2, 14, 142},
	{"Node Beta", 2.8, -8, 122},
	{"Node Gamma", 4.5, 27, 155},
}

const interpolationFallbackTarget = 130

// NewInterpolationPanel builds the panel from the overview AQI (nil when unknown).
func NewInterpolationPanel(aqi *int) InterpolationPanel {
	panel := InterpolationPanel{
		Nodes:  make([]InterpolationNode, 0, len(interpolationNodes)),
		Target: interpolationFallbackTarget,
	}
	if aqi != nil {
		panel.Target = *aqi
	}
	for _, n := range interpolationNodes {
		value := n.fallback
		if aqi != nil {
			value = *aqi + n.offset
		}
		panel.Nodes = append(panel.Nodes, InterpolationNode{Name: n.name, DistanceKM: n.distance, AQI: value})
	}
	return panel
}

// SpikeAlert is the display-only +2 hour PM2.5 projection.
type SpikeAlert struct {
	BasePM25  float64
	Projected int
}

const (
	spikeFactor            = 1.4
	spikeFallbackBase      = 45
	spikeFallbackProjected = 63
)

// NewSpikeAlert builds the projection from the overview PM2.5 (nil when unknown).
func NewSpikeAlert(pm25 *float64) SpikeAlert {
	if pm25 == nil {
		return SpikeAlert{BasePM25: spikeFallbackBase, Projected: spikeFallbackProjected}
	}
	return SpikeAlert{BasePM25: *pm25, Projected: Round(*pm25 * spikeFactor)}
}

// OutdoorAdvice returns "Optimal" below AQI 100 and "Caution" otherwise.
func OutdoorAdvice(aqi int) string {
	if aqi < 100 {
		return "Optimal"
	}
	return "Caution"
}

// Visibility returns "Clear" below 60% humidity and "Hazy" otherwise.
func Visibility(humidity int) string {
	if humidity < 60 {
		return "Clear"
	}
	return "Hazy"
}
