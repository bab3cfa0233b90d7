package environment

// Advisory messages, one per severity tier.
const (
	advisoryGood      = "Air quality is good. Outdoor activity is safe for everyone."
	advisoryModerate  = "Air quality is acceptable. Unusually sensitive people should limit prolonged outdoor exertion."
	advisoryUnhealthy = "Unhealthy air. Reduce outdoor exertion and wear a mask near traffic."
	advisoryHazardous = "Hazardous air. Avoid all outdoor activity and keep windows closed."
)

// Thermal advisory messages.
const (
	thermalMessageSevere = "Warning: High thermal retention. Prolonged exposure unsafe."
	thermalMessageNormal = "Standard thermal conditions."
)

// SurfaceHeatOffset is the fixed offset added to ambient temperature to
// estimate surface temperature.
const SurfaceHeatOffset = 8.5

// SevereHeatThreshold is the surface temperature above which a point is a heat island.
const SevereHeatThreshold = 40

// AQIValue is an index as reported upstream (float) or derived locally (int).
type AQIValue interface {
	~int | ~float64
}

// Classify maps an AQI value to its status bucket.
// Boundaries belong to the lower-severity bucket: 50 is Good, 100 is Moderate,
// 50.4 is Moderate.
func Classify[T AQIValue](aqi T) Status {
	switch {
	case aqi <= 50:
		return StatusGood
	case aqi <= 100:
		return StatusModerate
	case aqi <= 150:
		return StatusUnhealthySensitive
	case aqi <= 200:
		return StatusUnhealthy
	default:
		return StatusHazardous
	}
}

// Advisory returns the fixed advisory message for an AQI value.
// Tiers: <=50, <=100, <=200, >200.
func Advisory[T AQIValue](aqi T) string {
	switch {
	case aqi <= 50:
		return advisoryGood
	case aqi <= 100:
		return advisoryModerate
	case aqi <= 200:
		return advisoryUnhealthy
	default:
		return advisoryHazardous
	}
}

// ClassifyThermal returns the thermal status and advisory for a surface temperature.
func ClassifyThermal(surface int) (ThermalStatus, string) {
	if surface > SevereHeatThreshold {
		return ThermalSevereHeatIsland, thermalMessageSevere
	}
	return ThermalNormal, thermalMessageNormal
}

// SurfaceTemperature estimates surface temperature from ambient temperature.
func SurfaceTemperature(ambient float64) int {
	return Round(ambient + SurfaceHeatOffset)
}
