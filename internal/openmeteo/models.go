package openmeteo

// Open-Meteo API response structures. Only the "current" block is decoded;
// every value is a pointer so an absent field can be told apart from zero.

type forecastResponse struct {
	Latitude  float64          `json:"latitude"`
	Longitude float64          `json:"longitude"`
	Current   *currentForecast `json:"current"`
}

type currentForecast struct {
	Time        string   `json:"time"`
	Temperature *float64 `json:"temperature_2m"`
	Humidity    *float64 `json:"relative_humidity_2m"`
}

type airQualityResponse struct {
	Latitude  float64            `json:"latitude"`
	Longitude float64            `json:"longitude"`
	Current   *currentAirQuality `json:"current"`
}

type currentAirQuality struct {
	Time            string   `json:"time"`
	USAQI           *float64 `json:"us_aqi"`
	PM25            *float64 `json:"pm2_5"`
	PM10            *float64 `json:"pm10"`
	CarbonMonoxide  *float64 `json:"carbon_monoxide"`
	NitrogenDioxide *float64 `json:"nitrogen_dioxide"`
	Ozone           *float64 `json:"ozone"`
}
