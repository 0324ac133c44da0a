package aqi

// Weather correction thresholds and step sizes.
const (
	WindDispersalSpeed = 5.0  // m/s
	HumidHumidity      = 70.0 // %
	HotTemperature     = 30.0 // °C
	weatherStep        = 5
)

// AdjustForWeather applies the wind, humidity and temperature corrections.
// Each rule is evaluated on its own. The result never goes below zero and
// has no upper cap.
func AdjustForWeather(value int, windSpeed, humidity, temperature float64) int {
	if windSpeed > WindDispersalSpeed {
		value -= weatherStep
	}
	if humidity > HumidHumidity {
		value += weatherStep
	}
	if temperature > HotTemperature {
		value += weatherStep
	}
	if value < 0 {
		return 0
	}
	return value
}
