package aqi

import "math"

// Pollutant identifies the quantity a raw reading measures.
type Pollutant string

const (
	PollutantPM25    Pollutant = "pm25"
	PollutantPM10    Pollutant = "pm10"
	PollutantNO2     Pollutant = "no2"
	PollutantO3      Pollutant = "o3"
	PollutantSO2     Pollutant = "so2"
	PollutantCO      Pollutant = "co"
	PollutantUnknown Pollutant = "unknown"

	// PollutantIndex marks a value that a provider already reports on the
	// 0-500 AQI scale.
	PollutantIndex Pollutant = "index"
)

// ParsePollutant normalizes provider parameter names ("pm2.5", "PM25", ...).
func ParsePollutant(name string) Pollutant {
	switch name {
	case "pm25", "pm2.5", "PM25", "PM2.5", "pm2_5":
		return PollutantPM25
	case "pm10", "PM10":
		return PollutantPM10
	case "no2", "NO2":
		return PollutantNO2
	case "o3", "O3":
		return PollutantO3
	case "so2", "SO2":
		return PollutantSO2
	case "co", "CO":
		return PollutantCO
	case "aqi", "AQI", "index":
		return PollutantIndex
	default:
		return PollutantUnknown
	}
}

// ReadingStatus tells a computed value apart from the fixed fallback.
type ReadingStatus string

const (
	StatusComputed ReadingStatus = "computed"
	StatusFallback ReadingStatus = "fallback"
)

const (
	// FallbackAQI is used when no provider returned a usable measurement.
	FallbackAQI = 50

	// MaxAQI is the top of the scale.
	MaxAQI = 500

	// approximateCap bounds pollutants that have no breakpoint table.
	approximateCap = 200
)

// RawReading is a concentration as reported by a data provider.
type RawReading struct {
	Value     float64
	Pollutant Pollutant
}

// Reading is a raw reading converted to the AQI scale.
type Reading struct {
	AQI       int
	Pollutant Pollutant
	Status    ReadingStatus
}

// Degraded reports whether the value is the fallback rather than a measurement.
func (r Reading) Degraded() bool {
	return r.Status == StatusFallback
}

type breakpoint struct {
	concLow, concHigh float64
	aqiLow, aqiHigh   int
}

// pm25Breakpoints is the EPA PM2.5 table (µg/m³ to AQI).
var pm25Breakpoints = []breakpoint{
	{0.0, 12.0, 0, 50},
	{12.1, 35.4, 51, 100},
	{35.5, 55.4, 101, 150},
	{55.5, 150.4, 151, 200},
	{150.5, 250.4, 201, 300},
	{250.5, 350.4, 301, 400},
	{350.5, 500.4, 401, 500},
}

// Convert maps a concentration to the AQI scale.
//
// PM2.5 is interpolated linearly inside its EPA breakpoint row and
// truncated toward zero. Other pollutants have no table here and use the
// lossy approximation min(int(value), 200).
func Convert(kind Pollutant, concentration float64) int {
	switch kind {
	case PollutantPM25:
		return convertPM25(concentration)
	case PollutantIndex:
		return clamp(int(concentration), 0, MaxAQI)
	default:
		return clamp(int(concentration), 0, approximateCap)
	}
}

func convertPM25(c float64) int {
	if c <= 0 || math.IsNaN(c) {
		return 0
	}
	for _, bp := range pm25Breakpoints {
		if c <= bp.concHigh {
			slope := float64(bp.aqiHigh-bp.aqiLow) / (bp.concHigh - bp.concLow)
			return int(slope*(c-bp.concLow) + float64(bp.aqiLow))
		}
	}
	return MaxAQI
}

// ConvertReading converts r, or returns the fallback reading when r is nil.
func ConvertReading(r *RawReading) Reading {
	if r == nil {
		return Reading{AQI: FallbackAQI, Pollutant: PollutantUnknown, Status: StatusFallback}
	}
	return Reading{
		AQI:       Convert(r.Pollutant, r.Value),
		Pollutant: r.Pollutant,
		Status:    StatusComputed,
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
