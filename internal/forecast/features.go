// Package forecast produces 15-day AQI predictions from a feature snapshot
// and a pluggable prediction model.
package forecast

import (
	"time"

	"github.com/breatheroute/aqiguard/internal/aqi"
)

// Feature names, in model input order.
const (
	FeatureTemperature     = "T2M"
	FeatureWindSpeed       = "WS10M"
	FeatureSolarRadiation  = "ALLSKY_SFC_SW_DWN"
	FeatureDayOfYear       = "day_of_year"
	FeatureMonth           = "month"
	FeatureHasAsthma       = "has_asthma"
	FeatureIsSmoker        = "is_smoker"
	FeatureHighSensitivity = "high_sensitivity"
)

// FeatureNames lists every model input in vector order.
var FeatureNames = []string{
	FeatureTemperature,
	FeatureWindSpeed,
	FeatureSolarRadiation,
	FeatureDayOfYear,
	FeatureMonth,
	FeatureHasAsthma,
	FeatureIsSmoker,
	FeatureHighSensitivity,
}

// DefaultSolarRadiation is used when no irradiance measurement is
// available (W/m²).
const DefaultSolarRadiation = 200

// Features is one model input row.
type Features struct {
	Temperature     float64
	WindSpeed       float64
	SolarRadiation  float64
	DayOfYear       int
	Month           int
	HasAsthma       bool
	IsSmoker        bool
	HighSensitivity bool
}

// Vector returns the features as floats in FeatureNames order.
func (f Features) Vector() []float64 {
	return []float64{
		f.Temperature,
		f.WindSpeed,
		f.SolarRadiation,
		float64(f.DayOfYear),
		float64(f.Month),
		boolFloat(f.HasAsthma),
		boolFloat(f.IsSmoker),
		boolFloat(f.HighSensitivity),
	}
}

// WithDate returns a copy with the calendar features set for day.
func (f Features) WithDate(day time.Time) Features {
	f.DayOfYear = day.YearDay()
	f.Month = int(day.Month())
	return f
}

// ProfileFeatures copies the profile flags the model uses. COPD and
// allergies are not model inputs.
func (f Features) ProfileFeatures(p aqi.HealthProfile) Features {
	f.HasAsthma = p.HasAsthma
	f.IsSmoker = p.IsSmoker
	f.HighSensitivity = p.HighSensitivity
	return f
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
