// Package aqi holds the scoring rules of the personalization pipeline:
// pollutant conversion, health-profile weighting, weather correction and
// alert-tier classification. Everything here is pure and allocation-free.
package aqi

// Tier is an ordered alert severity band.
type Tier string

const (
	TierGreen  Tier = "green"
	TierYellow Tier = "yellow"
	TierOrange Tier = "orange"
	TierRed    Tier = "red"
)

// Upper bounds (inclusive) of the green, yellow and orange tiers.
const (
	GreenMax  = 50
	YellowMax = 100
	OrangeMax = 150
)

// Classify maps an AQI value to its tier. It is the only place a tier is
// derived, so a tier always matches the number it was computed from.
func Classify(value int) Tier {
	switch {
	case value <= GreenMax:
		return TierGreen
	case value <= YellowMax:
		return TierYellow
	case value <= OrangeMax:
		return TierOrange
	default:
		return TierRed
	}
}

// ClassifyFloat classifies a fractional value (forecast output) with the
// same inclusive cut points as Classify.
func ClassifyFloat(value float64) Tier {
	switch {
	case value <= GreenMax:
		return TierGreen
	case value <= YellowMax:
		return TierYellow
	case value <= OrangeMax:
		return TierOrange
	default:
		return TierRed
	}
}

// Rank orders tiers from 0 (green) to 3 (red). Unknown tiers rank -1.
func (t Tier) Rank() int {
	switch t {
	case TierGreen:
		return 0
	case TierYellow:
		return 1
	case TierOrange:
		return 2
	case TierRed:
		return 3
	default:
		return -1
	}
}

// Valid reports whether t is one of the four known tiers.
func (t Tier) Valid() bool {
	return t.Rank() >= 0
}
