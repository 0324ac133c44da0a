package aqi

// HealthProfile is the set of health conditions that raise a subject's
// sensitivity to air pollution.
type HealthProfile struct {
	HasAsthma       bool `json:"has_asthma"`
	HasCOPD         bool `json:"has_copd"`
	HasAllergies    bool `json:"has_allergies"`
	IsSmoker        bool `json:"is_smoker"`
	HighSensitivity bool `json:"high_sensitivity"`
}

// Additive risk weights per condition.
const (
	WeightAsthma          = 20
	WeightCOPD            = 15
	WeightAllergies       = 10
	WeightSmoker          = 10
	WeightHighSensitivity = 5
)

// RiskWeight is the total adjustment the profile adds to a base AQI.
func (p HealthProfile) RiskWeight() int {
	w := 0
	if p.HasAsthma {
		w += WeightAsthma
	}
	if p.HasCOPD {
		w += WeightCOPD
	}
	if p.HasAllergies {
		w += WeightAllergies
	}
	if p.IsSmoker {
		w += WeightSmoker
	}
	if p.HighSensitivity {
		w += WeightHighSensitivity
	}
	return w
}

// Personalize adds the profile's risk weight to raw. No cap is applied;
// later stages may still move the value before it is classified.
func Personalize(raw int, profile HealthProfile) int {
	return raw + profile.RiskWeight()
}
