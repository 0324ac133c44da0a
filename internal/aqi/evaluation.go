package aqi

import "time"

// Evaluation is the record produced by one pipeline run. It is appended
// to history as-is and never modified afterwards.
type Evaluation struct {
	ID              string
	SubjectID       string // empty for anonymous lookups
	Latitude        float64
	Longitude       float64
	RawAQI          int
	PersonalizedAQI int
	Tier            Tier
	Pollutant       Pollutant
	// Degraded is set when the raw value or the weather is a fallback.
	Degraded    bool
	EvaluatedAt time.Time
}

// HasSubject reports whether the evaluation belongs to a known user.
func (e Evaluation) HasSubject() bool {
	return e.SubjectID != ""
}
