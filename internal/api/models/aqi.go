package models

import (
	"github.com/breatheroute/aqiguard/internal/aqi"
	"github.com/breatheroute/aqiguard/internal/pipeline"
)

// AQIResponse is the public shape of one evaluation. The Portuguese keys
// are kept for compatibility with existing clients, which expect
// usuario_id to be null for anonymous evaluations.
type AQIResponse struct {
	Latitude         float64  `json:"latitude"`
	Longitude        float64  `json:"longitude"`
	AQIOriginal      int      `json:"aqi_original"`
	AQIPersonalizado int      `json:"aqi_personalizado"`
	NivelAlerta      aqi.Tier `json:"nivel_alerta"`
	UsuarioID        *string  `json:"usuario_id"`

	Personalized bool          `json:"personalized"`
	Degraded     bool          `json:"degraded"`
	City         string        `json:"city,omitempty"`
	Pollutant    aqi.Pollutant `json:"pollutant,omitempty"`
	Provider     string        `json:"provider,omitempty"`
	EvaluatedAt  Timestamp     `json:"evaluated_at"`
	Stages       []StageInfo   `json:"stages,omitempty"`
}

// StageInfo reports the outcome of one pipeline stage.
type StageInfo struct {
	Stage  pipeline.Stage       `json:"stage"`
	Status pipeline.StageStatus `json:"status"`
}

// NewAQIResponse converts a pipeline result into its public shape.
func NewAQIResponse(res *pipeline.Result) AQIResponse {
	e := res.Evaluation
	out := AQIResponse{
		Latitude:         e.Latitude,
		Longitude:        e.Longitude,
		AQIOriginal:      e.RawAQI,
		AQIPersonalizado: e.PersonalizedAQI,
		NivelAlerta:      e.Tier,
		Personalized:     res.Personalized,
		Degraded:         e.Degraded,
		City:             res.City,
		Pollutant:        e.Pollutant,
		Provider:         res.Reading.Provider,
		EvaluatedAt:      Timestamp(e.EvaluatedAt),
	}
	if e.SubjectID != "" {
		id := e.SubjectID
		out.UsuarioID = &id
	}
	for _, o := range res.Outcomes {
		out.Stages = append(out.Stages, StageInfo{Stage: o.Stage, Status: o.Status})
	}
	return out
}
