package models

import (
	"github.com/breatheroute/aqiguard/internal/aqi"
	"github.com/breatheroute/aqiguard/internal/forecast"
)

// ForecastPoint is one predicted day.
type ForecastPoint struct {
	Date         string   `json:"date"`
	PredictedAQI float64  `json:"predicted_aqi"`
	Tier         aqi.Tier `json:"nivel_alerta"`
}

// ForecastResponse is the daily forecast for a location.
type ForecastResponse struct {
	City      string          `json:"city,omitempty"`
	Latitude  float64         `json:"latitude"`
	Longitude float64         `json:"longitude"`
	Degraded  bool            `json:"degraded"`
	Points    []ForecastPoint `json:"points"`
}

// NewForecastResponse converts a forecast result into its public shape.
func NewForecastResponse(r forecast.Result) ForecastResponse {
	out := ForecastResponse{
		City:      r.City,
		Latitude:  r.Lat,
		Longitude: r.Lon,
		Degraded:  r.Degraded,
		Points:    make([]ForecastPoint, 0, len(r.Points)),
	}
	for _, p := range r.Points {
		out.Points = append(out.Points, ForecastPoint{
			Date:         p.DateString(),
			PredictedAQI: p.PredictedAQI,
			Tier:         p.Tier,
		})
	}
	return out
}
