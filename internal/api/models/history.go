package models

import "github.com/breatheroute/aqiguard/internal/aqi"

// HistoryItem is one stored evaluation.
type HistoryItem struct {
	ID               string    `json:"id"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	AQIOriginal      int       `json:"aqi_original"`
	AQIPersonalizado int       `json:"aqi_personalizado"`
	NivelAlerta      aqi.Tier  `json:"nivel_alerta"`
	Degraded         bool      `json:"degraded"`
	EvaluatedAt      Timestamp `json:"evaluated_at"`
}

// PagedHistory is a page of evaluations, newest first.
type PagedHistory struct {
	Items []HistoryItem     `json:"items"`
	Meta  PagedResponseMeta `json:"meta"`
}

// NewPagedHistory converts stored evaluations into a response page.
func NewPagedHistory(evals []aqi.Evaluation, limit int) PagedHistory {
	items := make([]HistoryItem, 0, len(evals))
	for _, e := range evals {
		items = append(items, HistoryItem{
			ID:               e.ID,
			Latitude:         e.Latitude,
			Longitude:        e.Longitude,
			AQIOriginal:      e.RawAQI,
			AQIPersonalizado: e.PersonalizedAQI,
			NivelAlerta:      e.Tier,
			Degraded:         e.Degraded,
			EvaluatedAt:      Timestamp(e.EvaluatedAt),
		})
	}
	return PagedHistory{Items: items, Meta: PagedResponseMeta{Limit: limit, Count: len(items)}}
}
