package models

import (
	"github.com/breatheroute/aqiguard/internal/aqi"
	"github.com/breatheroute/aqiguard/internal/notification"
)

// SentAlert is one delivered alert.
type SentAlert struct {
	NivelAlerta aqi.Tier            `json:"nivel_alerta"`
	Channel     notification.Method `json:"channel"`
	SentAt      Timestamp           `json:"sent_at"`
}

// PagedAlerts is a page of delivered alerts, newest first.
type PagedAlerts struct {
	Items []SentAlert       `json:"items"`
	Meta  PagedResponseMeta `json:"meta"`
}

// NewPagedAlerts converts logged deliveries into a response page.
func NewPagedAlerts(alerts []notification.SentAlert, limit int) PagedAlerts {
	items := make([]SentAlert, 0, len(alerts))
	for _, a := range alerts {
		items = append(items, SentAlert{
			NivelAlerta: a.Tier,
			Channel:     a.Method,
			SentAt:      Timestamp(a.SentAt),
		})
	}
	return PagedAlerts{Items: items, Meta: PagedResponseMeta{Limit: limit, Count: len(items)}}
}
