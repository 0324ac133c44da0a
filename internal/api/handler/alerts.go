package handler

import (
	"context"
	"net/http"

	"github.com/breatheroute/aqiguard/internal/api/models"
	"github.com/breatheroute/aqiguard/internal/api/response"
	"github.com/breatheroute/aqiguard/internal/notification"
)

const (
	defaultAlertLimit = 50
	maxAlertLimit     = 200
)

// AlertSource lists alerts delivered to a subject.
type AlertSource interface {
	ListBySubject(ctx context.Context, subjectID string, limit int) ([]notification.SentAlert, error)
}

// AlertHandler handles the sent-alert log endpoint.
type AlertHandler struct {
	alerts AlertSource
}

// NewAlertHandler creates a new AlertHandler.
func NewAlertHandler(alerts AlertSource) *AlertHandler {
	return &AlertHandler{alerts: alerts}
}

// MyAlerts handles GET /v1/me/alerts.
func (h *AlertHandler) MyAlerts(w http.ResponseWriter, r *http.Request) {
	userID, ok := subjectID(w, r)
	if !ok {
		return
	}

	limit, ok := listLimit(w, r, defaultAlertLimit, maxAlertLimit)
	if !ok {
		return
	}

	alerts, err := h.alerts.ListBySubject(r.Context(), userID, limit)
	if err != nil {
		internalError(w, r, err, "failed to list alerts")
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewPagedAlerts(alerts, limit))
}
