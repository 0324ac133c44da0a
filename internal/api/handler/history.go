package handler

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"github.com/breatheroute/aqiguard/internal/api/models"
	"github.com/breatheroute/aqiguard/internal/api/response"
	"github.com/breatheroute/aqiguard/internal/aqi"
	"github.com/breatheroute/aqiguard/internal/history"
)

// HistorySource lists stored evaluations.
type HistorySource interface {
	ListBySubject(ctx context.Context, subjectID string, limit int) ([]aqi.Evaluation, error)
	ListNear(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]aqi.Evaluation, error)
}

// HistoryHandler handles the evaluation history endpoints.
type HistoryHandler struct {
	history HistorySource
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(source HistorySource) *HistoryHandler {
	return &HistoryHandler{history: source}
}

// MyHistory handles GET /v1/me/history - the caller's evaluations, newest first.
func (h *HistoryHandler) MyHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := subjectID(w, r)
	if !ok {
		return
	}

	limit, ok := listLimit(w, r, history.DefaultListLimit, history.MaxListLimit)
	if !ok {
		return
	}

	evals, err := h.history.ListBySubject(r.Context(), userID, limit)
	if err != nil {
		internalError(w, r, err, "failed to list history")
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewPagedHistory(evals, limit))
}

// Nearby handles GET /v1/monitor/history - evaluations recorded within
// radius meters of a point, newest first. Items carry no subject identity.
func (h *HistoryHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	lat, lon, ok, errs := coordinates(r)
	if len(errs) > 0 {
		response.BadRequest(w, r, "invalid coordinates", errs)
		return
	}
	if !ok {
		response.BadRequest(w, r, "lat and lon are required", []models.FieldError{
			{Field: "lat", Message: "is required", Code: "REQUIRED"},
			{Field: "lon", Message: "is required", Code: "REQUIRED"},
		})
		return
	}

	radius := float64(history.DefaultNearRadiusMeters)
	if raw := r.URL.Query().Get("radius"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || v <= 0 || v > history.MaxNearRadiusMeters {
			response.BadRequest(w, r, "invalid radius", []models.FieldError{{
				Field:   "radius",
				Message: "must be a number of meters between 0 and " + strconv.Itoa(history.MaxNearRadiusMeters),
				Code:    "OUT_OF_RANGE",
			}})
			return
		}
		radius = v
	}

	limit, ok := listLimit(w, r, history.DefaultListLimit, history.MaxListLimit)
	if !ok {
		return
	}

	evals, err := h.history.ListNear(r.Context(), lat, lon, radius, limit)
	if err != nil {
		internalError(w, r, err, "failed to list nearby history")
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewPagedHistory(evals, limit))
}

// listLimit parses the optional limit query parameter, writing a 400 when
// it is out of range.
func listLimit(w http.ResponseWriter, r *http.Request, def, maxLimit int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxLimit {
		response.BadRequest(w, r, "invalid limit", []models.FieldError{{
			Field:   "limit",
			Message: "must be an integer between 1 and " + strconv.Itoa(maxLimit),
			Code:    "OUT_OF_RANGE",
		}})
		return 0, false
	}
	return n, true
}
