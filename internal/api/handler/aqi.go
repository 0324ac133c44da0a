package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/breatheroute/aqiguard/internal/api/middleware"
	"github.com/breatheroute/aqiguard/internal/api/models"
	"github.com/breatheroute/aqiguard/internal/api/response"
	"github.com/breatheroute/aqiguard/internal/pipeline"
	"github.com/breatheroute/aqiguard/internal/user"
)

// Evaluator runs the personalization pipeline.
type Evaluator interface {
	Evaluate(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// SubjectStore resolves the authenticated user, creating it on first use.
type SubjectStore interface {
	EnsureUser(ctx context.Context, userID string) (*user.User, error)
}

// AQIHandler handles AQI evaluation endpoints.
type AQIHandler struct {
	evaluator Evaluator
	users     SubjectStore
}

// NewAQIHandler creates a new AQIHandler.
func NewAQIHandler(evaluator Evaluator, users SubjectStore) *AQIHandler {
	return &AQIHandler{evaluator: evaluator, users: users}
}

// Monitor handles GET /v1/monitor/aqi - evaluate a point. A bearer token
// is optional; without one, or without a health profile, the raw value is
// returned unpersonalized.
func (h *AQIHandler) Monitor(w http.ResponseWriter, r *http.Request) {
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

	res, err := h.evaluator.Evaluate(r.Context(), pipeline.Request{
		SubjectID:      middleware.GetUserID(r.Context()),
		Lat:            lat,
		Lon:            lon,
		HasCoordinates: true,
		Policy:         pipeline.ProfileOptional,
	})
	if err != nil {
		writeEvaluationError(w, r, err, "")
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewAQIResponse(res))
}

// MyAQI handles GET /v1/me/aqi - personalized AQI for the caller. Query
// coordinates win over the stored home location, which wins over the
// stored city. A health profile is required.
func (h *AQIHandler) MyAQI(w http.ResponseWriter, r *http.Request) {
	userID, ok := subjectID(w, r)
	if !ok {
		return
	}

	lat, lon, hasCoords, errs := coordinates(r)
	if len(errs) > 0 {
		response.BadRequest(w, r, "invalid coordinates", errs)
		return
	}

	u, err := h.users.EnsureUser(r.Context(), userID)
	if err != nil {
		internalError(w, r, err, "failed to load user")
		return
	}

	req := pipeline.Request{
		SubjectID:      userID,
		Lat:            lat,
		Lon:            lon,
		HasCoordinates: hasCoords,
		City:           u.City,
		Policy:         pipeline.ProfileRequired,
	}
	if !hasCoords && u.Home != nil {
		req.Lat, req.Lon, req.HasCoordinates = u.Home.Lat, u.Home.Lon, true
	}

	res, err := h.evaluator.Evaluate(r.Context(), req)
	if err != nil {
		writeEvaluationError(w, r, err, req.City)
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewAQIResponse(res))
}

// writeEvaluationError maps pipeline failures to problem responses.
func writeEvaluationError(w http.ResponseWriter, r *http.Request, err error, city string) {
	switch {
	case errors.Is(err, pipeline.ErrProfileNotFound):
		response.ProfileRequired(w, r)
	case errors.Is(err, pipeline.ErrLocationNotFound):
		response.LocationNotFound(w, r, city)
	case errors.Is(err, pipeline.ErrLocationRequired):
		response.BadRequest(w, r, "coordinates or a stored city are required", []models.FieldError{
			{Field: "lat", Message: "is required when no home location or city is set", Code: "REQUIRED"},
		})
	case errors.Is(err, pipeline.ErrDataUnavailable):
		response.ServiceUnavailable(w, r, "air quality data is unavailable")
	default:
		internalError(w, r, err, "evaluation failed")
	}
}
