package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/breatheroute/aqiguard/internal/api/models"
	"github.com/breatheroute/aqiguard/internal/api/response"
	"github.com/breatheroute/aqiguard/internal/aqi"
	"github.com/breatheroute/aqiguard/internal/forecast"
	"github.com/breatheroute/aqiguard/internal/user"
	"github.com/breatheroute/aqiguard/internal/weather"
)

// Forecaster predicts daily AQI for a location and profile.
type Forecaster interface {
	Forecast(ctx context.Context, q weather.Query, profile aqi.HealthProfile) forecast.Result
}

// ProfileSource returns a user's health flags.
type ProfileSource interface {
	HealthProfile(ctx context.Context, userID string) (aqi.HealthProfile, error)
}

// ForecastHandler handles the personal forecast endpoint.
type ForecastHandler struct {
	forecaster Forecaster
	profiles   ProfileSource
	users      SubjectStore
}

// NewForecastHandler creates a new ForecastHandler.
func NewForecastHandler(forecaster Forecaster, profiles ProfileSource, users SubjectStore) *ForecastHandler {
	return &ForecastHandler{forecaster: forecaster, profiles: profiles, users: users}
}

// MyForecast handles GET /v1/me/forecast - the next days of predicted AQI.
// Location resolution matches /v1/me/aqi and a health profile is required.
func (h *ForecastHandler) MyForecast(w http.ResponseWriter, r *http.Request) {
	userID, ok := subjectID(w, r)
	if !ok {
		return
	}

	lat, lon, hasCoords, errs := coordinates(r)
	if len(errs) > 0 {
		response.BadRequest(w, r, "invalid coordinates", errs)
		return
	}

	profile, err := h.profiles.HealthProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, user.ErrProfileNotFound) || errors.Is(err, user.ErrUserNotFound) {
			response.ProfileRequired(w, r)
			return
		}
		internalError(w, r, err, "failed to load health profile")
		return
	}

	u, err := h.users.EnsureUser(r.Context(), userID)
	if err != nil {
		internalError(w, r, err, "failed to load user")
		return
	}

	var q weather.Query
	switch {
	case hasCoords:
		q = weather.AtCoordinates(lat, lon)
	case u.Home != nil:
		q = weather.AtCoordinates(u.Home.Lat, u.Home.Lon)
	case u.City != "":
		q = weather.InCity(u.City)
	default:
		response.BadRequest(w, r, "coordinates or a stored city are required", []models.FieldError{
			{Field: "lat", Message: "is required when no home location or city is set", Code: "REQUIRED"},
		})
		return
	}

	result := h.forecaster.Forecast(r.Context(), q, profile)
	response.JSON(w, r, http.StatusOK, models.NewForecastResponse(result))
}
