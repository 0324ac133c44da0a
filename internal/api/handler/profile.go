package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/breatheroute/aqiguard/internal/api/models"
	"github.com/breatheroute/aqiguard/internal/api/response"
	"github.com/breatheroute/aqiguard/internal/aqi"
	"github.com/breatheroute/aqiguard/internal/user"
)

// ProfileStore reads and replaces health profiles.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (*user.User, error)
	UpsertHealthProfile(ctx context.Context, userID string, flags aqi.HealthProfile) (*user.HealthProfile, error)
}

// ProfileHandler handles health profile endpoints.
type ProfileHandler struct {
	users ProfileStore
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(users ProfileStore) *ProfileHandler {
	return &ProfileHandler{users: users}
}

// GetProfile handles GET /v1/me/health-profile.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := subjectID(w, r)
	if !ok {
		return
	}

	u, err := h.users.Get(r.Context(), userID)
	if err != nil && !errors.Is(err, user.ErrUserNotFound) {
		internalError(w, r, err, "failed to load user")
		return
	}
	if u == nil || u.Health == nil {
		response.ProfileRequired(w, r)
		return
	}

	response.JSON(w, r, http.StatusOK, models.NewHealthProfile(u.Health))
}

// UpsertProfile handles PUT /v1/me/health-profile - create or replace.
func (h *ProfileHandler) UpsertProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := subjectID(w, r)
	if !ok {
		return
	}

	var input models.HealthProfileInput
	if !decodeJSON(w, r, &input) {
		return
	}

	profile, err := h.users.UpsertHealthProfile(r.Context(), userID, input.Flags())
	if err != nil {
		internalError(w, r, err, "failed to save health profile")
		return
	}

	response.JSON(w, r, http.StatusOK, models.NewHealthProfile(profile))
}
