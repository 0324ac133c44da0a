package handler

import (
	"context"
	"net/http"

	"github.com/breatheroute/aqiguard/internal/api/models"
	"github.com/breatheroute/aqiguard/internal/api/response"
	"github.com/breatheroute/aqiguard/internal/user"
)

// AccountStore reads and updates account settings.
type AccountStore interface {
	SubjectStore
	UpdateSettings(ctx context.Context, userID string, in user.SettingsInput) (*user.User, error)
}

// MeHandler handles user account endpoints.
type MeHandler struct {
	users AccountStore
}

// NewMeHandler creates a new MeHandler.
func NewMeHandler(users AccountStore) *MeHandler {
	return &MeHandler{users: users}
}

// GetMe handles GET /v1/me - get current user account summary.
func (h *MeHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := subjectID(w, r)
	if !ok {
		return
	}

	u, err := h.users.EnsureUser(r.Context(), userID)
	if err != nil {
		internalError(w, r, err, "failed to load user")
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewMe(u))
}

// UpdateMe handles PUT /v1/me - update contact, location and alert consents.
func (h *MeHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := subjectID(w, r)
	if !ok {
		return
	}

	var input models.MeInput
	if !decodeJSON(w, r, &input) {
		return
	}

	u, err := h.users.UpdateSettings(r.Context(), userID, input.Settings())
	if err != nil {
		internalError(w, r, err, "failed to update settings")
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewMe(u))
}
