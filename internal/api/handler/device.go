package handler

import (
	"context"
	"errors"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"

	"github.com/breatheroute/aqiguard/internal/api/models"
	"github.com/breatheroute/aqiguard/internal/api/response"
	"github.com/breatheroute/aqiguard/internal/device"
)

var deviceIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// DeviceStore manages push device registrations.
type DeviceStore interface {
	List(ctx context.Context, userID string) ([]*device.Device, error)
	Register(ctx context.Context, userID, deviceID string, in device.RegisterInput) (*device.Device, bool, error)
	Unregister(ctx context.Context, userID, deviceID string) error
}

// DeviceHandler handles device endpoints.
type DeviceHandler struct {
	devices DeviceStore
}

// NewDeviceHandler creates a new DeviceHandler.
func NewDeviceHandler(devices DeviceStore) *DeviceHandler {
	return &DeviceHandler{devices: devices}
}

// ListDevices handles GET /v1/me/devices - list registered devices.
func (h *DeviceHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	userID, ok := subjectID(w, r)
	if !ok {
		return
	}

	devices, err := h.devices.List(r.Context(), userID)
	if err != nil {
		internalError(w, r, err, "failed to list devices")
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewPagedDevices(devices))
}

// RegisterDevice handles PUT /v1/me/devices/{deviceId} - register or
// refresh a push token. Returns 201 for a new device and 200 otherwise.
func (h *DeviceHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	userID, ok := subjectID(w, r)
	if !ok {
		return
	}
	deviceID, ok := deviceParam(w, r)
	if !ok {
		return
	}

	var input models.DeviceRegisterRequest
	if !decodeJSON(w, r, &input) {
		return
	}

	d, created, err := h.devices.Register(r.Context(), userID, deviceID, input.Input())
	switch {
	case errors.Is(err, device.ErrInvalidPlatform):
		response.BadRequest(w, r, "invalid platform", []models.FieldError{
			{Field: "platform", Message: "must be one of: FCM APNS", Code: "ONEOF"},
		})
		return
	case errors.Is(err, device.ErrEmptyToken):
		response.BadRequest(w, r, "invalid token", []models.FieldError{
			{Field: "token", Message: "is required", Code: "REQUIRED"},
		})
		return
	case err != nil:
		internalError(w, r, err, "failed to register device")
		return
	}

	if created {
		response.Created(w, r, r.URL.Path, models.NewDevice(d))
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewDevice(d))
}

// UnregisterDevice handles DELETE /v1/me/devices/{deviceId} - unregister device.
func (h *DeviceHandler) UnregisterDevice(w http.ResponseWriter, r *http.Request) {
	userID, ok := subjectID(w, r)
	if !ok {
		return
	}
	deviceID, ok := deviceParam(w, r)
	if !ok {
		return
	}

	if err := h.devices.Unregister(r.Context(), userID, deviceID); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			response.NotFound(w, r, "device not found")
			return
		}
		internalError(w, r, err, "failed to unregister device")
		return
	}
	response.NoContent(w, r)
}

func deviceParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "deviceId")
	if !deviceIDPattern.MatchString(id) {
		response.BadRequest(w, r, "invalid deviceId", []models.FieldError{
			{Field: "deviceId", Message: "must be 1-128 letters, digits, '-' or '_'", Code: "PATTERN"},
		})
		return "", false
	}
	return id, true
}
