package models

import "github.com/breatheroute/aqiguard/internal/device"

// Device represents a registered push notification device.
type Device struct {
	ID         string       `json:"id"`
	Platform   PushPlatform `json:"platform"`
	TokenLast4 string       `json:"tokenLast4"`
	AppVersion *string      `json:"appVersion,omitempty"`
	CreatedAt  Timestamp    `json:"createdAt"`
	UpdatedAt  Timestamp    `json:"updatedAt"`
}

// DeviceRegisterRequest is the request body for registering a device.
// The device ID comes from the path.
type DeviceRegisterRequest struct {
	Platform   PushPlatform `json:"platform" validate:"required,oneof=FCM APNS"`
	Token      string       `json:"token" validate:"required,min=16,max=4096"`
	AppVersion *string      `json:"appVersion,omitempty" validate:"omitempty,max=32"`
}

// Input converts the request into a service registration.
func (r DeviceRegisterRequest) Input() device.RegisterInput {
	return device.RegisterInput{
		Platform:   device.Platform(r.Platform),
		Token:      r.Token,
		AppVersion: r.AppVersion,
	}
}

// PagedDevices represents a list of devices.
type PagedDevices struct {
	Items []Device          `json:"items"`
	Meta  PagedResponseMeta `json:"meta"`
}

// NewDevice converts a stored device into its public shape.
func NewDevice(d *device.Device) Device {
	return Device{
		ID:         d.ID,
		Platform:   PushPlatform(d.Platform),
		TokenLast4: d.TokenLast4(),
		AppVersion: d.AppVersion,
		CreatedAt:  Timestamp(d.CreatedAt),
		UpdatedAt:  Timestamp(d.UpdatedAt),
	}
}

// NewPagedDevices converts a device list.
func NewPagedDevices(devices []*device.Device) PagedDevices {
	items := make([]Device, 0, len(devices))
	for _, d := range devices {
		items = append(items, NewDevice(d))
	}
	return PagedDevices{Items: items, Meta: PagedResponseMeta{Limit: len(items), Count: len(items)}}
}
