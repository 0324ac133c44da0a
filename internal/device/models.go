// Package device stores push tokens registered by a user's apps. The push
// notification channel looks tokens up here when an alert fires.
package device

import (
	"errors"
	"time"
)

// Repository errors.
var (
	ErrDeviceNotFound  = errors.New("device not found")
	ErrInvalidPlatform = errors.New("invalid push platform")
	ErrEmptyToken      = errors.New("push token is required")
)

// Platform represents a push notification platform.
type Platform string

const (
	PlatformFCM  Platform = "FCM"
	PlatformAPNS Platform = "APNS"
)

// Valid reports whether p is a supported platform.
func (p Platform) Valid() bool {
	return p == PlatformFCM || p == PlatformAPNS
}

// Device is a registered push token.
type Device struct {
	ID         string
	UserID     string
	Platform   Platform
	Token      string
	AppVersion *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TokenLast4 returns the last 4 characters of the token for display purposes.
func (d *Device) TokenLast4() string {
	if len(d.Token) < 4 {
		return d.Token
	}
	return d.Token[len(d.Token)-4:]
}

func copyDevice(d *Device) *Device {
	if d == nil {
		return nil
	}
	c := *d
	if d.AppVersion != nil {
		v := *d.AppVersion
		c.AppVersion = &v
	}
	return &c
}
