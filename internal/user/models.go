// Package user manages subjects: contact details, home location,
// notification consents and the health profile used for personalization.
//
// The health profile is stored separately from the account row and may be
// absent. Callers decide per endpoint whether a missing profile is an
// error (ErrProfileNotFound) or means "not personalized".
package user

import (
	"time"

	"github.com/breatheroute/aqiguard/internal/aqi"
)

// User is a subject of AQI evaluations.
type User struct {
	// ID is the unique user identifier (format: usr_XXXX).
	ID string

	Name  string
	Email string

	// City is used when a request carries no coordinates.
	City  string
	State string

	// Home is an optional fixed location preferred over City.
	Home *Coordinates

	Consents Consents

	// Health is nil until the user fills in a health profile.
	Health *HealthProfile

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64
	Lon float64
}

// Consents controls which alert channels may be used.
type Consents struct {
	EmailAlerts bool
	PushAlerts  bool
	UpdatedAt   time.Time
}

// HealthProfile wraps the scoring flags with bookkeeping timestamps.
type HealthProfile struct {
	aqi.HealthProfile
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultUser returns a new user with alerts enabled on every channel.
func DefaultUser(id string) *User {
	now := time.Now()
	return &User{
		ID: id,
		Consents: Consents{
			EmailAlerts: true,
			PushAlerts:  true,
			UpdatedAt:   now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func copyUser(u *User) *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Home != nil {
		home := *u.Home
		c.Home = &home
	}
	if u.Health != nil {
		health := *u.Health
		c.Health = &health
	}
	return &c
}
