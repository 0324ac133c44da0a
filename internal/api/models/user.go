package models

import (
	"github.com/breatheroute/aqiguard/internal/aqi"
	"github.com/breatheroute/aqiguard/internal/user"
)

// Location is a WGS84 point.
type Location struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// Consents represents the user's alert channel consents.
type Consents struct {
	EmailAlerts bool       `json:"emailAlerts"`
	PushAlerts  bool       `json:"pushAlerts"`
	UpdatedAt   *Timestamp `json:"updatedAt,omitempty"`
}

// Me represents the authenticated user's account summary.
type Me struct {
	UserID           string    `json:"userId"`
	Name             string    `json:"name,omitempty"`
	Email            string    `json:"email,omitempty"`
	City             string    `json:"city,omitempty"`
	State            string    `json:"state,omitempty"`
	Home             *Location `json:"home,omitempty"`
	Consents         Consents  `json:"consents"`
	HasHealthProfile bool      `json:"hasHealthProfile"`
	CreatedAt        Timestamp `json:"createdAt"`
}

// MeInput is the request body for updating user settings. Absent fields
// are left unchanged.
type MeInput struct {
	Name        *string   `json:"name,omitempty" validate:"omitempty,max=120"`
	Email       *string   `json:"email,omitempty" validate:"omitempty,email"`
	City        *string   `json:"city,omitempty" validate:"omitempty,min=1,max=120"`
	Home        *Location `json:"home,omitempty"`
	EmailAlerts *bool     `json:"emailAlerts,omitempty"`
	PushAlerts  *bool     `json:"pushAlerts,omitempty"`
}

// Settings converts the request into a service update.
func (in MeInput) Settings() user.SettingsInput {
	out := user.SettingsInput{
		Name:        in.Name,
		Email:       in.Email,
		City:        in.City,
		EmailAlerts: in.EmailAlerts,
		PushAlerts:  in.PushAlerts,
	}
	if in.Home != nil {
		out.Home = &user.Coordinates{Lat: in.Home.Lat, Lon: in.Home.Lon}
	}
	return out
}

// NewMe converts a stored user into its public shape.
func NewMe(u *user.User) Me {
	me := Me{
		UserID: u.ID,
		Name:   u.Name,
		Email:  u.Email,
		City:   u.City,
		State:  u.State,
		Consents: Consents{
			EmailAlerts: u.Consents.EmailAlerts,
			PushAlerts:  u.Consents.PushAlerts,
			UpdatedAt:   TimestampPtr(u.Consents.UpdatedAt),
		},
		HasHealthProfile: u.Health != nil,
		CreatedAt:        Timestamp(u.CreatedAt),
	}
	if u.Home != nil {
		me.Home = &Location{Lat: u.Home.Lat, Lon: u.Home.Lon}
	}
	return me
}

// HealthProfile is the subject's health flags with bookkeeping timestamps.
type HealthProfile struct {
	HasAsthma       bool      `json:"has_asthma"`
	HasCOPD         bool      `json:"has_copd"`
	HasAllergies    bool      `json:"has_allergies"`
	IsSmoker        bool      `json:"is_smoker"`
	HighSensitivity bool      `json:"high_sensitivity"`
	RiskWeight      int       `json:"risk_weight"`
	CreatedAt       Timestamp `json:"createdAt"`
	UpdatedAt       Timestamp `json:"updatedAt"`
}

// HealthProfileInput is the request body for replacing the health profile.
// Every flag is required so a partial body cannot silently clear one.
type HealthProfileInput struct {
	HasAsthma       *bool `json:"has_asthma" validate:"required"`
	HasCOPD         *bool `json:"has_copd" validate:"required"`
	HasAllergies    *bool `json:"has_allergies" validate:"required"`
	IsSmoker        *bool `json:"is_smoker" validate:"required"`
	HighSensitivity *bool `json:"high_sensitivity" validate:"required"`
}

// Flags converts the request into scoring flags. Call after validation.
func (in HealthProfileInput) Flags() aqi.HealthProfile {
	return aqi.HealthProfile{
		HasAsthma:       deref(in.HasAsthma),
		HasCOPD:         deref(in.HasCOPD),
		HasAllergies:    deref(in.HasAllergies),
		IsSmoker:        deref(in.IsSmoker),
		HighSensitivity: deref(in.HighSensitivity),
	}
}

// NewHealthProfile converts a stored profile into its public shape.
func NewHealthProfile(p *user.HealthProfile) HealthProfile {
	return HealthProfile{
		HasAsthma:       p.HasAsthma,
		HasCOPD:         p.HasCOPD,
		HasAllergies:    p.HasAllergies,
		IsSmoker:        p.IsSmoker,
		HighSensitivity: p.HighSensitivity,
		RiskWeight:      p.RiskWeight(),
		CreatedAt:       Timestamp(p.CreatedAt),
		UpdatedAt:       Timestamp(p.UpdatedAt),
	}
}

func deref(b *bool) bool {
	return b != nil && *b
}
