package user

import (
	"context"
	"errors"
	"time"

	"github.com/breatheroute/aqiguard/internal/aqi"
)

// Service provides user and health-profile operations.
type Service struct {
	repo Repository
}

// NewService creates a new user service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns the user with the given ID.
func (s *Service) Get(ctx context.Context, userID string) (*User, error) {
	return s.repo.Get(ctx, userID)
}

// EnsureUser returns the user, creating one with defaults if it does not
// exist yet. Called for authenticated subjects on first contact.
func (s *Service) EnsureUser(ctx context.Context, userID string) (*User, error) {
	existing, err := s.repo.Get(ctx, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	u := DefaultUser(userID)
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// HealthProfile returns the scoring flags for a user. It fails with
// ErrUserNotFound or ErrProfileNotFound.
func (s *Service) HealthProfile(ctx context.Context, userID string) (aqi.HealthProfile, error) {
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return aqi.HealthProfile{}, err
	}
	if u.Health == nil {
		return aqi.HealthProfile{}, ErrProfileNotFound
	}
	return u.Health.HealthProfile, nil
}

// UpsertHealthProfile creates or replaces the user's health profile.
func (s *Service) UpsertHealthProfile(ctx context.Context, userID string, flags aqi.HealthProfile) (*HealthProfile, error) {
	u, err := s.EnsureUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if u.Health == nil {
		u.Health = &HealthProfile{CreatedAt: now}
	}
	u.Health.HealthProfile = flags
	u.Health.UpdatedAt = now
	u.UpdatedAt = now

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u.Health, nil
}

// UpdateSettings changes contact and location fields. Nil fields are left
// untouched.
func (s *Service) UpdateSettings(ctx context.Context, userID string, in SettingsInput) (*User, error) {
	u, err := s.EnsureUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.Email != nil {
		u.Email = *in.Email
	}
	if in.City != nil {
		u.City = *in.City
	}
	if in.Home != nil {
		home := *in.Home
		u.Home = &home
	}
	if in.EmailAlerts != nil {
		u.Consents.EmailAlerts = *in.EmailAlerts
		u.Consents.UpdatedAt = now
	}
	if in.PushAlerts != nil {
		u.Consents.PushAlerts = *in.PushAlerts
		u.Consents.UpdatedAt = now
	}
	u.UpdatedAt = now

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// SettingsInput is a partial update of a user's settings.
type SettingsInput struct {
	Name        *string
	Email       *string
	City        *string
	Home        *Coordinates
	EmailAlerts *bool
	PushAlerts  *bool
}

// ListIDs returns every user ID.
func (s *Service) ListIDs(ctx context.Context) ([]string, error) {
	return s.repo.ListIDs(ctx)
}
