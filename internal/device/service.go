package device

import (
	"context"
	"strings"
	"time"
)

// Service provides device operations.
type Service struct {
	repo Repository
}

// NewService creates a new device service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// RegisterInput is the payload of a device registration.
type RegisterInput struct {
	Platform   Platform
	Token      string
	AppVersion *string
}

// List returns every device of a user.
func (s *Service) List(ctx context.Context, userID string) ([]*Device, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Register registers or updates a device.
// Returns the device and whether it was newly created.
func (s *Service) Register(ctx context.Context, userID, deviceID string, in RegisterInput) (*Device, bool, error) {
	platform := Platform(strings.ToUpper(string(in.Platform)))
	if !platform.Valid() {
		return nil, false, ErrInvalidPlatform
	}
	token := strings.TrimSpace(in.Token)
	if token == "" {
		return nil, false, ErrEmptyToken
	}

	now := time.Now()
	d := &Device{
		ID:         deviceID,
		UserID:     userID,
		Platform:   platform,
		Token:      token,
		AppVersion: in.AppVersion,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	created, err := s.repo.Upsert(ctx, d)
	if err != nil {
		return nil, false, err
	}
	return d, created, nil
}

// Unregister removes a device registration.
func (s *Service) Unregister(ctx context.Context, userID, deviceID string) error {
	return s.repo.Delete(ctx, userID, deviceID)
}

// Tokens returns the push tokens of a user's devices.
func (s *Service) Tokens(ctx context.Context, userID string) ([]*Device, error) {
	return s.repo.ListByUser(ctx, userID)
}
