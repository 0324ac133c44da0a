package device

import "context"

// Repository defines the interface for device persistence.
type Repository interface {
	// Get retrieves a device by user ID and device ID.
	Get(ctx context.Context, userID, deviceID string) (*Device, error)

	// ListByUser returns the user's devices, newest first.
	ListByUser(ctx context.Context, userID string) ([]*Device, error)

	// Upsert creates or updates a device keyed by token. A token moves to
	// the new owner if another user registered it before.
	// Returns true if a new device was created, false if updated.
	Upsert(ctx context.Context, device *Device) (created bool, err error)

	// Delete deletes a device.
	Delete(ctx context.Context, userID, deviceID string) error
}
