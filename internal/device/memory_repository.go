package device

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
type InMemoryRepository struct {
	mu      sync.RWMutex
	devices map[string]*Device // keyed by device ID
	tokens  map[string]string  // token -> device ID
}

// NewInMemoryRepository creates a new in-memory device repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		devices: make(map[string]*Device),
		tokens:  make(map[string]string),
	}
}

// Get retrieves a device by user ID and device ID.
func (r *InMemoryRepository) Get(_ context.Context, userID, deviceID string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[deviceID]
	if !ok || d.UserID != userID {
		return nil, ErrDeviceNotFound
	}
	return copyDevice(d), nil
}

// ListByUser returns the user's devices, newest first.
func (r *InMemoryRepository) ListByUser(_ context.Context, userID string) ([]*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var items []*Device
	for _, d := range r.devices {
		if d.UserID == userID {
			items = append(items, copyDevice(d))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

// Upsert creates or updates a device keyed by token.
func (r *InMemoryRepository) Upsert(_ context.Context, device *Device) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existingID, ok := r.tokens[device.Token]; ok {
		existing := r.devices[existingID]
		updated := copyDevice(device)
		updated.CreatedAt = existing.CreatedAt
		delete(r.devices, existingID)
		r.devices[device.ID] = updated
		r.tokens[device.Token] = device.ID
		return false, nil
	}

	// Re-registering an ID with a new token drops the old token.
	if existing, ok := r.devices[device.ID]; ok {
		delete(r.tokens, existing.Token)
	}

	r.devices[device.ID] = copyDevice(device)
	r.tokens[device.Token] = device.ID
	return true, nil
}

// Delete deletes a device.
func (r *InMemoryRepository) Delete(_ context.Context, userID, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[deviceID]
	if !ok || d.UserID != userID {
		return ErrDeviceNotFound
	}
	delete(r.tokens, d.Token)
	delete(r.devices, deviceID)
	return nil
}

var _ Repository = (*InMemoryRepository)(nil)
