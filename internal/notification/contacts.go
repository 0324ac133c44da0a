package notification

import (
	"context"
	"fmt"

	"github.com/breatheroute/aqiguard/internal/device"
	"github.com/breatheroute/aqiguard/internal/user"
)

// UserContacts resolves contacts from the user and device stores, honoring
// the user's alert consents.
type UserContacts struct {
	users   *user.Service
	devices *device.Service
}

// NewUserContacts creates a resolver. devices may be nil when push is not
// configured.
func NewUserContacts(users *user.Service, devices *device.Service) *UserContacts {
	return &UserContacts{users: users, devices: devices}
}

// Contacts returns the subject's consented destinations.
func (c *UserContacts) Contacts(ctx context.Context, subjectID string) (Contacts, error) {
	u, err := c.users.Get(ctx, subjectID)
	if err != nil {
		return Contacts{}, err
	}

	var out Contacts
	if u.Consents.EmailAlerts {
		out.Email = u.Email
	}
	if u.Consents.PushAlerts && c.devices != nil {
		devices, err := c.devices.Tokens(ctx, subjectID)
		if err != nil {
			return Contacts{}, fmt.Errorf("list devices: %w", err)
		}
		for _, d := range devices {
			out.PushTokens = append(out.PushTokens, d.Token)
		}
	}
	return out, nil
}
