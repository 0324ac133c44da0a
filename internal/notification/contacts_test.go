package notification_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/aqiguard/internal/device"
	"github.com/breatheroute/aqiguard/internal/notification"
	"github.com/breatheroute/aqiguard/internal/user"
)

func TestUserContacts_HonorsConsents(t *testing.T) {
	ctx := context.Background()
	users := user.NewService(user.NewInMemoryRepository())
	devices := device.NewService(device.NewInMemoryRepository())

	email := "ana@example.com"
	_, err := users.UpdateSettings(ctx, "usr_1", user.SettingsInput{Email: &email})
	require.NoError(t, err)
	_, _, err = devices.Register(ctx, "usr_1", "dev_1", device.RegisterInput{Platform: device.PlatformFCM, Token: "tok"})
	require.NoError(t, err)

	resolver := notification.NewUserContacts(users, devices)

	c, err := resolver.Contacts(ctx, "usr_1")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", c.Email)
	assert.Equal(t, []string{"tok"}, c.PushTokens)

	off := false
	_, err = users.UpdateSettings(ctx, "usr_1", user.SettingsInput{EmailAlerts: &off})
	require.NoError(t, err)

	c, err = resolver.Contacts(ctx, "usr_1")
	require.NoError(t, err)
	assert.Empty(t, c.Email)
	assert.Empty(t, c.Destinations(notification.MethodEmail))
	assert.Len(t, c.Destinations(notification.MethodPush), 1)

	_, err = resolver.Contacts(ctx, "usr_missing")
	assert.ErrorIs(t, err, user.ErrUserNotFound)
}
