package notification_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/aqiguard/internal/notification"
)

func TestRedeliverer_Run(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)
	email := &mockChannel{method: notification.MethodEmail}
	alerts := notification.NewInMemoryAlertLog()

	d := notification.NewDispatcher(notification.DispatcherConfig{
		Channels: []notification.Channel{email},
		Contacts: staticContacts{},
		Fallback: store,
		AlertLog: alerts,
		Logger:   zerolog.Nop(),
	})

	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(ctx, failedMessage("ok", base)))

	exhausted := failedMessage("old", base.Add(time.Second))
	exhausted.Attempts = notification.DefaultMaxAttempts
	require.NoError(t, store.Save(ctx, exhausted))

	orphan := failedMessage("sms", base.Add(2*time.Second))
	orphan.Channel = "sms"
	require.NoError(t, store.Save(ctx, orphan))

	r := notification.NewRedeliverer(notification.RedeliverConfig{
		Dispatcher: d,
		Store:      store,
		Logger:     zerolog.Nop(),
	})

	result, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, notification.RedeliverResult{Delivered: 1, Skipped: 1}, result)
	assert.Equal(t, 1, email.count())

	remaining, err := store.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)

	logged, err := alerts.ListBySubject(ctx, "usr_1", 0)
	require.NoError(t, err)
	assert.Len(t, logged, 1)
}

func TestRedeliverer_FailureBumpsAttempts(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)
	email := &mockChannel{method: notification.MethodEmail, err: errors.New("503")}

	d := notification.NewDispatcher(notification.DispatcherConfig{
		Channels: []notification.Channel{email},
		Contacts: staticContacts{},
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, store.Save(ctx, failedMessage("f1", time.Now())))

	r := notification.NewRedeliverer(notification.RedeliverConfig{Dispatcher: d, Store: store, Logger: zerolog.Nop()})
	result, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)

	remaining, err := store.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, 2, remaining[0].Attempts)
	assert.Equal(t, "503", remaining[0].LastError)
}

func TestRedeliverer_ExhaustedRecordsDoNotBlockNewer(t *testing.T) {
	for name, open := range fallbackStores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := open(t)
			email := &mockChannel{method: notification.MethodEmail}

			d := notification.NewDispatcher(notification.DispatcherConfig{
				Channels: []notification.Channel{email},
				Contacts: staticContacts{},
				Logger:   zerolog.Nop(),
			})

			base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
			for i, id := range []string{"dead-1", "dead-2"} {
				f := failedMessage(id, base.Add(time.Duration(i)*time.Second))
				f.Attempts = notification.DefaultMaxAttempts
				require.NoError(t, store.Save(ctx, f))
			}
			require.NoError(t, store.Save(ctx, failedMessage("fresh", base.Add(time.Hour))))

			r := notification.NewRedeliverer(notification.RedeliverConfig{
				Dispatcher: d,
				Store:      store,
				BatchSize:  2,
				Logger:     zerolog.Nop(),
			})

			result, err := r.Run(ctx)
			require.NoError(t, err)
			assert.Equal(t, notification.RedeliverResult{Delivered: 1}, result)
			assert.Equal(t, 1, email.count())

			// Exhausted records are kept for inspection.
			remaining, err := store.List(ctx, 0, 0)
			require.NoError(t, err)
			assert.Len(t, remaining, 2)
		})
	}
}
