package push_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/aqiguard/internal/aqi"
	"github.com/breatheroute/aqiguard/internal/notification"
	"github.com/breatheroute/aqiguard/internal/notification/push"
)

type fakePublisher struct {
	data  []byte
	attrs map[string]string
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, data []byte, attrs map[string]string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.data = data
	f.attrs = attrs
	return "srv-1", nil
}

func TestChannel_Send(t *testing.T) {
	pub := &fakePublisher{}
	ch := push.NewChannel(pub, zerolog.Nop())
	assert.Equal(t, notification.MethodPush, ch.Method())

	err := ch.Send(context.Background(), notification.Message{
		SubjectID:   "usr_1",
		Destination: "fcm-token",
		Subject:     "Air quality alert: RED",
		Body:        "AQI 180",
		Tier:        aqi.TierRed,
	})
	require.NoError(t, err)

	var p push.Payload
	require.NoError(t, json.Unmarshal(pub.data, &p))
	assert.Equal(t, "fcm-token", p.Token)
	assert.Equal(t, "red", p.Tier)
	assert.Equal(t, "aqi_alert", pub.attrs["type"])
}

func TestChannel_SendError(t *testing.T) {
	ch := push.NewChannel(&fakePublisher{err: errors.New("topic not found")}, zerolog.Nop())
	err := ch.Send(context.Background(), notification.Message{Destination: "tok"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "topic not found")
}
