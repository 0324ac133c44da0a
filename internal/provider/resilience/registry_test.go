package resilience_test

import (
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/aqiguard/internal/provider/resilience"
)

func TestRegistry_ClientRegistersItself(t *testing.T) {
	registry := resilience.NewRegistry()
	cfg := resilience.DefaultClientConfig("openweathermap")
	cfg.Registry = registry

	client := resilience.NewClient(cfg)

	health, ok := registry.Health("openweathermap")
	require.True(t, ok)
	assert.Equal(t, client.Name(), health.Name)
	assert.Equal(t, gobreaker.StateClosed, health.CircuitState)
	assert.Equal(t, "healthy", health.Status())
}

func TestRegistry_SnapshotSortedByName(t *testing.T) {
	registry := resilience.NewRegistry()
	for _, name := range []string{"tempo", "openaq", "sendgrid"} {
		cfg := resilience.DefaultClientConfig(name)
		cfg.Registry = registry
		resilience.NewClient(cfg)
	}

	snapshot := registry.Snapshot()
	require.Len(t, snapshot, 3)
	assert.Equal(t, "openaq", snapshot[0].Name)
	assert.Equal(t, "sendgrid", snapshot[1].Name)
	assert.Equal(t, "tempo", snapshot[2].Name)
}

func TestRegistry_UnknownProvider(t *testing.T) {
	_, ok := resilience.NewRegistry().Health("missing")
	assert.False(t, ok)
}

func TestProviderHealth_Status(t *testing.T) {
	assert.Equal(t, "unhealthy", resilience.ProviderHealth{CircuitState: gobreaker.StateOpen}.Status())
	assert.Equal(t, "degraded", resilience.ProviderHealth{CircuitState: gobreaker.StateHalfOpen}.Status())
}
