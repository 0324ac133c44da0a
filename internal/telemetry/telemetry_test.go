package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/breatheroute/aqiguard/internal/config"
	"github.com/breatheroute/aqiguard/internal/telemetry"
)

func TestInit_Disabled(t *testing.T) {
	ctx := context.Background()

	provider, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		OTLPEndpoint:   "localhost:4317",
		Enabled:        false,
	})

	require.NoError(t, err)
	assert.NotNil(t, provider)
	assert.NotNil(t, provider.Tracer)
	assert.NotNil(t, provider.Meter)

	// Noop provider should have nil TracerProvider and MeterProvider
	assert.Nil(t, provider.TracerProvider)
	assert.Nil(t, provider.MeterProvider)

	// Shutdown should not error
	err = provider.Shutdown(ctx)
	assert.NoError(t, err)
}

func TestProvider_Shutdown_NilProviders(t *testing.T) {
	provider := &telemetry.Provider{}
	err := provider.Shutdown(context.Background())
	assert.NoError(t, err)
}

func TestFromConfig(t *testing.T) {
	cfg := telemetry.FromConfig("aqiguard-api", "1.2.3",
		config.AppConfig{Env: "staging"},
		config.TelemetryConfig{Enabled: true, OTLPEndpoint: "collector:4317"},
	)

	assert.Equal(t, "aqiguard-api", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "collector:4317", cfg.OTLPEndpoint)
	assert.True(t, cfg.Enabled)
}

func TestAQIViews(t *testing.T) {
	views := telemetry.AQIViews()
	require.Len(t, views, 1)

	stream, ok := views[0](sdkmetric.Instrument{Name: "aqi.personalized", Kind: sdkmetric.InstrumentKindHistogram})
	require.True(t, ok)
	agg, ok := stream.Aggregation.(sdkmetric.AggregationExplicitBucketHistogram)
	require.True(t, ok)
	assert.Equal(t, telemetry.AQIBuckets, agg.Boundaries)

	_, ok = views[0](sdkmetric.Instrument{Name: "http.server.duration", Kind: sdkmetric.InstrumentKindHistogram})
	assert.False(t, ok)
}
