package weather_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/aqiguard/internal/weather"
)

type mockProvider struct {
	mu        sync.Mutex
	callCount int
	err       error
	delay     time.Duration
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) observe(lat, lon float64, city string) (*weather.Snapshot, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	if m.err != nil {
		return nil, m.err
	}
	return &weather.Snapshot{
		Lat: lat, Lon: lon, City: city,
		WindSpeed: 6, Humidity: 80, Temperature: 32,
		Condition:  weather.ConditionClear,
		ObservedAt: time.Now(),
	}, nil
}

func (m *mockProvider) CurrentByCoordinates(_ context.Context, lat, lon float64) (*weather.Snapshot, error) {
	return m.observe(lat, lon, "")
}

func (m *mockProvider) CurrentByCity(_ context.Context, city string) (*weather.Snapshot, error) {
	if city == "Atlantis" {
		return nil, weather.ErrCityNotFound
	}
	return m.observe(-22.9068, -43.1729, city)
}

func (m *mockProvider) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func (m *mockProvider) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func newService(p weather.Provider, ttl time.Duration) *weather.Service {
	return weather.NewService(weather.ServiceConfig{
		Provider: p,
		Logger:   zerolog.New(io.Discard),
		CacheTTL: ttl,
	})
}

func TestService_Current(t *testing.T) {
	provider := &mockProvider{}
	svc := newService(provider, time.Minute)

	snapshot := svc.Current(context.Background(), weather.AtCoordinates(-23.55, -46.63))

	assert.Equal(t, 6.0, snapshot.WindSpeed)
	assert.Equal(t, 80.0, snapshot.Humidity)
	assert.Equal(t, 32.0, snapshot.Temperature)
	assert.False(t, snapshot.Degraded)
}

func TestService_FallbackOnError(t *testing.T) {
	provider := &mockProvider{err: errors.New("timeout")}
	svc := newService(provider, time.Minute)

	snapshot := svc.Current(context.Background(), weather.InCity("Recife"))

	assert.True(t, snapshot.Degraded)
	assert.Equal(t, weather.FallbackWindSpeed, snapshot.WindSpeed)
	assert.Equal(t, weather.FallbackHumidity, snapshot.Humidity)
	assert.Equal(t, weather.FallbackTemperature, snapshot.Temperature)
	assert.Equal(t, "Recife", snapshot.City)
}

func TestService_FallbackOnInvalidQuery(t *testing.T) {
	provider := &mockProvider{}
	svc := newService(provider, time.Minute)

	assert.True(t, svc.Current(context.Background(), weather.Query{}).Degraded)
	assert.True(t, svc.Current(context.Background(), weather.AtCoordinates(95, 0)).Degraded)
	assert.Equal(t, 0, provider.calls())
}

func TestService_CachesByGridCell(t *testing.T) {
	provider := &mockProvider{}
	svc := newService(provider, time.Minute)

	svc.Current(context.Background(), weather.AtCoordinates(-23.551, -46.631))
	svc.Current(context.Background(), weather.AtCoordinates(-23.559, -46.639))
	svc.Current(context.Background(), weather.AtCoordinates(-22.90, -43.17))

	assert.Equal(t, 2, provider.calls())
}

func TestService_ServesStaleOnError(t *testing.T) {
	provider := &mockProvider{}
	svc := newService(provider, time.Millisecond)

	first := svc.Current(context.Background(), weather.InCity("Curitiba"))
	time.Sleep(5 * time.Millisecond)
	provider.fail(errors.New("outage"))

	second := svc.Current(context.Background(), weather.InCity("curitiba"))

	assert.False(t, second.Degraded)
	assert.Equal(t, first.Temperature, second.Temperature)
}

func TestService_LocateUsesCityLookupAndCaches(t *testing.T) {
	provider := &mockProvider{}
	svc := newService(provider, time.Minute)

	lat, lon, err := svc.Locate(context.Background(), "Rio de Janeiro")
	require.NoError(t, err)
	assert.Equal(t, -22.9068, lat)
	assert.Equal(t, -43.1729, lon)

	svc.Current(context.Background(), weather.InCity("Rio de Janeiro"))
	assert.Equal(t, 1, provider.calls())
}

func TestService_LocateUnknownCity(t *testing.T) {
	svc := newService(&mockProvider{}, time.Minute)

	_, _, err := svc.Locate(context.Background(), "Atlantis")
	assert.ErrorIs(t, err, weather.ErrCityNotFound)
}

func TestService_ConcurrentCallsShareFetch(t *testing.T) {
	provider := &mockProvider{delay: 30 * time.Millisecond}
	svc := newService(provider, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.Current(context.Background(), weather.AtCoordinates(10, 10))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, provider.calls())
}

// gatedProvider blocks until release is closed or its context ends.
type gatedProvider struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedProvider) Name() string { return "gated" }

func (g *gatedProvider) wait(ctx context.Context, lat, lon float64, city string) (*weather.Snapshot, error) {
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
		return &weather.Snapshot{Lat: lat, Lon: lon, City: city, WindSpeed: 1, Humidity: 40, Temperature: 20}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *gatedProvider) CurrentByCoordinates(ctx context.Context, lat, lon float64) (*weather.Snapshot, error) {
	return g.wait(ctx, lat, lon, "")
}

func (g *gatedProvider) CurrentByCity(ctx context.Context, city string) (*weather.Snapshot, error) {
	return g.wait(ctx, 0, 0, city)
}

func TestService_CancelledCallerDoesNotFailSharedFetch(t *testing.T) {
	provider := &gatedProvider{started: make(chan struct{}), release: make(chan struct{})}
	svc := newService(provider, time.Minute)
	q := weather.AtCoordinates(5, 5)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan weather.Snapshot, 1)
	go func() { first <- svc.Current(ctx, q) }()

	<-provider.started
	cancel()
	assert.True(t, (<-first).Degraded)

	second := make(chan weather.Snapshot, 1)
	go func() { second <- svc.Current(context.Background(), q) }()
	time.Sleep(20 * time.Millisecond)
	close(provider.release)

	snap := <-second
	assert.False(t, snap.Degraded)
	assert.Equal(t, 1.0, snap.WindSpeed)
}
