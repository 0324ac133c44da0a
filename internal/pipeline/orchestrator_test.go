package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/aqiguard/internal/airquality"
	"github.com/breatheroute/aqiguard/internal/aqi"
	"github.com/breatheroute/aqiguard/internal/history"
	"github.com/breatheroute/aqiguard/internal/notification"
	"github.com/breatheroute/aqiguard/internal/pipeline"
	"github.com/breatheroute/aqiguard/internal/user"
	"github.com/breatheroute/aqiguard/internal/weather"
)

const (
	testLat = -23.5505
	testLon = -46.6333
)

type stationProvider struct {
	pm25 float64
	err  error
}

func (p stationProvider) Name() string { return "stub" }

func (p stationProvider) FetchNearestReadings(context.Context, float64, float64, int, int) ([]airquality.StationReading, error) {
	if p.err != nil {
		return nil, p.err
	}
	return []airquality.StationReading{{
		Station:      airquality.Station{ID: "s1", Name: "Sé", Lat: testLat, Lon: testLon},
		Measurements: []airquality.Measurement{{Pollutant: aqi.PollutantPM25, Value: p.pm25}},
	}}, nil
}

type stubWeather struct {
	snap      weather.Snapshot
	locateErr error
}

func (s stubWeather) Current(context.Context, weather.Query) weather.Snapshot { return s.snap }

func (s stubWeather) Locate(context.Context, string) (float64, float64, error) {
	if s.locateErr != nil {
		return 0, 0, s.locateErr
	}
	return testLat, testLon, nil
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, aqi.Evaluation) (string, error) {
	return "", errors.New("database is down")
}

type recordingChannel struct {
	err error

	mu   sync.Mutex
	sent []notification.Message
}

func (c *recordingChannel) Method() notification.Method { return notification.MethodEmail }

func (c *recordingChannel) Send(_ context.Context, msg notification.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

type fixture struct {
	users    *user.Service
	history  *history.Recorder
	channel  *recordingChannel
	fallback *notification.FileStore
	weather  stubWeather
	provider stationProvider
	recorder pipeline.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	users := user.NewService(user.NewInMemoryRepository())
	email := "ana@example.com"
	_, err := users.UpdateSettings(ctx, "usr_1", user.SettingsInput{Email: &email})
	require.NoError(t, err)
	_, err = users.UpsertHealthProfile(ctx, "usr_1", aqi.HealthProfile{HasAsthma: true})
	require.NoError(t, err)

	fallback, err := notification.NewFileStore(t.TempDir())
	require.NoError(t, err)

	rec := history.NewRecorder(history.NewInMemoryRepository())
	return &fixture{
		users:    users,
		history:  rec,
		recorder: rec,
		channel:  &recordingChannel{},
		fallback: fallback,
		// Humidity above 70 adds 5.
		weather:  stubWeather{snap: weather.Snapshot{WindSpeed: 3, Humidity: 80, Temperature: 25}},
		provider: stationProvider{pm25: 40},
	}
}

func (f *fixture) orchestrator() *pipeline.Orchestrator {
	dispatcher := notification.NewDispatcher(notification.DispatcherConfig{
		Channels: []notification.Channel{f.channel},
		Contacts: notification.NewUserContacts(f.users, nil),
		Fallback: f.fallback,
		AlertLog: notification.NewInMemoryAlertLog(),
		Logger:   zerolog.Nop(),
	})

	return pipeline.New(pipeline.Config{
		Readings: airquality.NewService(airquality.ServiceConfig{
			Providers: []airquality.Provider{f.provider},
			Logger:    zerolog.Nop(),
		}),
		Weather:  f.weather,
		Profiles: f.users,
		Recorder: f.recorder,
		Notifier: dispatcher,
		IsProfileMissing: func(err error) bool {
			return errors.Is(err, user.ErrProfileNotFound) || errors.Is(err, user.ErrUserNotFound)
		},
		Logger: zerolog.Nop(),
	})
}

func statusOf(t *testing.T, res *pipeline.Result, stage pipeline.Stage) pipeline.StageStatus {
	t.Helper()
	o, ok := res.Outcome(stage)
	require.True(t, ok, "missing outcome for %s", stage)
	return o.Status
}

func TestEvaluate_EndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.orchestrator().Evaluate(ctx, pipeline.Request{
		SubjectID:      "usr_1",
		Lat:            testLat,
		Lon:            testLon,
		HasCoordinates: true,
		Policy:         pipeline.ProfileRequired,
	})
	require.NoError(t, err)

	e := res.Evaluation
	assert.Equal(t, 112, e.RawAQI)
	assert.Equal(t, 137, e.PersonalizedAQI)
	assert.Equal(t, aqi.TierOrange, e.Tier)
	assert.False(t, e.Degraded)
	assert.True(t, res.Personalized)
	assert.Equal(t, pipeline.StageResponded, res.State)
	assert.NotEmpty(t, e.ID)

	for _, stage := range []pipeline.Stage{
		pipeline.StageReceived, pipeline.StageRawFetched, pipeline.StagePersonalized,
		pipeline.StageWeatherAdjusted, pipeline.StageClassified, pipeline.StageRecorded,
		pipeline.StageNotified, pipeline.StageResponded,
	} {
		assert.Equal(t, pipeline.StatusOK, statusOf(t, res, stage), stage)
	}

	stored, err := f.history.ListBySubject(ctx, "usr_1", 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, e, stored[0])

	require.Len(t, f.channel.sent, 1)
	assert.Contains(t, f.channel.sent[0].Body, "137")
	assert.Equal(t, "ana@example.com", f.channel.sent[0].Destination)
}

func TestEvaluate_ProviderFailureUsesFallback(t *testing.T) {
	f := newFixture(t)
	f.provider = stationProvider{err: errors.New("timeout")}
	f.weather.snap = weather.Snapshot{WindSpeed: 6, Humidity: 40, Temperature: 20}

	res, err := f.orchestrator().Evaluate(context.Background(), pipeline.Request{
		SubjectID:      "usr_1",
		Lat:            testLat,
		Lon:            testLon,
		HasCoordinates: true,
		Policy:         pipeline.ProfileRequired,
	})
	require.NoError(t, err)

	assert.Equal(t, aqi.FallbackAQI, res.Evaluation.RawAQI)
	assert.Equal(t, aqi.StatusFallback, res.Reading.Status)
	assert.True(t, res.Evaluation.Degraded)
	// 50 + 20 asthma - 5 wind
	assert.Equal(t, 65, res.Evaluation.PersonalizedAQI)
	assert.Equal(t, aqi.TierYellow, res.Evaluation.Tier)
	assert.Equal(t, pipeline.StatusSkipped, statusOf(t, res, pipeline.StageNotified))
	assert.Empty(t, f.channel.sent)
}

func TestEvaluate_NotificationFailureKeepsEvaluation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.channel.err = errors.New("smtp unavailable")

	res, err := f.orchestrator().Evaluate(ctx, pipeline.Request{
		SubjectID:      "usr_1",
		Lat:            testLat,
		Lon:            testLon,
		HasCoordinates: true,
		Policy:         pipeline.ProfileRequired,
	})
	require.NoError(t, err)
	assert.Equal(t, 137, res.Evaluation.PersonalizedAQI)
	assert.Equal(t, pipeline.StageResponded, res.State)

	o, ok := res.Outcome(pipeline.StageNotified)
	require.True(t, ok)
	assert.Equal(t, pipeline.StatusFailed, o.Status)
	assert.ErrorContains(t, o.Err, "smtp unavailable")

	pending, err := f.fallback.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "ana@example.com", pending[0].Destination)
	assert.Equal(t, aqi.TierOrange, pending[0].Tier)
}

func TestEvaluate_RecordFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.recorder = failingRecorder{}

	res, err := f.orchestrator().Evaluate(context.Background(), pipeline.Request{
		SubjectID:      "usr_1",
		Lat:            testLat,
		Lon:            testLon,
		HasCoordinates: true,
		Policy:         pipeline.ProfileRequired,
	})
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusFailed, statusOf(t, res, pipeline.StageRecorded))
	assert.Empty(t, res.Evaluation.ID)
	assert.Equal(t, pipeline.StatusOK, statusOf(t, res, pipeline.StageNotified))
}

func TestEvaluate_ProfilePolicies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.provider = stationProvider{pm25: 60} // AQI 153
	o := f.orchestrator()

	_, err := o.Evaluate(ctx, pipeline.Request{
		SubjectID: "usr_nobody", Lat: testLat, Lon: testLon, HasCoordinates: true,
		Policy: pipeline.ProfileRequired,
	})
	assert.ErrorIs(t, err, pipeline.ErrProfileNotFound)

	_, err = o.Evaluate(ctx, pipeline.Request{
		Lat: testLat, Lon: testLon, HasCoordinates: true, Policy: pipeline.ProfileRequired,
	})
	assert.ErrorIs(t, err, pipeline.ErrProfileNotFound)

	res, err := o.Evaluate(ctx, pipeline.Request{
		Lat: testLat, Lon: testLon, HasCoordinates: true, Policy: pipeline.ProfileOptional,
	})
	require.NoError(t, err)
	assert.False(t, res.Personalized)
	assert.Equal(t, res.Evaluation.RawAQI, res.Evaluation.PersonalizedAQI)
	assert.Equal(t, aqi.TierRed, res.Evaluation.Tier, "tier follows the number, not a default")
	assert.Nil(t, res.Weather)
	assert.Equal(t, pipeline.StatusSkipped, statusOf(t, res, pipeline.StagePersonalized))
	assert.Equal(t, pipeline.StatusSkipped, statusOf(t, res, pipeline.StageNotified), "anonymous requests are not notified")
}

func TestEvaluate_CityLookup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.orchestrator().Evaluate(ctx, pipeline.Request{
		SubjectID: "usr_1", City: "São Paulo", Policy: pipeline.ProfileRequired,
	})
	require.NoError(t, err)
	assert.Equal(t, testLat, res.Evaluation.Latitude)
	assert.Equal(t, "São Paulo", res.City)

	f.weather.locateErr = weather.ErrCityNotFound
	_, err = f.orchestrator().Evaluate(ctx, pipeline.Request{SubjectID: "usr_1", City: "Atlantis"})
	assert.ErrorIs(t, err, pipeline.ErrLocationNotFound)

	f.weather.locateErr = nil
	_, err = f.orchestrator().Evaluate(ctx, pipeline.Request{SubjectID: "usr_1"})
	assert.ErrorIs(t, err, pipeline.ErrLocationRequired)
}

func TestEvaluate_GeocoderOutageUsesFallback(t *testing.T) {
	for _, locateErr := range []error{weather.ErrProviderUnavailable, errors.New("dial tcp: i/o timeout")} {
		t.Run(locateErr.Error(), func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			f.weather.locateErr = locateErr

			res, err := f.orchestrator().Evaluate(ctx, pipeline.Request{
				SubjectID: "usr_1", City: "Recife", Policy: pipeline.ProfileRequired,
			})
			require.NoError(t, err)

			// 50 fallback + 20 asthma; the fallback weather adjusts nothing.
			assert.Equal(t, aqi.FallbackAQI, res.Evaluation.RawAQI)
			assert.Equal(t, 70, res.Evaluation.PersonalizedAQI)
			assert.Equal(t, aqi.TierYellow, res.Evaluation.Tier)
			assert.True(t, res.Evaluation.Degraded)
			assert.Equal(t, aqi.StatusFallback, res.Reading.Status)
			require.NotNil(t, res.Weather)
			assert.True(t, res.Weather.Degraded)
			assert.Equal(t, "Recife", res.Weather.City)
			assert.Equal(t, pipeline.StatusOK, statusOf(t, res, pipeline.StageRecorded))
			assert.Equal(t, pipeline.StageResponded, res.State)

			evals, err := f.history.ListBySubject(ctx, "usr_1", 10)
			require.NoError(t, err)
			assert.Len(t, evals, 1)
		})
	}
}

func TestEvaluate_ConcurrentRunsAreIndependent(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := o.Evaluate(context.Background(), pipeline.Request{
				SubjectID: "usr_1", Lat: testLat, Lon: testLon, HasCoordinates: true,
				Policy: pipeline.ProfileRequired,
			})
			assert.NoError(t, err)
			assert.Equal(t, 137, res.Evaluation.PersonalizedAQI)
		}()
	}
	wg.Wait()

	stored, err := f.history.ListBySubject(context.Background(), "usr_1", 100)
	require.NoError(t, err)
	assert.Len(t, stored, 20)
}
