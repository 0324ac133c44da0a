package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/aqiguard/internal/airquality"
	"github.com/breatheroute/aqiguard/internal/api"
	"github.com/breatheroute/aqiguard/internal/api/models"
	"github.com/breatheroute/aqiguard/internal/aqi"
	"github.com/breatheroute/aqiguard/internal/auth"
	"github.com/breatheroute/aqiguard/internal/chatbot"
	"github.com/breatheroute/aqiguard/internal/device"
	"github.com/breatheroute/aqiguard/internal/forecast"
	"github.com/breatheroute/aqiguard/internal/history"
	"github.com/breatheroute/aqiguard/internal/notification"
	"github.com/breatheroute/aqiguard/internal/pipeline"
	"github.com/breatheroute/aqiguard/internal/provider/resilience"
	"github.com/breatheroute/aqiguard/internal/user"
	"github.com/breatheroute/aqiguard/internal/weather"
)

const testSigningKey = "test-secret-key-for-testing-only"

// fixedReadings always reports a computed AQI of 112.
type fixedReadings struct{}

func (fixedReadings) CurrentReading(_ context.Context, _, _ float64) airquality.Result {
	return airquality.Result{
		Reading:  aqi.Reading{AQI: 112, Pollutant: aqi.PollutantPM25, Status: aqi.StatusComputed},
		Provider: "openaq",
	}
}

// calmWeather triggers no weather adjustment.
type calmWeather struct{}

func (calmWeather) Current(_ context.Context, q weather.Query) weather.Snapshot {
	return weather.Snapshot{Lat: q.Lat, Lon: q.Lon, City: q.City, WindSpeed: 2, Humidity: 50, Temperature: 22}
}

func (calmWeather) Locate(_ context.Context, city string) (float64, float64, error) {
	if city == "Atlantis" {
		return 0, 0, weather.ErrCityNotFound
	}
	return -23.55, -46.63, nil
}

type testServer struct {
	handler http.Handler
	jwt     *auth.JWTService
	users   *user.Service
}

func newTestServer(t *testing.T, publicLimit int) *testServer {
	t.Helper()

	users := user.NewService(user.NewInMemoryRepository())
	recorder := history.NewRecorder(history.NewInMemoryRepository())
	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: testSigningKey,
		Issuer:     "aqiguard",
		Audience:   "aqiguard-api",
	})

	orchestrator := pipeline.New(pipeline.Config{
		Readings: fixedReadings{},
		Weather:  calmWeather{},
		Profiles: users,
		Recorder: recorder,
		IsProfileMissing: func(err error) bool {
			return errors.Is(err, user.ErrProfileNotFound) || errors.Is(err, user.ErrUserNotFound)
		},
		Logger: zerolog.Nop(),
	})
	forecasts := forecast.NewService(forecast.ServiceConfig{Weather: calmWeather{}, Logger: zerolog.Nop()})
	bot := chatbot.New(chatbot.Config{Forecaster: forecasts, Profiles: users})

	router := api.NewRouter(api.RouterConfig{
		Version: "test",
		Logger:  zerolog.Nop(),
		Tokens:  jwtService,
		Services: api.Services{
			Evaluator: orchestrator,
			Users:     users,
			Devices:   device.NewService(device.NewInMemoryRepository()),
			History:   recorder,
			Alerts:    notification.NewInMemoryAlertLog(),
			Forecasts: forecasts,
			Chatbot:   bot,
		},
		Providers:       resilience.NewRegistry(),
		PublicRateLimit: publicLimit,
	})

	return &testServer{handler: router, jwt: jwtService, users: users}
}

func (s *testServer) token(t *testing.T, subject string) string {
	t.Helper()
	token, _, err := s.jwt.IssueAccessToken(subject, time.Hour)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, target, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader = http.NoBody
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	req.RemoteAddr = "198.51.100.7:4321"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestRouter_HealthCheck(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := srv.do(t, http.MethodGet, "/v1/health", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), `"status":"OK"`)
}

func TestRouter_ReadinessInMemory(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := srv.do(t, http.MethodGet, "/v1/ready", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var status models.SystemStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, models.HealthStatusOK, status.Status)
}

func TestRouter_MonitorAnonymous(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := srv.do(t, http.MethodGet, "/v1/monitor/aqi?lat=-23.55&lon=-46.63", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"usuario_id":null`)
	var body models.AQIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 112, body.AQIOriginal)
	assert.Equal(t, 112, body.AQIPersonalizado)
	assert.Equal(t, aqi.TierOrange, body.NivelAlerta)
	assert.False(t, body.Personalized)
	assert.Nil(t, body.UsuarioID)
}

func TestRouter_MonitorRejectsBadToken(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := srv.do(t, http.MethodGet, "/v1/monitor/aqi?lat=1&lon=1", "", "not-a-token")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_PersonalFlow(t *testing.T) {
	srv := newTestServer(t, 0)
	token := srv.token(t, "usr_ana")

	rec := srv.do(t, http.MethodGet, "/v1/me/aqi?lat=-23.55&lon=-46.63", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	rec = srv.do(t, http.MethodGet, "/v1/me/aqi?lat=-23.55&lon=-46.63", "", token)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "health-profile-required")

	profile := `{"has_asthma":true,"has_copd":false,"has_allergies":false,"is_smoker":false,"high_sensitivity":false}`
	rec = srv.do(t, http.MethodPut, "/v1/me/health-profile", profile, token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodGet, "/v1/me/aqi?lat=-23.55&lon=-46.63", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var body models.AQIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 112, body.AQIOriginal)
	assert.Equal(t, 132, body.AQIPersonalizado)
	assert.Equal(t, aqi.TierOrange, body.NivelAlerta)
	require.NotNil(t, body.UsuarioID)
	assert.Equal(t, "usr_ana", *body.UsuarioID)
	assert.True(t, body.Personalized)

	// The same token personalizes the public monitor.
	rec = srv.do(t, http.MethodGet, "/v1/monitor/aqi?lat=-23.55&lon=-46.63", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.Personalized)

	rec = srv.do(t, http.MethodGet, "/v1/me/history", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var page models.PagedHistory
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	assert.Len(t, page.Items, 2)

	// Nearby history is public and includes both evaluations.
	rec = srv.do(t, http.MethodGet, "/v1/monitor/history?lat=-23.55&lon=-46.63&radius=500", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	assert.Len(t, page.Items, 2)

	rec = srv.do(t, http.MethodGet, "/v1/me/alerts", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = srv.do(t, http.MethodGet, "/v1/me/alerts", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var alerts models.PagedAlerts
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&alerts))
	assert.Empty(t, alerts.Items)

	rec = srv.do(t, http.MethodGet, "/v1/me/forecast?lat=-23.55&lon=-46.63", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var fc models.ForecastResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&fc))
	assert.Len(t, fc.Points, forecast.Days)
}

func TestRouter_UnknownCity(t *testing.T) {
	srv := newTestServer(t, 0)
	token := srv.token(t, "usr_bob")

	rec := srv.do(t, http.MethodPut, "/v1/me", `{"city":"Atlantis"}`, token)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := `{"has_asthma":false,"has_copd":false,"has_allergies":false,"is_smoker":false,"high_sensitivity":false}`
	rec = srv.do(t, http.MethodPut, "/v1/me/health-profile", profile, token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodGet, "/v1/me/aqi", "", token)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "location-not-found")
	assert.Contains(t, rec.Body.String(), "Atlantis")
}

func TestRouter_Chatbot(t *testing.T) {
	srv := newTestServer(t, 0)
	token := srv.token(t, "usr_chat")

	rec := srv.do(t, http.MethodPost, "/v1/chatbot", `{"text":"hello"}`, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var reply models.ChatResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&reply))
	assert.NotEmpty(t, reply.Reply)

	rec = srv.do(t, http.MethodGet, "/v1/chatbot/history", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var hist models.ChatHistory
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&hist))
	assert.Len(t, hist.Items, 1)
}

func TestRouter_UnsupportedMediaType(t *testing.T) {
	srv := newTestServer(t, 0)

	req := httptest.NewRequest(http.MethodPost, "/v1/chatbot", strings.NewReader("text=hi"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+srv.token(t, "usr_1"))
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestRouter_NotFoundAndMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := srv.do(t, http.MethodGet, "/v1/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	rec = srv.do(t, http.MethodDelete, "/v1/health", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), "method-not-allowed")
}

func TestRouter_PublicRateLimit(t *testing.T) {
	srv := newTestServer(t, 2)

	for range 2 {
		rec := srv.do(t, http.MethodGet, "/v1/monitor/aqi?lat=1&lon=1", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := srv.do(t, http.MethodGet, "/v1/monitor/aqi?lat=1&lon=1", "", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Ops endpoints are not limited.
	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/v1/health", "", "").Code)
}
