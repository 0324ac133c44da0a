package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/aqiguard/internal/airquality"
	"github.com/breatheroute/aqiguard/internal/api/models"
	"github.com/breatheroute/aqiguard/internal/aqi"
	"github.com/breatheroute/aqiguard/internal/pipeline"
	"github.com/breatheroute/aqiguard/internal/provider/resilience"
)

func TestNewAQIResponse_PublicKeys(t *testing.T) {
	res := &pipeline.Result{
		Evaluation: aqi.Evaluation{
			SubjectID:       "usr_1",
			Latitude:        -23.55,
			Longitude:       -46.63,
			RawAQI:          112,
			PersonalizedAQI: 137,
			Tier:            aqi.TierOrange,
			Pollutant:       aqi.PollutantPM25,
			EvaluatedAt:     time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		},
		Personalized: true,
		Reading:      airquality.Result{Provider: "openaq"},
		Outcomes: []pipeline.StageOutcome{
			{Stage: pipeline.StageRawFetched, Status: pipeline.StatusOK},
		},
	}

	body, err := json.Marshal(models.NewAQIResponse(res))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, 112.0, decoded["aqi_original"])
	assert.Equal(t, 137.0, decoded["aqi_personalizado"])
	assert.Equal(t, "orange", decoded["nivel_alerta"])
	assert.Equal(t, "usr_1", decoded["usuario_id"])
	assert.Equal(t, true, decoded["personalized"])
	assert.Equal(t, "2026-05-01T12:00:00Z", decoded["evaluated_at"])
}

func TestNewAQIResponse_AnonymousUserIsNull(t *testing.T) {
	body, err := json.Marshal(models.NewAQIResponse(&pipeline.Result{}))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	id, present := decoded["usuario_id"]
	assert.True(t, present, "usuario_id must be present")
	assert.Nil(t, id)
	assert.Contains(t, string(body), `"usuario_id":null`)
}

func TestHealthProfileInput_RequiresEveryFlag(t *testing.T) {
	v := validator.New()

	var partial models.HealthProfileInput
	require.NoError(t, json.Unmarshal([]byte(`{"has_asthma":true}`), &partial))
	assert.Error(t, v.Struct(partial))

	var full models.HealthProfileInput
	require.NoError(t, json.Unmarshal([]byte(
		`{"has_asthma":true,"has_copd":false,"has_allergies":false,"is_smoker":true,"high_sensitivity":false}`,
	), &full))
	require.NoError(t, v.Struct(full))
	assert.Equal(t, aqi.HealthProfile{HasAsthma: true, IsSmoker: true}, full.Flags())
}

func TestMeInput_Validation(t *testing.T) {
	v := validator.New()
	bad := "not-an-email"
	assert.Error(t, v.Struct(models.MeInput{Email: &bad}))

	city := "Campinas"
	in := models.MeInput{City: &city, Home: &models.Location{Lat: -22.9, Lon: -47.06}}
	require.NoError(t, v.Struct(in))
	settings := in.Settings()
	require.NotNil(t, settings.Home)
	assert.Equal(t, -22.9, settings.Home.Lat)
}

func TestNewProviderStatus(t *testing.T) {
	open := models.NewProviderStatus(resilience.ProviderHealth{
		Name:         "openaq",
		CircuitState: gobreaker.StateOpen,
		LastError:    "timeout",
	})
	assert.Equal(t, models.HealthStatusFail, open.Status)
	require.NotNil(t, open.Message)
	assert.Nil(t, open.LastSuccessAt)

	closed := models.NewProviderStatus(resilience.ProviderHealth{Name: "tempo"})
	assert.Equal(t, models.HealthStatusOK, closed.Status)
	assert.Equal(t, "closed", closed.CircuitState)
}

func TestWorst(t *testing.T) {
	assert.Equal(t, models.HealthStatusDegraded, models.Worst(models.HealthStatusOK, models.HealthStatusDegraded))
	assert.Equal(t, models.HealthStatusFail, models.Worst(models.HealthStatusFail, models.HealthStatusDegraded))
}
