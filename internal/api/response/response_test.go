package response_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/aqiguard/internal/api/middleware"
	"github.com/breatheroute/aqiguard/internal/api/models"
	"github.com/breatheroute/aqiguard/internal/api/response"
)

// withRequestID runs req through the RequestID middleware and returns the
// request as handlers would see it.
func withRequestID(t *testing.T, method, path string) *http.Request {
	t.Helper()
	var processed *http.Request
	handler := middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		processed = r
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(method, path, http.NoBody))
	require.NotNil(t, processed)
	return processed
}

func TestJSON_IncludesRequestID(t *testing.T) {
	req := withRequestID(t, http.MethodGet, "/v1/me/aqi")
	rec := httptest.NewRecorder()

	response.JSON(rec, req, http.StatusOK, map[string]int{"aqi_original": 42})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("X-Request-Id"), "req_"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"aqi_original":42}`, rec.Body.String())
}

func TestCreatedAndNoContent(t *testing.T) {
	req := withRequestID(t, http.MethodPut, "/v1/me/devices/dev_1")

	rec := httptest.NewRecorder()
	response.Created(rec, req, "/v1/me/devices/dev_1", map[string]string{"id": "dev_1"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/v1/me/devices/dev_1", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	response.NoContent(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter, *http.Request)
		status int
		typ    string
	}{
		{"profile required", response.ProfileRequired, http.StatusNotFound, models.ProblemTypeProfileRequired},
		{"location", func(w http.ResponseWriter, r *http.Request) { response.LocationNotFound(w, r, "Atlantis") },
			http.StatusNotFound, models.ProblemTypeLocationNotFound},
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) { response.Unauthorized(w, r, "nope") },
			http.StatusUnauthorized, models.ProblemTypeUnauthorized},
		{"unavailable", func(w http.ResponseWriter, r *http.Request) { response.ServiceUnavailable(w, r, "down") },
			http.StatusServiceUnavailable, models.ProblemTypeUnavailable},
		{"internal", func(w http.ResponseWriter, r *http.Request) { response.InternalError(w, r, "boom") },
			http.StatusInternalServerError, models.ProblemTypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := withRequestID(t, http.MethodGet, "/v1/me/aqi")
			rec := httptest.NewRecorder()
			tt.write(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			var p models.Problem
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
			assert.Equal(t, tt.typ, p.Type)
			assert.Equal(t, "/v1/me/aqi", p.Instance)
			assert.Equal(t, middleware.GetRequestID(req.Context()), p.TraceID)
		})
	}
}

type sample struct {
	Text     string `json:"text" validate:"required"`
	Platform string `json:"platform" validate:"oneof=FCM APNS"`
}

func TestFieldErrors_FromValidator(t *testing.T) {
	err := validator.New().Struct(sample{Platform: "SMS"})
	require.Error(t, err)

	fields := response.FieldErrors(err)
	require.Len(t, fields, 2)
	assert.Equal(t, "Text", fields[0].Field)
	assert.Equal(t, "REQUIRED", fields[0].Code)
	assert.Equal(t, "ONEOF", fields[1].Code)
	assert.Contains(t, fields[1].Message, "FCM APNS")
}

func TestFieldErrors_PlainError(t *testing.T) {
	fields := response.FieldErrors(errors.New("unexpected EOF"))
	require.Len(t, fields, 1)
	assert.Equal(t, "body", fields[0].Field)
}

func TestInvalid(t *testing.T) {
	req := withRequestID(t, http.MethodPost, "/v1/chatbot")
	rec := httptest.NewRecorder()

	response.Invalid(rec, req, validator.New().Struct(sample{Platform: "FCM"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "REQUIRED")
}
