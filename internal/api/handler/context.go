// Package handler provides HTTP handlers for the AQI API.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/breatheroute/aqiguard/internal/api/middleware"
	"github.com/breatheroute/aqiguard/internal/api/models"
	"github.com/breatheroute/aqiguard/internal/api/response"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// subjectID returns the authenticated user, writing a 401 when there is none.
func subjectID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := middleware.GetUserID(r.Context())
	if id == "" {
		response.Unauthorized(w, r, "user not authenticated")
		return "", false
	}
	return id, true
}

// decodeJSON reads and validates a request body into dst. On failure it
// writes a 400 and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		detail := "invalid JSON body"
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			detail = "request body is empty"
		case errors.As(err, &maxErr):
			detail = "request body too large"
		}
		response.BadRequest(w, r, detail, nil)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		response.Invalid(w, r, err)
		return false
	}
	return true
}

// coordinates parses the optional lat/lon query pair. Both must be present
// together; ok is false when neither is given.
func coordinates(r *http.Request) (lat, lon float64, ok bool, errs []models.FieldError) {
	q := r.URL.Query()
	rawLat, rawLon := q.Get("lat"), q.Get("lon")
	if rawLat == "" && rawLon == "" {
		return 0, 0, false, nil
	}

	lat, latErr := parseBounded(rawLat, 90)
	if latErr != "" {
		errs = append(errs, models.FieldError{Field: "lat", Message: latErr, Code: "INVALID"})
	}
	lon, lonErr := parseBounded(rawLon, 180)
	if lonErr != "" {
		errs = append(errs, models.FieldError{Field: "lon", Message: lonErr, Code: "INVALID"})
	}
	if len(errs) > 0 {
		return 0, 0, false, errs
	}
	return lat, lon, true, nil
}

func parseBounded(raw string, bound float64) (float64, string) {
	if raw == "" {
		return 0, "is required"
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, "must be a number"
	}
	if v < -bound || v > bound {
		return 0, "must be between -" + strconv.FormatFloat(bound, 'f', -1, 64) +
			" and " + strconv.FormatFloat(bound, 'f', -1, 64)
	}
	return v, ""
}

// internalError logs err on the request logger and writes a 500.
func internalError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	zerolog.Ctx(r.Context()).Error().Err(err).Msg(msg)
	response.InternalError(w, r, "internal server error")
}
