// Package pipeline runs one personalized AQI evaluation end to end:
// locate, fetch the ambient reading, personalize, adjust for weather,
// classify, record to history and notify.
//
// Recording and notification are optional stages. Their failures are
// reported as StageOutcome values on the Result and logged; they never
// fail the evaluation.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/breatheroute/aqiguard/internal/airquality"
	"github.com/breatheroute/aqiguard/internal/aqi"
	"github.com/breatheroute/aqiguard/internal/weather"
)

// Fatal errors.
var (
	ErrProfileNotFound  = errors.New("health profile not found")
	ErrDataUnavailable  = errors.New("no usable air quality data")
	ErrLocationNotFound = errors.New("location not found")
	ErrLocationRequired = errors.New("coordinates or city required")
)

// NotifyThreshold is the personalized AQI above which an alert is sent.
const NotifyThreshold = 100

// Stage names a pipeline state.
type Stage string

const (
	StageReceived        Stage = "received"
	StageRawFetched      Stage = "raw_fetched"
	StagePersonalized    Stage = "personalized"
	StageWeatherAdjusted Stage = "weather_adjusted"
	StageClassified      Stage = "classified"
	StageRecorded        Stage = "recorded"
	StageNotified        Stage = "notified"
	StageResponded       Stage = "responded"
)

// StageStatus is the outcome of one stage.
type StageStatus string

const (
	StatusOK      StageStatus = "ok"
	StatusSkipped StageStatus = "skipped"
	StatusFailed  StageStatus = "failed"
)

// StageOutcome records what happened in one stage.
type StageOutcome struct {
	Stage  Stage
	Status StageStatus
	Err    error
}

// ProfilePolicy decides what a missing health profile means.
type ProfilePolicy int

const (
	// ProfileRequired fails the evaluation with ErrProfileNotFound.
	ProfileRequired ProfilePolicy = iota
	// ProfileOptional returns the unpersonalized value.
	ProfileOptional
)

func (p ProfilePolicy) String() string {
	if p == ProfileOptional {
		return "optional"
	}
	return "required"
}

// Request is one evaluation request. Coordinates take precedence over City.
type Request struct {
	SubjectID      string
	Lat, Lon       float64
	HasCoordinates bool
	City           string
	Policy         ProfilePolicy
}

// Result is a completed evaluation.
type Result struct {
	Evaluation aqi.Evaluation
	// Personalized is false when no health profile was applied.
	Personalized bool
	City         string
	Reading      airquality.Result
	Weather      *weather.Snapshot // nil when the weather stage was skipped
	Outcomes     []StageOutcome
	State        Stage
}

// Outcome returns the recorded outcome for stage.
func (r *Result) Outcome(stage Stage) (StageOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.Stage == stage {
			return o, true
		}
	}
	return StageOutcome{}, false
}

func (r *Result) advance(stage Stage, status StageStatus, err error) {
	r.Outcomes = append(r.Outcomes, StageOutcome{Stage: stage, Status: status, Err: err})
	if status != StatusFailed {
		r.State = stage
	}
}

// ReadingSource resolves the ambient reading at a point. It never fails;
// provider problems yield a fallback reading.
type ReadingSource interface {
	CurrentReading(ctx context.Context, lat, lon float64) airquality.Result
}

// WeatherSource returns current conditions and geocodes city names.
type WeatherSource interface {
	Current(ctx context.Context, q weather.Query) weather.Snapshot
	Locate(ctx context.Context, city string) (lat, lon float64, err error)
}

// ProfileSource returns a subject's health flags. Missing profiles are
// reported with an error matched by IsProfileMissing.
type ProfileSource interface {
	HealthProfile(ctx context.Context, subjectID string) (aqi.HealthProfile, error)
}

// Recorder appends evaluations to history.
type Recorder interface {
	Record(ctx context.Context, e aqi.Evaluation) (string, error)
}

// Notifier sends alerts.
type Notifier interface {
	Dispatch(ctx context.Context, subjectID string, tier aqi.Tier, message string) error
}

// alertMessage is the body of an alert notification.
func alertMessage(place string, tier aqi.Tier, value int) string {
	return fmt.Sprintf("Air quality in %s is %s. Personalized AQI: %d.", place, tier, value)
}
