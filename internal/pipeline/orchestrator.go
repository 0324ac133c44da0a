package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/breatheroute/aqiguard/internal/airquality"
	"github.com/breatheroute/aqiguard/internal/aqi"
	"github.com/breatheroute/aqiguard/internal/notification"
	"github.com/breatheroute/aqiguard/internal/weather"
)

const tracerName = "github.com/breatheroute/aqiguard/internal/pipeline"

// Config wires an Orchestrator.
type Config struct {
	Readings ReadingSource
	Weather  WeatherSource
	Profiles ProfileSource
	Recorder Recorder // optional
	Notifier Notifier // optional

	// IsProfileMissing reports whether err from Profiles means "no profile".
	IsProfileMissing func(error) bool

	Metrics *Metrics // optional
	Logger  zerolog.Logger
}

// Orchestrator runs evaluations. It is safe for concurrent use; runs share
// no state beyond the collaborators.
type Orchestrator struct {
	readings         ReadingSource
	weather          WeatherSource
	profiles         ProfileSource
	recorder         Recorder
	notifier         Notifier
	isProfileMissing func(error) bool
	metrics          *Metrics
	logger           zerolog.Logger
	tracer           trace.Tracer
	now              func() time.Time
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	isMissing := cfg.IsProfileMissing
	if isMissing == nil {
		isMissing = func(err error) bool { return errors.Is(err, ErrProfileNotFound) }
	}
	return &Orchestrator{
		readings:         cfg.Readings,
		weather:          cfg.Weather,
		profiles:         cfg.Profiles,
		recorder:         cfg.Recorder,
		notifier:         cfg.Notifier,
		isProfileMissing: isMissing,
		metrics:          cfg.Metrics,
		logger:           cfg.Logger,
		tracer:           otel.Tracer(tracerName),
		now:              time.Now,
	}
}

// Evaluate runs the pipeline for req. The returned error is one of
// ErrLocationRequired, ErrLocationNotFound, ErrDataUnavailable or
// ErrProfileNotFound, or a wrapped profile lookup failure under
// ProfileRequired.
func (o *Orchestrator) Evaluate(ctx context.Context, req Request) (*Result, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.Evaluate", trace.WithAttributes(
		attribute.String("profile_policy", req.Policy.String()),
		attribute.Bool("has_subject", req.SubjectID != ""),
	))
	defer span.End()

	logger := o.logger.With().Str("subject_id", req.SubjectID).Logger()

	res, err := o.evaluate(ctx, req, logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Info().Err(err).Msg("evaluation rejected")
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("aqi.raw", res.Evaluation.RawAQI),
		attribute.Int("aqi.personalized", res.Evaluation.PersonalizedAQI),
		attribute.String("aqi.tier", string(res.Evaluation.Tier)),
	)
	o.metrics.recordEvaluation(ctx, res)

	logger.Info().
		Int("raw_aqi", res.Evaluation.RawAQI).
		Int("personalized_aqi", res.Evaluation.PersonalizedAQI).
		Str("tier", string(res.Evaluation.Tier)).
		Bool("personalized", res.Personalized).
		Bool("degraded", res.Evaluation.Degraded).
		Msg("evaluation complete")
	return res, nil
}

func (o *Orchestrator) evaluate(ctx context.Context, req Request, logger zerolog.Logger) (*Result, error) {
	res := &Result{City: req.City}

	// received: resolve the location and the profile before any fetch.
	lat, lon, located, err := o.locate(ctx, req, logger)
	if err != nil {
		return nil, err
	}
	profile, personalized, err := o.profile(ctx, req, logger)
	if err != nil {
		return nil, err
	}
	res.Personalized = personalized
	res.advance(StageReceived, StatusOK, nil)

	// raw_fetched
	// An unresolved location has no coordinates to query, so it goes
	// straight to the fallback reading.
	reading := airquality.Result{Reading: aqi.ConvertReading(nil)}
	if located {
		reading = o.readings.CurrentReading(ctx, lat, lon)
	}
	// Built-in sources always yield a value; custom sources may not.
	if reading.AQI < 0 {
		return nil, ErrDataUnavailable
	}
	res.Reading = reading
	res.advance(StageRawFetched, StatusOK, nil)
	degraded := reading.Degraded()

	value := reading.AQI
	if personalized {
		// personalized
		value = aqi.Personalize(value, profile)
		res.advance(StagePersonalized, StatusOK, nil)

		// weather_adjusted
		snap := weather.Fallback(weather.InCity(req.City))
		if located {
			snap = o.weather.Current(ctx, weather.AtCoordinates(lat, lon))
		}
		value = aqi.AdjustForWeather(value, snap.WindSpeed, snap.Humidity, snap.Temperature)
		res.Weather = &snap
		degraded = degraded || snap.Degraded
		res.advance(StageWeatherAdjusted, StatusOK, nil)
	} else {
		res.advance(StagePersonalized, StatusSkipped, nil)
		res.advance(StageWeatherAdjusted, StatusSkipped, nil)
	}

	// classified
	res.Evaluation = aqi.Evaluation{
		SubjectID:       req.SubjectID,
		Latitude:        lat,
		Longitude:       lon,
		RawAQI:          reading.AQI,
		PersonalizedAQI: value,
		Tier:            aqi.Classify(value),
		Pollutant:       reading.Pollutant,
		Degraded:        degraded,
		EvaluatedAt:     o.now().UTC(),
	}
	res.advance(StageClassified, StatusOK, nil)

	o.record(ctx, res, logger)
	o.notify(ctx, req, res, logger)

	res.advance(StageResponded, StatusOK, nil)
	return res, nil
}

// locate resolves the request coordinates. located is false when the
// geocoder could not be reached; the run then continues on fallback data.
func (o *Orchestrator) locate(ctx context.Context, req Request, logger zerolog.Logger) (lat, lon float64, located bool, err error) {
	if req.HasCoordinates {
		return req.Lat, req.Lon, true, nil
	}
	if req.City == "" {
		return 0, 0, false, ErrLocationRequired
	}
	lat, lon, err = o.weather.Locate(ctx, req.City)
	switch {
	case err == nil:
		return lat, lon, true, nil
	case errors.Is(err, weather.ErrCityNotFound):
		return 0, 0, false, fmt.Errorf("%w: %s", ErrLocationNotFound, req.City)
	default:
		logger.Warn().Err(err).Str("city", req.City).Msg("geocoding failed, using fallback reading and weather")
		return 0, 0, false, nil
	}
}

func (o *Orchestrator) profile(ctx context.Context, req Request, logger zerolog.Logger) (aqi.HealthProfile, bool, error) {
	if req.SubjectID == "" {
		if req.Policy == ProfileRequired {
			return aqi.HealthProfile{}, false, ErrProfileNotFound
		}
		return aqi.HealthProfile{}, false, nil
	}

	p, err := o.profiles.HealthProfile(ctx, req.SubjectID)
	switch {
	case err == nil:
		return p, true, nil
	case o.isProfileMissing(err):
		if req.Policy == ProfileRequired {
			return aqi.HealthProfile{}, false, ErrProfileNotFound
		}
		logger.Debug().Msg("no health profile, returning unpersonalized value")
		return aqi.HealthProfile{}, false, nil
	default:
		if req.Policy == ProfileRequired {
			return aqi.HealthProfile{}, false, fmt.Errorf("load health profile: %w", err)
		}
		logger.Warn().Err(err).Msg("health profile lookup failed, returning unpersonalized value")
		return aqi.HealthProfile{}, false, nil
	}
}

func (o *Orchestrator) record(ctx context.Context, res *Result, logger zerolog.Logger) {
	if o.recorder == nil {
		res.advance(StageRecorded, StatusSkipped, nil)
		return
	}

	id, err := o.recorder.Record(ctx, res.Evaluation)
	if err != nil {
		logger.Error().Err(err).Msg("failed to record evaluation")
		o.metrics.recordStageFailure(ctx, StageRecorded)
		res.advance(StageRecorded, StatusFailed, err)
		return
	}
	res.Evaluation.ID = id
	res.advance(StageRecorded, StatusOK, nil)
}

func (o *Orchestrator) notify(ctx context.Context, req Request, res *Result, logger zerolog.Logger) {
	e := res.Evaluation
	if o.notifier == nil || !e.HasSubject() || e.PersonalizedAQI <= NotifyThreshold {
		res.advance(StageNotified, StatusSkipped, nil)
		return
	}

	place := req.City
	if place == "" {
		place = fmt.Sprintf("%.4f, %.4f", e.Latitude, e.Longitude)
	}

	err := o.notifier.Dispatch(ctx, e.SubjectID, e.Tier, alertMessage(place, e.Tier, e.PersonalizedAQI))
	switch {
	case err == nil:
		o.metrics.recordNotification(ctx, "sent")
		res.advance(StageNotified, StatusOK, nil)
	case errors.Is(err, notification.ErrNoDestinations):
		o.metrics.recordNotification(ctx, "no_destination")
		res.advance(StageNotified, StatusSkipped, err)
	default:
		logger.Error().Err(err).Str("tier", string(e.Tier)).Msg("alert delivery failed")
		o.metrics.recordNotification(ctx, "failed")
		o.metrics.recordStageFailure(ctx, StageNotified)
		res.advance(StageNotified, StatusFailed, err)
	}
}
