package pipeline

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/breatheroute/aqiguard/internal/pipeline"

// Metrics holds the pipeline instruments. A nil *Metrics records nothing.
type Metrics struct {
	evaluations   metric.Int64Counter
	degraded      metric.Int64Counter
	stageFailures metric.Int64Counter
	notifications metric.Int64Counter
	personalized  metric.Int64Histogram
}

// NewMetrics creates the pipeline instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	evaluations, err := meter.Int64Counter(
		"aqi.evaluations",
		metric.WithDescription("Completed evaluations by tier"),
		metric.WithUnit("{evaluation}"),
	)
	if err != nil {
		return nil, err
	}

	degraded, err := meter.Int64Counter(
		"aqi.evaluations.degraded",
		metric.WithDescription("Evaluations that used a fallback reading or fallback weather"),
		metric.WithUnit("{evaluation}"),
	)
	if err != nil {
		return nil, err
	}

	stageFailures, err := meter.Int64Counter(
		"aqi.pipeline.stage_failures",
		metric.WithDescription("Optional stage failures by stage"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	notifications, err := meter.Int64Counter(
		"aqi.notifications",
		metric.WithDescription("Alert dispatches by result"),
		metric.WithUnit("{dispatch}"),
	)
	if err != nil {
		return nil, err
	}

	personalized, err := meter.Int64Histogram(
		"aqi.personalized",
		metric.WithDescription("Distribution of personalized AQI values"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		evaluations:   evaluations,
		degraded:      degraded,
		stageFailures: stageFailures,
		notifications: notifications,
		personalized:  personalized,
	}, nil
}

func (m *Metrics) recordEvaluation(ctx context.Context, res *Result) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("tier", string(res.Evaluation.Tier)),
		attribute.Bool("personalized", res.Personalized),
	)
	m.evaluations.Add(ctx, 1, attrs)
	m.personalized.Record(ctx, int64(res.Evaluation.PersonalizedAQI), attrs)
	if res.Evaluation.Degraded {
		m.degraded.Add(ctx, 1)
	}
}

func (m *Metrics) recordStageFailure(ctx context.Context, stage Stage) {
	if m == nil {
		return
	}
	m.stageFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", string(stage))))
}

func (m *Metrics) recordNotification(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.notifications.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
