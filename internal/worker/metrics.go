package worker

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/breatheroute/aqiguard/internal/worker"

// Metrics holds the worker instruments. A nil *Metrics records nothing.
type Metrics struct {
	jobs     metric.Int64Counter
	duration metric.Float64Histogram
	subjects metric.Int64Counter
}

// NewMetrics creates the worker instruments on the global meter.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	jobs, err := meter.Int64Counter(
		"worker.job.total",
		metric.WithDescription("Jobs handled, by type and result"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"worker.job.duration",
		metric.WithDescription("Duration of worker jobs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	subjects, err := meter.Int64Counter(
		"worker.subject.evaluations",
		metric.WithDescription("Subject evaluations run by the worker, by outcome"),
		metric.WithUnit("{evaluation}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{jobs: jobs, duration: duration, subjects: subjects}, nil
}

func (m *Metrics) recordJob(ctx context.Context, jobType string, seconds float64, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	ctx = context.WithoutCancel(ctx)
	m.jobs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job_type", jobType),
		attribute.String("result", result),
	))
	m.duration.Record(ctx, seconds, metric.WithAttributes(attribute.String("job_type", jobType)))
}

func (m *Metrics) recordSubject(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.subjects.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
