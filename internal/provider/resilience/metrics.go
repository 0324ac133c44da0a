package resilience

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/breatheroute/aqiguard/internal/provider/resilience"

// Metrics records upstream call outcomes for every resilient client.
type Metrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
	circuitRejected metric.Int64Counter
}

// NewMetrics creates the provider instruments on the global meter.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	requestDuration, err := meter.Float64Histogram(
		"provider.request.duration",
		metric.WithDescription("Duration of provider requests in seconds, retries included"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"provider.request.total",
		metric.WithDescription("Total number of provider requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	circuitRejected, err := meter.Int64Counter(
		"provider.circuit.rejected",
		metric.WithDescription("Requests rejected without an upstream call because the breaker was open"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		circuitRejected: circuitRejected,
	}, nil
}

// record is a no-op on a nil receiver.
func (m *Metrics) record(ctx context.Context, provider string, duration time.Duration, status int, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("provider.name", provider),
	}
	if status > 0 {
		attrs = append(attrs, attribute.Int("http.response.status_code", status))
	}
	if err != nil || status >= 500 {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	// Metrics outlive a cancelled request.
	ctx = context.WithoutCancel(ctx)
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	if errors.Is(err, ErrCircuitOpen) {
		m.circuitRejected.Add(ctx, 1, metric.WithAttributes(attrs[0]))
	}
}
