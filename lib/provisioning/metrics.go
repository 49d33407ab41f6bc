package provisioning

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Metrics holds the metrics instruments for provisioning.
type Metrics struct {
	stepsTotal metric.Int64Counter
	duration   metric.Float64Histogram
	tracer     trace.Tracer
}

func newMetrics(meter metric.Meter, tracer trace.Tracer) (*Metrics, error) {
	stepsTotal, err := meter.Int64Counter(
		"nasattach_provision_steps_total",
		metric.WithDescription("Total number of provisioning steps by outcome"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"nasattach_provision_duration_seconds",
		metric.WithDescription("Time to provision a file system"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		stepsTotal: stepsTotal,
		duration:   duration,
		tracer:     tracer,
	}, nil
}

func (w *workflow) recordStep(ctx context.Context, step Step, outcome Outcome) {
	if w.metrics == nil {
		return
	}
	w.metrics.stepsTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("step", string(step)),
			attribute.String("outcome", string(outcome)),
		))
}

func (w *workflow) recordDuration(ctx context.Context, start time.Time, status string) {
	if w.metrics == nil {
		return
	}
	w.metrics.duration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("status", status)))
}
