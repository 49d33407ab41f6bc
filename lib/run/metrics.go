package run

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Metrics holds the metrics instruments for runs.
type Metrics struct {
	runDuration metric.Float64Histogram
	tracer      trace.Tracer
}

func newMetrics(meter metric.Meter, tracer trace.Tracer) (*Metrics, error) {
	runDuration, err := meter.Float64Histogram(
		"nasattach_run_duration_seconds",
		metric.WithDescription("Time to provision and attach a file system"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	return &Metrics{runDuration: runDuration, tracer: tracer}, nil
}

func (c *Coordinator) recordRun(ctx context.Context, res *Result) {
	if c.metrics == nil {
		return
	}
	c.metrics.runDuration.Record(ctx, res.Duration().Seconds(),
		metric.WithAttributes(attribute.String("status", string(res.Status))))
}
