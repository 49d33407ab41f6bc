package attachment

import (
	"context"
	"time"

	"github.com/onkernel/nasattach/lib/compute"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Metrics holds the metrics instruments for mount fan-out.
type Metrics struct {
	mountsTotal   metric.Int64Counter
	mountDuration metric.Float64Histogram
	tracer        trace.Tracer
}

func newMetrics(meter metric.Meter, tracer trace.Tracer) (*Metrics, error) {
	mountsTotal, err := meter.Int64Counter(
		"nasattach_mounts_total",
		metric.WithDescription("Total number of host mount attempts by status"),
	)
	if err != nil {
		return nil, err
	}

	mountDuration, err := meter.Float64Histogram(
		"nasattach_mount_duration_seconds",
		metric.WithDescription("Time to mount and verify a datastore on one host"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		mountsTotal:   mountsTotal,
		mountDuration: mountDuration,
		tracer:        tracer,
	}, nil
}

func (w *workflow) recordMount(ctx context.Context, start time.Time, status compute.MountStatus) {
	if w.metrics == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", string(status)))
	w.metrics.mountsTotal.Add(ctx, 1, attrs)
	w.metrics.mountDuration.Record(ctx, time.Since(start).Seconds(), attrs)
}
