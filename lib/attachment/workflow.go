// Package attachment mounts an export as a datastore on every host of a
// cluster and reports per-host outcomes.
package attachment

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/onkernel/nasattach/lib/compute"
	"github.com/onkernel/nasattach/lib/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Workflow attaches an export to a cluster.
type Workflow interface {
	// Attach fails only when the cluster cannot be resolved or is empty.
	// Per-host failures are recorded in the report.
	Attach(ctx context.Context, req Request) (*MountReport, error)
}

type workflow struct {
	compute    compute.Client
	config     Config
	clock      clock.Clock
	metrics    *Metrics
	strategies []mountStrategy
}

// NewWorkflow creates an attachment workflow. clk defaults to the wall
// clock; meter and tracer may be nil.
func NewWorkflow(client compute.Client, cfg Config, clk clock.Clock, meter metric.Meter, tracer trace.Tracer) (Workflow, error) {
	if clk == nil {
		clk = clock.WallClock
	}
	if cfg.ConcurrencyCap <= 0 {
		cfg.ConcurrencyCap = DefaultConcurrencyCap
	}
	if cfg.MultiSessionMinVersion == "" {
		cfg.MultiSessionMinVersion = compute.DefaultMultiSessionMinVersion
	}

	w := &workflow{
		compute: client,
		config:  cfg,
		clock:   clk,
	}
	w.strategies = w.defaultStrategies()

	if meter != nil {
		metrics, err := newMetrics(meter, tracer)
		if err != nil {
			return nil, fmt.Errorf("create metrics: %w", err)
		}
		w.metrics = metrics
	}
	return w, nil
}

func (w *workflow) Attach(ctx context.Context, req Request) (*MountReport, error) {
	log := logger.FromContext(ctx)

	if req.DatastoreName == "" || req.Export.Path == "" {
		return nil, fmt.Errorf("%w: datastore name and export path are required", ErrInvalidRequest)
	}

	if w.metrics != nil && w.metrics.tracer != nil {
		var span trace.Span
		ctx, span = w.metrics.tracer.Start(ctx, "Attach",
			trace.WithAttributes(attribute.String("cluster", req.Cluster)))
		defer span.End()
	}

	target, err := w.compute.ResolveCluster(ctx, req.Cluster)
	if err != nil {
		log.ErrorContext(ctx, "failed to resolve cluster", "cluster", req.Cluster, "error", err)
		return nil, fmt.Errorf("resolve cluster %s: %w", req.Cluster, err)
	}
	if len(target.Hosts) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoHosts, req.Cluster)
	}
	log.InfoContext(ctx, "attaching export", "cluster", req.Cluster, "hosts", len(target.Hosts),
		"datastore", req.DatastoreName, "export", req.Export.Path, "protocol", req.Export.Protocol)

	report := &MountReport{Cluster: req.Cluster, Datastore: req.DatastoreName}
	if req.Export.Protocol.MultiSession() && w.config.DiagnosticsEnabled {
		report.Diagnostics = w.diagnose(ctx, target.Hosts[0], req)
	}

	mreq := compute.MountRequest{
		DatastoreName:    req.DatastoreName,
		ExportPath:       req.Export.Path,
		ServerAddress:    w.config.ServerAddress,
		Protocol:         req.Export.Protocol,
		ParallelSessions: req.ParallelSessions,
	}

	// One slot per host; workers never share a slot.
	outcomes := make([]HostOutcome, len(target.Hosts))
	var g errgroup.Group
	g.SetLimit(w.concurrency(len(target.Hosts)))
	for i, host := range target.Hosts {
		g.Go(func() error {
			outcomes[i] = w.mountHost(ctx, host, mreq)
			return nil
		})
	}
	_ = g.Wait()

	report.Outcomes = outcomes
	for _, o := range outcomes {
		if o.Status == compute.StatusMounted {
			report.Mounted++
		} else {
			report.Failed++
		}
	}
	report.Status = statusFor(report.Mounted, report.Failed)

	log.InfoContext(ctx, "attachment complete", "cluster", req.Cluster, "status", report.Status,
		"mounted", report.Mounted, "failed", report.Failed)
	return report, nil
}

// concurrency is the worker limit for n hosts.
func (w *workflow) concurrency(n int) int {
	limit := w.config.Concurrency
	if limit <= 0 || limit > n {
		limit = n
	}
	if limit > w.config.ConcurrencyCap {
		limit = w.config.ConcurrencyCap
	}
	return max(limit, 1)
}

func (w *workflow) mountHost(ctx context.Context, host compute.HostHandle, req compute.MountRequest) HostOutcome {
	start := time.Now()
	log := logger.FromContext(ctx).With("host", host.Name)
	ctx = logger.AddToContext(ctx, log)

	var span trace.Span
	if w.metrics != nil && w.metrics.tracer != nil {
		ctx, span = w.metrics.tracer.Start(ctx, "MountHost",
			trace.WithAttributes(attribute.String("host", host.Name)))
		defer span.End()
	}

	out := HostOutcome{Host: host.Name, Version: host.Version}
	fail := func(err error) HostOutcome {
		log.WarnContext(ctx, "mount failed", "error", err)
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		out.Status = compute.StatusFailed
		out.Err = err
		out.Error = err.Error()
		w.recordMount(ctx, start, out.Status)
		return out
	}

	log.InfoContext(ctx, "mounting datastore", "datastore", req.DatastoreName, "version", host.Version)
	outcome, strategy, err := w.runStrategies(ctx, host, req)
	if err != nil {
		return fail(err)
	}
	out.Strategy = strategy.name

	if strategy.settle {
		if w.shouldSettle(req) {
			log.DebugContext(ctx, "waiting for datastore to settle", "delay", w.config.SettleDelay)
			select {
			case <-w.clock.After(w.config.SettleDelay):
			case <-ctx.Done():
				return fail(fmt.Errorf("settle: %w", ctx.Err()))
			}
		}
		info, err := w.compute.VerifyDatastore(ctx, host, req.DatastoreName)
		if err != nil {
			return fail(fmt.Errorf("verify after mount: %w", err))
		}
		outcome.CapacityBytes = info.CapacityBytes
		outcome.FreeBytes = info.FreeBytes
	}

	out.Status = compute.StatusMounted
	out.Detail = outcome.Detail
	out.CapacityBytes = outcome.CapacityBytes
	out.FreeBytes = outcome.FreeBytes
	log.InfoContext(ctx, "datastore mounted", "strategy", strategy.name, "capacity_bytes", out.CapacityBytes)
	w.recordMount(ctx, start, out.Status)
	return out
}

// shouldSettle reports whether a mount waits SettleDelay before verification.
func (w *workflow) shouldSettle(req compute.MountRequest) bool {
	if w.config.SettleDelay <= 0 {
		return false
	}
	return req.Protocol.MultiSession() || w.config.VerifyDefaultProtocol
}
