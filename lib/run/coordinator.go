// Package run sequences provisioning and attachment into a single run and
// produces its result.
package run

import (
	"context"
	"fmt"
	"time"

	"github.com/nrednav/cuid2"
	"github.com/onkernel/nasattach/lib/attachment"
	"github.com/onkernel/nasattach/lib/logger"
	"github.com/onkernel/nasattach/lib/paths"
	"github.com/onkernel/nasattach/lib/provisioning"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Coordinator runs provisioning, then attachment.
type Coordinator struct {
	provisioning provisioning.Workflow
	attachment   attachment.Workflow
	paths        *paths.Paths
	metrics      *Metrics
	now          func() time.Time
}

// NewCoordinator creates a coordinator. p may be nil to skip writing
// result files; meter and tracer may be nil.
func NewCoordinator(prov provisioning.Workflow, att attachment.Workflow, p *paths.Paths, meter metric.Meter, tracer trace.Tracer) (*Coordinator, error) {
	c := &Coordinator{
		provisioning: prov,
		attachment:   att,
		paths:        p,
		now:          time.Now,
	}
	if meter != nil {
		metrics, err := newMetrics(meter, tracer)
		if err != nil {
			return nil, fmt.Errorf("create metrics: %w", err)
		}
		c.metrics = metrics
	}
	return c, nil
}

// Run executes one run. Workflow failures are reported through the result
// status; the error return is reserved for requests rejected before any
// remote call.
func (c *Coordinator) Run(ctx context.Context, req Request) (*Result, error) {
	if req.RunID == "" {
		req.RunID = cuid2.Generate()
	}
	req.Provision = req.Provision.WithDefaults()
	if err := req.Provision.Validate(); err != nil {
		return nil, err
	}
	if req.DatastoreName == "" {
		req.DatastoreName = req.Provision.Name
	}

	log := logger.FromContext(ctx).With(logger.RunIDKey, req.RunID)
	ctx = logger.AddToContext(ctx, log)

	if c.metrics != nil && c.metrics.tracer != nil {
		var span trace.Span
		ctx, span = c.metrics.tracer.Start(ctx, "Run",
			trace.WithAttributes(
				attribute.String("run_id", req.RunID),
				attribute.String("name", req.Provision.Name),
				attribute.String("cluster", req.Cluster),
			))
		defer span.End()
	}

	res := &Result{RunID: req.RunID, Request: req, StartedAt: c.now()}
	defer func() {
		res.FinishedAt = c.now()
		c.recordRun(ctx, res)
		c.persist(ctx, res)
	}()

	log.InfoContext(ctx, "run started", "name", req.Provision.Name, "cluster", req.Cluster)

	prov, err := c.provisioning.Provision(ctx, req.Provision)
	res.Provisioning = prov
	if err != nil {
		log.ErrorContext(ctx, "provisioning failed, not attaching", "error", err)
		res.Status = StatusFailed
		res.Error = err.Error()
		return res, nil
	}
	res.Export = prov.Export
	for _, w := range prov.Warnings() {
		log.WarnContext(ctx, "provisioned without policy", "step", w.Step, "error", w.Error)
	}

	report, err := c.attachment.Attach(ctx, attachment.Request{
		Cluster:          req.Cluster,
		DatastoreName:    req.DatastoreName,
		Export:           *prov.Export,
		ParallelSessions: req.ParallelSessions,
	})
	if err != nil {
		log.ErrorContext(ctx, "attachment failed", "error", err)
		res.Status = StatusFailed
		res.Error = err.Error()
		return res, nil
	}
	res.Mounts = report
	res.Status = statusFromAttachment(report.Status)

	log.InfoContext(ctx, "run finished", "status", res.Status, "mounted", report.Mounted,
		"failed", report.Failed, "degraded", prov.Degraded())
	return res, nil
}

// persist writes result.yaml; a failure only costs the artifact.
func (c *Coordinator) persist(ctx context.Context, res *Result) {
	if c.paths == nil {
		return
	}
	if err := Save(c.paths, res); err != nil {
		logger.FromContext(ctx).WarnContext(ctx, "failed to save run result", "error", err)
	}
}
