// Package provisioning creates a file system on the storage array, binds its
// policies and resolves the path clients mount.
package provisioning

import (
	"context"
	"fmt"
	"time"

	"github.com/onkernel/nasattach/lib/logger"
	"github.com/onkernel/nasattach/lib/storage"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Workflow provisions the storage side of a run.
type Workflow interface {
	Provision(ctx context.Context, req Request) (*Result, error)
}

// Result is what provisioning produced. Export is nil when a fatal step
// stopped the workflow.
type Result struct {
	Request    Request                   `json:"request"`
	FileSystem *storage.FileSystemHandle `json:"file_system,omitempty"`
	Export     *storage.ExportDescriptor `json:"export,omitempty"`
	Bindings   []storage.PolicyBinding   `json:"bindings"`
	Steps      []StepResult              `json:"steps"`
	Reached    Step                      `json:"reached"`
}

// Warnings returns the steps that failed without stopping the workflow.
func (r *Result) Warnings() []StepResult {
	return lo.Filter(r.Steps, func(s StepResult, _ int) bool {
		return s.Outcome == OutcomeWarning
	})
}

// Degraded reports whether any optional policy failed to bind.
func (r *Result) Degraded() bool {
	return len(r.Warnings()) > 0
}

// Bound reports whether a policy of the given kind was bound.
func (r *Result) Bound(kind storage.PolicyKind) bool {
	return lo.ContainsBy(r.Bindings, func(b storage.PolicyBinding) bool {
		return b.Kind == kind
	})
}

type stepFunc func(ctx context.Context, p Progress) (Progress, error)

type step struct {
	name    Step
	enabled func(Request) bool
	run     stepFunc
}

type workflow struct {
	storage storage.Client
	metrics *Metrics
	steps   []step
}

// NewWorkflow creates a provisioning workflow. meter and tracer may be nil.
func NewWorkflow(client storage.Client, meter metric.Meter, tracer trace.Tracer) (Workflow, error) {
	w := &workflow{storage: client}
	w.steps = []step{
		{name: StepFileSystemCreated, run: w.createFileSystem},
		{name: StepExportPolicyBound, run: w.bindExportPolicy},
		{name: StepQuotaPolicyBound, run: w.bindQuotaPolicy, enabled: func(r Request) bool { return r.QuotaEnabled }},
		{name: StepSnapshotPolicyBound, run: w.bindSnapshotPolicy, enabled: func(r Request) bool { return r.SnapshotEnabled }},
		{name: StepAutodirPolicyBound, run: w.bindAutodirPolicy},
		{name: StepExportResolved, run: w.resolveExport},
	}

	if meter != nil {
		metrics, err := newMetrics(meter, tracer)
		if err != nil {
			return nil, fmt.Errorf("create metrics: %w", err)
		}
		w.metrics = metrics
	}
	return w, nil
}

// Provision walks the steps in order. A failing step is looked up in the
// failure policy: warnings are recorded and the walk continues, a fatal
// outcome stops it and returns an error wrapping ErrAborted.
func (w *workflow) Provision(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	log := logger.FromContext(ctx)

	req = req.WithDefaults()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if w.metrics != nil && w.metrics.tracer != nil {
		var span trace.Span
		ctx, span = w.metrics.tracer.Start(ctx, "Provision")
		defer span.End()
	}

	log.InfoContext(ctx, "provisioning file system", "name", req.Name, "protocol", req.Protocol,
		"quota", req.QuotaEnabled, "snapshot", req.SnapshotEnabled)

	p := Progress{Request: req}
	reached := StepStart
	for _, s := range w.steps {
		if s.enabled != nil && !s.enabled(req) {
			log.DebugContext(ctx, "skipping step", "step", s.name)
			p = p.withResult(skipped(s.name))
			w.recordStep(ctx, s.name, OutcomeSkipped)
			continue
		}

		next, err := w.runStep(ctx, s, p)
		if err == nil {
			p = next.withResult(succeeded(s.name))
			reached = s.name
			w.recordStep(ctx, s.name, OutcomeSuccess)
			continue
		}

		res := failed(s.name, err)
		p = next.withResult(res)
		w.recordStep(ctx, s.name, res.Outcome)
		if res.Outcome == OutcomeFatal {
			log.ErrorContext(ctx, "provisioning step failed", "step", s.name, "error", err)
			w.recordDuration(ctx, start, "failed")
			return toResult(p, reached), fmt.Errorf("%w at %s: %w", ErrAborted, s.name, err)
		}
		log.WarnContext(ctx, "provisioning step degraded", "step", s.name, "error", err)
		reached = s.name
	}

	reached = StepDone
	status := "success"
	if lo.ContainsBy(p.Results, func(r StepResult) bool { return r.Outcome == OutcomeWarning }) {
		status = "degraded"
	}
	w.recordDuration(ctx, start, status)
	log.InfoContext(ctx, "provisioning complete", "name", req.Name, "export", p.Export.Path, "status", status)
	return toResult(p, reached), nil
}

func (w *workflow) runStep(ctx context.Context, s step, p Progress) (Progress, error) {
	if w.metrics != nil && w.metrics.tracer != nil {
		var span trace.Span
		ctx, span = w.metrics.tracer.Start(ctx, s.name.String())
		defer span.End()
		next, err := s.run(ctx, p)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return next, err
	}
	return s.run(ctx, p)
}

func toResult(p Progress, reached Step) *Result {
	return &Result{
		Request:    p.Request,
		FileSystem: p.FileSystem,
		Export:     p.Export,
		Bindings:   p.Bindings,
		Steps:      p.Results,
		Reached:    reached,
	}
}

func (w *workflow) createFileSystem(ctx context.Context, p Progress) (Progress, error) {
	fs, err := w.storage.CreateFileSystem(ctx, p.Request.Name)
	if err != nil {
		return p, fmt.Errorf("create file system: %w", err)
	}
	dir, err := w.storage.GetManagedDirectory(ctx, fs.Name)
	if err != nil {
		// The file system exists; keep it in the result so it can be torn down.
		return p.withFileSystem(*fs), fmt.Errorf("get managed directory: %w", err)
	}
	handle := *fs
	handle.Directory = dir
	logger.FromContext(ctx).DebugContext(ctx, "file system created", "name", handle.Name, "directory", dir)
	return p.withFileSystem(handle), nil
}

func (w *workflow) bindExportPolicy(ctx context.Context, p Progress) (Progress, error) {
	req := p.Request
	policy := req.policyName(storage.PolicyExport)
	if err := w.storage.CreateExportPolicy(ctx, policy); err != nil {
		return p, fmt.Errorf("create export policy: %w", err)
	}
	rule := storage.ExportRule{
		Client:     req.Export.Client,
		Access:     req.Export.Access,
		Permission: req.Export.Permission,
		Protocol:   req.Protocol,
	}
	if err := w.storage.AddExportRule(ctx, policy, rule); err != nil {
		return p, fmt.Errorf("add export rule: %w", err)
	}
	if err := w.storage.BindExportPolicy(ctx, p.directory(), policy, req.Name); err != nil {
		return p, fmt.Errorf("bind export policy: %w", err)
	}
	return p.withBinding(storage.PolicyBinding{Kind: storage.PolicyExport, Policy: policy, Directory: p.directory()}), nil
}

func (w *workflow) bindQuotaPolicy(ctx context.Context, p Progress) (Progress, error) {
	limit, err := p.Request.CapacityBytes()
	if err != nil {
		return p, err
	}
	policy := p.Request.policyName(storage.PolicyQuota)
	if err := w.storage.CreateQuotaPolicy(ctx, policy); err != nil {
		return p, fmt.Errorf("create quota policy: %w", err)
	}
	if err := w.storage.AddQuotaRule(ctx, policy, limit); err != nil {
		return p, fmt.Errorf("add quota rule: %w", err)
	}
	if err := w.storage.BindQuotaPolicy(ctx, p.directory(), policy); err != nil {
		return p, fmt.Errorf("bind quota policy: %w", err)
	}
	return p.withBinding(storage.PolicyBinding{Kind: storage.PolicyQuota, Policy: policy, Directory: p.directory()}), nil
}

func (w *workflow) bindSnapshotPolicy(ctx context.Context, p Progress) (Progress, error) {
	sched := p.Request.Snapshot
	policy := p.Request.policyName(storage.PolicySnapshot)
	if err := w.storage.CreateSnapshotPolicy(ctx, policy); err != nil {
		return p, fmt.Errorf("create snapshot policy: %w", err)
	}
	if err := w.storage.AddSnapshotRule(ctx, policy, sched.ClientLabel, sched.Interval, sched.Retention); err != nil {
		return p, fmt.Errorf("add snapshot rule: %w", err)
	}
	if err := w.storage.BindSnapshotPolicy(ctx, p.directory(), policy); err != nil {
		return p, fmt.Errorf("bind snapshot policy: %w", err)
	}
	return p.withBinding(storage.PolicyBinding{Kind: storage.PolicySnapshot, Policy: policy, Directory: p.directory()}), nil
}

func (w *workflow) bindAutodirPolicy(ctx context.Context, p Progress) (Progress, error) {
	policy := p.Request.policyName(storage.PolicyAutodir)
	if err := w.storage.CreateAutodirPolicy(ctx, policy); err != nil {
		return p, fmt.Errorf("create autodir policy: %w", err)
	}
	if err := w.storage.BindAutodirPolicy(ctx, p.directory(), policy); err != nil {
		return p, fmt.Errorf("bind autodir policy: %w", err)
	}
	return p.withBinding(storage.PolicyBinding{Kind: storage.PolicyAutodir, Policy: policy, Directory: p.directory()}), nil
}

func (w *workflow) resolveExport(ctx context.Context, p Progress) (Progress, error) {
	desc, err := w.storage.ResolveExport(ctx, p.directory())
	if err != nil {
		return p, fmt.Errorf("resolve export: %w", err)
	}
	return p.withExport(MountPath(*desc, p.Request.Protocol)), nil
}

// MountPath fills in the path clients mount: "/<export>" for v3, the
// array-supplied path for v4.1 when there is one.
func MountPath(desc storage.ExportDescriptor, protocol storage.ProtocolVersion) storage.ExportDescriptor {
	arrayPath := desc.Path
	desc.Protocol = protocol
	desc.Path = "/" + desc.Name
	if protocol == storage.ProtocolV41 && arrayPath != "" {
		desc.Path = arrayPath
	}
	return desc
}
