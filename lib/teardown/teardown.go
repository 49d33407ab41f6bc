// Package teardown reverses a run: it unmounts the datastore from every
// host of the cluster and then destroys the file system.
package teardown

import (
	"context"
	"errors"
	"fmt"

	"github.com/onkernel/nasattach/lib/compute"
	"github.com/onkernel/nasattach/lib/logger"
	"github.com/onkernel/nasattach/lib/storage"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrStillMounted is returned when some hosts could not unmount; the file system is left in place
	ErrStillMounted = errors.New("datastore still mounted on some hosts")

	// ErrInvalidRequest is returned when the request has no file system name
	ErrInvalidRequest = errors.New("invalid teardown request")
)

// HostStatus is the per-host result of an unmount.
type HostStatus string

const (
	HostUnmounted HostStatus = "Unmounted"
	HostAbsent    HostStatus = "Absent"
	HostFailed    HostStatus = "Failed"
)

// Request names what to tear down.
type Request struct {
	Name          string `json:"name"`
	Cluster       string `json:"cluster,omitempty"`
	DatastoreName string `json:"datastore,omitempty"`
	Eradicate     bool   `json:"eradicate"`
}

// HostResult records one host's unmount.
type HostResult struct {
	Host   string     `json:"host"`
	Status HostStatus `json:"status"`
	Error  string     `json:"error,omitempty"`
}

// Result is what teardown did.
type Result struct {
	Request           Request      `json:"request"`
	Hosts             []HostResult `json:"hosts,omitempty"`
	FileSystemRemoved bool         `json:"file_system_removed"`
}

// Failed counts hosts that still have the datastore.
func (r *Result) Failed() int {
	return lo.CountBy(r.Hosts, func(h HostResult) bool { return h.Status == HostFailed })
}

// Workflow tears down provisioned resources.
type Workflow struct {
	storage     storage.Client
	compute     compute.Client
	concurrency int
}

// NewWorkflow creates a teardown workflow. concurrency bounds the unmount
// fan-out; zero means one worker per host.
func NewWorkflow(storageClient storage.Client, computeClient compute.Client, concurrency int) *Workflow {
	return &Workflow{storage: storageClient, compute: computeClient, concurrency: concurrency}
}

// Teardown unmounts from every host when a cluster is given, then removes
// the file system. The file system is kept if any host failed to unmount.
func (w *Workflow) Teardown(ctx context.Context, req Request) (*Result, error) {
	log := logger.FromContext(ctx)
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	if req.DatastoreName == "" {
		req.DatastoreName = req.Name
	}
	res := &Result{Request: req}

	if req.Cluster != "" {
		target, err := w.compute.ResolveCluster(ctx, req.Cluster)
		if err != nil {
			return res, fmt.Errorf("resolve cluster %s: %w", req.Cluster, err)
		}
		res.Hosts = w.unmountAll(ctx, target.Hosts, req.DatastoreName)
		if failed := res.Failed(); failed > 0 {
			log.ErrorContext(ctx, "keeping file system, datastore still mounted", "failed_hosts", failed)
			return res, fmt.Errorf("%w: %d of %d hosts", ErrStillMounted, failed, len(res.Hosts))
		}
	}

	err := w.storage.RemoveFileSystem(ctx, req.Name, req.Eradicate)
	switch {
	case err == nil:
		log.InfoContext(ctx, "file system removed", "name", req.Name, "eradicated", req.Eradicate)
	case errors.Is(err, storage.ErrNotFound):
		log.InfoContext(ctx, "file system already gone", "name", req.Name)
	default:
		return res, fmt.Errorf("remove file system: %w", err)
	}
	res.FileSystemRemoved = true
	return res, nil
}

func (w *Workflow) unmountAll(ctx context.Context, hosts []compute.HostHandle, datastore string) []HostResult {
	results := make([]HostResult, len(hosts))
	if len(hosts) == 0 {
		return results
	}

	limit := w.concurrency
	if limit <= 0 || limit > len(hosts) {
		limit = len(hosts)
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i, host := range hosts {
		g.Go(func() error {
			results[i] = w.unmountHost(ctx, host, datastore)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (w *Workflow) unmountHost(ctx context.Context, host compute.HostHandle, datastore string) HostResult {
	log := logger.FromContext(ctx).With(logger.HostKey, host.Name)
	err := w.compute.UnmountExport(ctx, host, datastore)
	switch {
	case err == nil:
		log.InfoContext(ctx, "datastore unmounted", "datastore", datastore)
		return HostResult{Host: host.Name, Status: HostUnmounted}
	case errors.Is(err, compute.ErrDatastoreNotFound):
		log.DebugContext(ctx, "datastore not mounted", "datastore", datastore)
		return HostResult{Host: host.Name, Status: HostAbsent}
	default:
		log.WarnContext(ctx, "unmount failed", "datastore", datastore, "error", err)
		return HostResult{Host: host.Name, Status: HostFailed, Error: err.Error()}
	}
}
