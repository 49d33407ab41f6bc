package providers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/juju/clock"
	"github.com/onkernel/nasattach/cmd/nasattach/config"
	"github.com/onkernel/nasattach/lib/attachment"
	"github.com/onkernel/nasattach/lib/compute"
	"github.com/onkernel/nasattach/lib/discovery"
	"github.com/onkernel/nasattach/lib/flasharray"
	"github.com/onkernel/nasattach/lib/logger"
	"github.com/onkernel/nasattach/lib/otel"
	"github.com/onkernel/nasattach/lib/paths"
	"github.com/onkernel/nasattach/lib/provisioning"
	"github.com/onkernel/nasattach/lib/run"
	"github.com/onkernel/nasattach/lib/storage"
	"github.com/onkernel/nasattach/lib/teardown"
	"github.com/onkernel/nasattach/lib/vsphere"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ProvidePaths provides the run artifact layout
func ProvidePaths(cfg *config.Config) *paths.Paths {
	return paths.New(cfg.DataDir)
}

// ProvideLogger provides a structured logger. Records carrying a host
// attribute are mirrored into that host's log for the run.
func ProvideLogger(cfg *config.Config, p *paths.Paths, tel *otel.Provider) (*slog.Logger, func(), error) {
	var extra []slog.Handler
	if tel != nil && tel.LogHandler != nil {
		extra = append(extra, tel.LogHandler)
	}
	handler, closer, err := logger.New(cfg.LoggerConfig(), os.Stderr, extra...)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	cleanup := func() { closeQuietly(closer) }
	return slog.New(logger.NewHostLogHandler(handler, p.RunHostLog)), cleanup, nil
}

// ProvideContext provides a context with logger attached
func ProvideContext(log *slog.Logger) context.Context {
	return logger.AddToContext(context.Background(), log)
}

// ProvideStorageClient provides the array REST client
func ProvideStorageClient(cfg *config.Config, tel *otel.Provider) (storage.Client, error) {
	if meter, _ := telemetry(tel, "flasharray"); meter != nil {
		m, err := flasharray.NewMetrics(meter)
		if err != nil {
			return nil, fmt.Errorf("create array metrics: %w", err)
		}
		flasharray.SetMetrics(m)
	}
	arrayCfg, creds := cfg.ArrayConfig()
	return flasharray.New(arrayCfg, creds)
}

// ProvideVSphereClient provides a logged-in vCenter session. The cleanup logs out.
func ProvideVSphereClient(ctx context.Context, cfg *config.Config) (*vsphere.Client, func(), error) {
	vcCfg, creds := cfg.VSphereConfig()
	client, err := vsphere.Dial(ctx, vcCfg, creds)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := client.Close(context.Background()); err != nil {
			logger.FromContext(ctx).Warn("vCenter logout failed", "error", err)
		}
	}
	return client, cleanup, nil
}

// ProvideComputeClient exposes the vCenter client through its capability interface
func ProvideComputeClient(client *vsphere.Client) compute.Client {
	return client
}

// ProvideProvisioningWorkflow provides the storage-side workflow
func ProvideProvisioningWorkflow(client storage.Client, tel *otel.Provider) (provisioning.Workflow, error) {
	meter, tracer := telemetry(tel, "provisioning")
	return provisioning.NewWorkflow(client, meter, tracer)
}

// ProvideAttachmentWorkflow provides the mount fan-out workflow
func ProvideAttachmentWorkflow(client compute.Client, cfg *config.Config, tel *otel.Provider) (attachment.Workflow, error) {
	meter, tracer := telemetry(tel, "attachment")
	return attachment.NewWorkflow(client, cfg.AttachmentConfig(), clock.WallClock, meter, tracer)
}

// ProvideCoordinator provides the run coordinator
func ProvideCoordinator(prov provisioning.Workflow, att attachment.Workflow, p *paths.Paths, tel *otel.Provider) (*run.Coordinator, error) {
	meter, tracer := telemetry(tel, "run")
	return run.NewCoordinator(prov, att, p, meter, tracer)
}

// ProvideTeardownWorkflow provides the teardown workflow
func ProvideTeardownWorkflow(storageClient storage.Client, computeClient compute.Client, cfg *config.Config) *teardown.Workflow {
	return teardown.NewWorkflow(storageClient, computeClient, cfg.MountConcurrency)
}

// ProvideDiscoverer provides the read-only discovery helper
func ProvideDiscoverer(storageClient storage.Client, computeClient compute.Client, cfg *config.Config) *discovery.Discoverer {
	return discovery.New(storageClient, computeClient, cfg.MultiSessionMinVersion)
}

// telemetry returns nil instruments when OTel failed to initialise.
func telemetry(tel *otel.Provider, subsystem string) (metric.Meter, trace.Tracer) {
	if tel == nil {
		return nil, nil
	}
	return tel.MeterFor(subsystem), tel.TracerFor(subsystem)
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
