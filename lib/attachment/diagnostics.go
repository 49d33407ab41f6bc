package attachment

import (
	"context"

	"github.com/onkernel/nasattach/lib/compute"
	"github.com/onkernel/nasattach/lib/logger"
)

// diagnosticKinds run in this order against the representative host.
var diagnosticKinds = []compute.DiagnosticKind{
	compute.DiagnosticPlatformVersion,
	compute.DiagnosticFirewall,
	compute.DiagnosticReachability,
	compute.DiagnosticAdapters,
	compute.DiagnosticMounts,
}

// diagnose runs the advisory checks. Nothing here can fail the attachment.
func (w *workflow) diagnose(ctx context.Context, host compute.HostHandle, req Request) []compute.DiagnosticResult {
	log := logger.FromContext(ctx).With("host", host.Name)
	params := map[string]string{
		compute.ParamAddress:    w.config.ServerAddress,
		compute.ParamMinVersion: w.config.MultiSessionMinVersion,
		compute.ParamProtocol:   string(req.Export.Protocol),
	}

	results := make([]compute.DiagnosticResult, 0, len(diagnosticKinds))
	for _, kind := range diagnosticKinds {
		res, err := w.compute.RunDiagnostic(ctx, host, kind, params)
		if err != nil {
			log.WarnContext(ctx, "diagnostic could not run", "kind", kind, "error", err)
			results = append(results, compute.DiagnosticResult{Kind: kind, Host: host.Name, Summary: err.Error()})
			continue
		}
		if res.OK {
			log.InfoContext(ctx, "diagnostic passed", "kind", kind, "summary", res.Summary)
		} else {
			log.WarnContext(ctx, "diagnostic flagged", "kind", kind, "summary", res.Summary)
		}
		results = append(results, *res)
	}
	return results
}
