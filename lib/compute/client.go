// Package compute defines the capability set the attachment workflow needs
// from a virtualization control plane.
package compute

import "context"

// Client is implemented by control-plane adapters.
type Client interface {
	// ResolveCluster fails with ErrClusterNotFound for unknown clusters.
	ResolveCluster(ctx context.Context, name string) (*ClusterTarget, error)

	// RunDiagnostic runs an advisory probe against a host.
	RunDiagnostic(ctx context.Context, host HostHandle, kind DiagnosticKind, params map[string]string) (*DiagnosticResult, error)

	// MountExport creates an NFS-backed datastore on the host. It fails with
	// ErrMountRejected, ErrVersionUnsupported or ErrAlreadyMounted.
	MountExport(ctx context.Context, host HostHandle, req MountRequest) (*MountOutcome, error)

	// VerifyDatastore fails with ErrDatastoreNotFound when the host cannot see the datastore.
	VerifyDatastore(ctx context.Context, host HostHandle, name string) (*DatastoreInfo, error)

	// UnmountExport removes the datastore from the host.
	UnmountExport(ctx context.Context, host HostHandle, name string) error
}
