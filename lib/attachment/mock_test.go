package attachment

import (
	"context"
	"fmt"
	"sync"

	"github.com/onkernel/nasattach/lib/compute"
)

// mockCompute implements compute.Client for testing. Default behavior
// mounts successfully and verifies whatever was mounted.
type mockCompute struct {
	mu sync.Mutex

	hosts []compute.HostHandle

	resolveClusterFunc  func(ctx context.Context, name string) (*compute.ClusterTarget, error)
	mountExportFunc     func(ctx context.Context, host compute.HostHandle, req compute.MountRequest) (*compute.MountOutcome, error)
	verifyDatastoreFunc func(ctx context.Context, host compute.HostHandle, name string) (*compute.DatastoreInfo, error)
	runDiagnosticFunc   func(ctx context.Context, host compute.HostHandle, kind compute.DiagnosticKind, params map[string]string) (*compute.DiagnosticResult, error)

	resolveCallCount    int
	mountCallCount      int
	verifyCallCount     int
	diagnosticCallCount int
	unmountCallCount    int
	diagnosedHosts      []string
	mounted             map[string]compute.MountRequest
}

func newMockCompute(n int) *mockCompute {
	m := &mockCompute{mounted: make(map[string]compute.MountRequest)}
	for i := 1; i <= n; i++ {
		m.hosts = append(m.hosts, compute.HostHandle{
			Name:    fmt.Sprintf("esx%d.example.com", i),
			Ref:     fmt.Sprintf("host-%d", i),
			Version: "8.0.2",
			Build:   "22380479",
		})
	}
	return m
}

func (m *mockCompute) ResolveCluster(ctx context.Context, name string) (*compute.ClusterTarget, error) {
	m.mu.Lock()
	m.resolveCallCount++
	m.mu.Unlock()
	if m.resolveClusterFunc != nil {
		return m.resolveClusterFunc(ctx, name)
	}
	return &compute.ClusterTarget{Name: name, Hosts: m.hosts}, nil
}

func (m *mockCompute) RunDiagnostic(ctx context.Context, host compute.HostHandle, kind compute.DiagnosticKind, params map[string]string) (*compute.DiagnosticResult, error) {
	m.mu.Lock()
	m.diagnosticCallCount++
	m.diagnosedHosts = append(m.diagnosedHosts, host.Name)
	m.mu.Unlock()
	if m.runDiagnosticFunc != nil {
		return m.runDiagnosticFunc(ctx, host, kind, params)
	}
	return &compute.DiagnosticResult{Kind: kind, Host: host.Name, OK: true, Summary: "ok"}, nil
}

func (m *mockCompute) MountExport(ctx context.Context, host compute.HostHandle, req compute.MountRequest) (*compute.MountOutcome, error) {
	m.mu.Lock()
	m.mountCallCount++
	m.mu.Unlock()
	if m.mountExportFunc != nil {
		out, err := m.mountExportFunc(ctx, host, req)
		if err == nil {
			m.markMounted(host, req)
		}
		return out, err
	}
	m.markMounted(host, req)
	return &compute.MountOutcome{Host: host, Status: compute.StatusMounted, Detail: "created"}, nil
}

func (m *mockCompute) markMounted(host compute.HostHandle, req compute.MountRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mounted[host.Name] = req
}

func (m *mockCompute) VerifyDatastore(ctx context.Context, host compute.HostHandle, name string) (*compute.DatastoreInfo, error) {
	m.mu.Lock()
	m.verifyCallCount++
	req, ok := m.mounted[host.Name]
	m.mu.Unlock()
	if m.verifyDatastoreFunc != nil {
		return m.verifyDatastoreFunc(ctx, host, name)
	}
	if !ok || req.DatastoreName != name {
		return nil, fmt.Errorf("%w: %s on %s", compute.ErrDatastoreNotFound, name, host.Name)
	}
	return &compute.DatastoreInfo{
		Name:          name,
		Type:          "NFS",
		RemoteHost:    req.ServerAddress,
		RemotePath:    req.ExportPath,
		CapacityBytes: 10 << 30,
		FreeBytes:     9 << 30,
	}, nil
}

func (m *mockCompute) UnmountExport(ctx context.Context, host compute.HostHandle, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unmountCallCount++
	delete(m.mounted, host.Name)
	return nil
}

func (m *mockCompute) counts() (resolve, mount, verify, diagnostic int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolveCallCount, m.mountCallCount, m.verifyCallCount, m.diagnosticCallCount
}

var _ compute.Client = (*mockCompute)(nil)
