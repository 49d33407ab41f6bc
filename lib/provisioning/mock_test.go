package provisioning

import (
	"context"
	"sync"
	"time"

	"github.com/onkernel/nasattach/lib/storage"
)

// mockStorage records calls by method name and fails methods listed in fail.
type mockStorage struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error

	resolveExportFunc func(ctx context.Context, directory string) (*storage.ExportDescriptor, error)

	exportName     string
	quotaLimit     int64
	snapshotLabel  string
	exportRule     storage.ExportRule
	boundDirectory string
}

func newMockStorage() *mockStorage {
	return &mockStorage{calls: make(map[string]int), fail: make(map[string]error)}
}

func (m *mockStorage) record(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[method]++
	return m.fail[method]
}

func (m *mockStorage) count(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *mockStorage) CreateFileSystem(ctx context.Context, name string) (*storage.FileSystemHandle, error) {
	if err := m.record("CreateFileSystem"); err != nil {
		return nil, err
	}
	return &storage.FileSystemHandle{Name: name, ID: "fs-" + name, Created: time.Unix(1700000000, 0)}, nil
}

func (m *mockStorage) GetFileSystem(ctx context.Context, name string) (*storage.FileSystemHandle, error) {
	if err := m.record("GetFileSystem"); err != nil {
		return nil, err
	}
	return &storage.FileSystemHandle{Name: name}, nil
}

func (m *mockStorage) GetManagedDirectory(ctx context.Context, fsName string) (string, error) {
	if err := m.record("GetManagedDirectory"); err != nil {
		return "", err
	}
	return fsName + ":root", nil
}

func (m *mockStorage) RemoveFileSystem(ctx context.Context, name string, eradicate bool) error {
	return m.record("RemoveFileSystem")
}

func (m *mockStorage) CreateExportPolicy(ctx context.Context, name string) error {
	return m.record("CreateExportPolicy")
}

func (m *mockStorage) AddExportRule(ctx context.Context, policyName string, rule storage.ExportRule) error {
	m.exportRule = rule
	return m.record("AddExportRule")
}

func (m *mockStorage) BindExportPolicy(ctx context.Context, directory, policyName, exportName string) error {
	if err := m.record("BindExportPolicy"); err != nil {
		return err
	}
	m.exportName = exportName
	m.boundDirectory = directory
	return nil
}

func (m *mockStorage) CreateQuotaPolicy(ctx context.Context, name string) error {
	return m.record("CreateQuotaPolicy")
}

func (m *mockStorage) AddQuotaRule(ctx context.Context, policyName string, limitBytes int64) error {
	m.quotaLimit = limitBytes
	return m.record("AddQuotaRule")
}

func (m *mockStorage) BindQuotaPolicy(ctx context.Context, directory, policyName string) error {
	return m.record("BindQuotaPolicy")
}

func (m *mockStorage) CreateSnapshotPolicy(ctx context.Context, name string) error {
	return m.record("CreateSnapshotPolicy")
}

func (m *mockStorage) AddSnapshotRule(ctx context.Context, policyName, clientLabel string, interval, retention time.Duration) error {
	m.snapshotLabel = clientLabel
	return m.record("AddSnapshotRule")
}

func (m *mockStorage) BindSnapshotPolicy(ctx context.Context, directory, policyName string) error {
	return m.record("BindSnapshotPolicy")
}

func (m *mockStorage) CreateAutodirPolicy(ctx context.Context, name string) error {
	return m.record("CreateAutodirPolicy")
}

func (m *mockStorage) BindAutodirPolicy(ctx context.Context, directory, policyName string) error {
	return m.record("BindAutodirPolicy")
}

func (m *mockStorage) ResolveExport(ctx context.Context, directory string) (*storage.ExportDescriptor, error) {
	if err := m.record("ResolveExport"); err != nil {
		return nil, err
	}
	if m.resolveExportFunc != nil {
		return m.resolveExportFunc(ctx, directory)
	}
	if m.exportName == "" {
		return nil, storage.NewError(storage.KindNotBound, "ResolveExport", "no export on "+directory)
	}
	return &storage.ExportDescriptor{Name: m.exportName, Path: "/exports/" + m.exportName}, nil
}

var _ storage.Client = (*mockStorage)(nil)
