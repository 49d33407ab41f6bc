package storage

import (
	"context"
	"time"
)

// Client is the capability set the workflows need from a storage controller.
// Every method fails with *StorageError.
type Client interface {
	CreateFileSystem(ctx context.Context, name string) (*FileSystemHandle, error)
	GetFileSystem(ctx context.Context, name string) (*FileSystemHandle, error)
	GetManagedDirectory(ctx context.Context, fsName string) (string, error)
	RemoveFileSystem(ctx context.Context, name string, eradicate bool) error

	// Export setup is three independent, non-idempotent calls.
	CreateExportPolicy(ctx context.Context, name string) error
	AddExportRule(ctx context.Context, policyName string, rule ExportRule) error
	BindExportPolicy(ctx context.Context, directory, policyName, exportName string) error

	CreateQuotaPolicy(ctx context.Context, name string) error
	AddQuotaRule(ctx context.Context, policyName string, limitBytes int64) error
	BindQuotaPolicy(ctx context.Context, directory, policyName string) error

	CreateSnapshotPolicy(ctx context.Context, name string) error
	AddSnapshotRule(ctx context.Context, policyName, clientLabel string, interval, retention time.Duration) error
	BindSnapshotPolicy(ctx context.Context, directory, policyName string) error

	CreateAutodirPolicy(ctx context.Context, name string) error
	BindAutodirPolicy(ctx context.Context, directory, policyName string) error

	// ResolveExport must follow BindExportPolicy; it fails NotBound otherwise.
	ResolveExport(ctx context.Context, directory string) (*ExportDescriptor, error)
}
