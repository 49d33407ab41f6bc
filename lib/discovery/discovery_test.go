package discovery

import (
	"bytes"
	"context"
	"testing"

	"github.com/onkernel/nasattach/lib/compute"
	"github.com/onkernel/nasattach/lib/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStorage struct {
	storage.Client
	fs            *storage.FileSystemHandle
	export        *storage.ExportDescriptor
	getCallCount  int
	resolveCalled bool
}

func (m *mockStorage) GetFileSystem(ctx context.Context, name string) (*storage.FileSystemHandle, error) {
	m.getCallCount++
	if m.fs == nil {
		return nil, storage.NewError(storage.KindNotFound, "GetFileSystem", "no such file system")
	}
	fs := *m.fs
	return &fs, nil
}

func (m *mockStorage) GetManagedDirectory(ctx context.Context, fsName string) (string, error) {
	return fsName + ":root", nil
}

func (m *mockStorage) ResolveExport(ctx context.Context, directory string) (*storage.ExportDescriptor, error) {
	m.resolveCalled = true
	if m.export == nil {
		return nil, storage.NewError(storage.KindNotBound, "ResolveExport", "no export")
	}
	return m.export, nil
}

type mockCompute struct {
	compute.Client
	hosts []compute.HostHandle
}

func (m *mockCompute) ResolveCluster(ctx context.Context, name string) (*compute.ClusterTarget, error) {
	if name == "missing" {
		return nil, compute.ErrClusterNotFound
	}
	return &compute.ClusterTarget{Name: name, Hosts: m.hosts}, nil
}

func TestDiscoverCluster(t *testing.T) {
	c := &mockCompute{hosts: []compute.HostHandle{
		{Name: "esx1", Version: "8.0.2", Build: "22380479"},
		{Name: "esx2", Version: "7.0.3", Build: "21930508"},
		{Name: "esx3", Version: "garbage"},
	}}
	d := New(nil, c, "")

	report, err := d.Discover(context.Background(), Request{Cluster: "prod"})
	require.NoError(t, err)
	require.Len(t, report.Hosts, 3)
	assert.True(t, report.Hosts[0].MultiSession)
	assert.False(t, report.Hosts[1].MultiSession)
	assert.False(t, report.Hosts[2].MultiSession)
	assert.Equal(t, 1, report.MultiSessionHosts())

	_, err = d.Discover(context.Background(), Request{Cluster: "missing"})
	assert.ErrorIs(t, err, compute.ErrClusterNotFound)
}

func TestDiscoverFileSystem(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		s := &mockStorage{}
		report, err := New(s, nil, "").Discover(context.Background(), Request{Name: "share"})
		require.NoError(t, err)
		assert.Nil(t, report.FileSystem)
		assert.Contains(t, report.Note, "does not exist")
		assert.False(t, s.resolveCalled)
	})

	t.Run("without export", func(t *testing.T) {
		s := &mockStorage{fs: &storage.FileSystemHandle{Name: "share"}}
		report, err := New(s, nil, "").Discover(context.Background(), Request{Name: "share"})
		require.NoError(t, err)
		require.NotNil(t, report.FileSystem)
		assert.Equal(t, "share:root", report.FileSystem.Directory)
		assert.Nil(t, report.Export)
		assert.Contains(t, report.Note, "no export")
	})

	t.Run("exported", func(t *testing.T) {
		s := &mockStorage{
			fs:     &storage.FileSystemHandle{Name: "share", Directory: "share:root"},
			export: &storage.ExportDescriptor{Name: "share", Path: "/share", Protocol: storage.ProtocolV3},
		}
		report, err := New(s, nil, "").Discover(context.Background(), Request{Name: "share"})
		require.NoError(t, err)
		require.NotNil(t, report.Export)
		assert.Equal(t, "/share", report.Export.Path)
		assert.Empty(t, report.Note)
	})
}

func TestDiscoverNeedsClients(t *testing.T) {
	_, err := New(nil, nil, "").Discover(context.Background(), Request{Cluster: "prod"})
	assert.Error(t, err)
	_, err = New(nil, nil, "").Discover(context.Background(), Request{Name: "share"})
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	report := &Report{
		Cluster: "prod",
		Hosts:   []Host{{Name: "esx1", Version: "8.0.2", MultiSession: true}},
		Name:    "share",
		Note:    "file system share does not exist",
	}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, report, "text"))
	assert.Contains(t, buf.String(), "1 hosts, 1 multi-session capable")
	assert.Contains(t, buf.String(), "does not exist")

	buf.Reset()
	require.NoError(t, Render(&buf, report, "yaml"))
	assert.Contains(t, buf.String(), "multi_session: true")

	assert.Error(t, Render(&buf, report, "xml"))
}
