package integration

import (
	"context"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock"
	"github.com/onkernel/nasattach/lib/attachment"
	"github.com/onkernel/nasattach/lib/compute"
	"github.com/onkernel/nasattach/lib/flasharray"
	"github.com/onkernel/nasattach/lib/flasharray/fakearray"
	"github.com/onkernel/nasattach/lib/paths"
	"github.com/onkernel/nasattach/lib/provisioning"
	"github.com/onkernel/nasattach/lib/run"
	"github.com/onkernel/nasattach/lib/storage"
	"github.com/onkernel/nasattach/lib/teardown"
	"github.com/onkernel/nasattach/lib/vsphere"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmware/govmomi/simulator"
	"github.com/vmware/govmomi/vim25"
)

const (
	apiVersion = "2.16"
	apiToken   = "integration-token"
	cluster    = "DC0_C0"
	nfsServer  = "10.0.0.5"
)

// hostsCompute resolves clusters against vcsim and keeps NFS mounts in
// memory, counting every call.
type hostsCompute struct {
	*vsphere.Client

	mu               sync.Mutex
	mounts           map[string]compute.MountRequest
	failHosts        map[string]bool
	resolveCallCount int
	mountCallCount   int
}

func newHostsCompute(vc *vim25.Client) *hostsCompute {
	return &hostsCompute{
		Client:    vsphere.NewFromVimClient(vc, vsphere.Config{}),
		mounts:    make(map[string]compute.MountRequest),
		failHosts: make(map[string]bool),
	}
}

func (c *hostsCompute) ResolveCluster(ctx context.Context, name string) (*compute.ClusterTarget, error) {
	c.mu.Lock()
	c.resolveCallCount++
	c.mu.Unlock()
	return c.Client.ResolveCluster(ctx, name)
}

func (c *hostsCompute) MountExport(ctx context.Context, host compute.HostHandle, req compute.MountRequest) (*compute.MountOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mountCallCount++
	if c.failHosts[host.Name] {
		return nil, fmt.Errorf("%w: NFS mount %s:%s failed", compute.ErrMountRejected, req.ServerAddress, req.ExportPath)
	}
	c.mounts[host.Name] = req
	return &compute.MountOutcome{Host: host, Status: compute.StatusMounted}, nil
}

func (c *hostsCompute) VerifyDatastore(ctx context.Context, host compute.HostHandle, name string) (*compute.DatastoreInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	req, ok := c.mounts[host.Name]
	if !ok || req.DatastoreName != name {
		return nil, compute.ErrDatastoreNotFound
	}
	return &compute.DatastoreInfo{
		Name:          name,
		RemoteHost:    req.ServerAddress,
		RemotePath:    req.ExportPath,
		CapacityBytes: 10 << 40,
		FreeBytes:     10 << 40,
	}, nil
}

func (c *hostsCompute) UnmountExport(ctx context.Context, host compute.HostHandle, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.mounts[host.Name]; !ok {
		return compute.ErrDatastoreNotFound
	}
	delete(c.mounts, host.Name)
	return nil
}

type env struct {
	array       *fakearray.Array
	storage     *flasharray.Client
	compute     *hostsCompute
	paths       *paths.Paths
	coordinator *run.Coordinator
}

func setup(t *testing.T, vc *vim25.Client, endpoint string) *env {
	t.Helper()
	array := fakearray.New(apiVersion, apiToken)
	if endpoint == "" {
		srv := httptest.NewServer(array.Handler())
		t.Cleanup(srv.Close)
		endpoint = srv.URL
	}

	sc, err := flasharray.New(flasharray.Config{Endpoint: endpoint, APIVersion: apiVersion, Timeout: 5 * time.Second},
		flasharray.Credentials{APIToken: apiToken})
	require.NoError(t, err)
	cc := newHostsCompute(vc)

	prov, err := provisioning.NewWorkflow(sc, nil, nil)
	require.NoError(t, err)
	att, err := attachment.NewWorkflow(cc, attachment.Config{ServerAddress: nfsServer}, clock.WallClock, nil, nil)
	require.NoError(t, err)

	p := paths.New(t.TempDir())
	coord, err := run.NewCoordinator(prov, att, p, nil, nil)
	require.NoError(t, err)

	return &env{array: array, storage: sc, compute: cc, paths: p, coordinator: coord}
}

func provisionRequest(name string) run.Request {
	return run.Request{
		Provision: provisioning.Request{
			Name:            name,
			Capacity:        "1TB",
			Protocol:        storage.ProtocolV3,
			QuotaEnabled:    true,
			SnapshotEnabled: true,
		},
		Cluster: cluster,
	}
}

func TestProvisionAndAttach(t *testing.T) {
	simulator.Test(func(ctx context.Context, vc *vim25.Client) {
		e := setup(t, vc, "")

		res, err := e.coordinator.Run(ctx, provisionRequest("vmware-ds01"))
		require.NoError(t, err)
		assert.Equal(t, run.StatusSuccess, res.Status)
		assert.Equal(t, run.ExitOK, res.ExitCode())
		assert.False(t, res.Degraded())

		require.NotNil(t, res.Export)
		assert.Equal(t, "/vmware-ds01", res.Export.Path)

		require.NotNil(t, res.Mounts)
		assert.Equal(t, 3, res.Mounts.Mounted)
		assert.Equal(t, 0, res.Mounts.Failed)
		for _, o := range res.Mounts.Outcomes {
			assert.Equal(t, compute.StatusMounted, o.Status, o.Host)
		}

		assert.True(t, e.array.HasFileSystem("vmware-ds01"))
		for _, kind := range []string{"quota", "snapshot", "autodir"} {
			_, ok := e.array.Member(kind, "vmware-ds01:root")
			assert.True(t, ok, kind)
		}

		saved, err := run.Load(e.paths, res.RunID)
		require.NoError(t, err)
		assert.Equal(t, run.StatusSuccess, saved.Status)
		assert.Equal(t, 3, saved.Mounts.Mounted)
	})
}

func TestPartialAttach(t *testing.T) {
	simulator.Test(func(ctx context.Context, vc *vim25.Client) {
		e := setup(t, vc, "")
		target, err := e.compute.Client.ResolveCluster(ctx, cluster)
		require.NoError(t, err)
		e.compute.failHosts[target.Hosts[1].Name] = true

		res, err := e.coordinator.Run(ctx, provisionRequest("vmware-ds02"))
		require.NoError(t, err)
		assert.Equal(t, run.StatusPartialSuccess, res.Status)
		assert.Equal(t, run.ExitOK, res.ExitCode())
		assert.Equal(t, 2, res.Mounts.Mounted)
		assert.Equal(t, 1, res.Mounts.Failed)
		assert.Equal(t, target.Hosts[1].Name, res.Mounts.Outcomes[1].Host)
		assert.Equal(t, compute.StatusFailed, res.Mounts.Outcomes[1].Status)
	})
}

func TestUnreachableArrayAbortsRun(t *testing.T) {
	simulator.Test(func(ctx context.Context, vc *vim25.Client) {
		srv := httptest.NewServer(fakearray.New(apiVersion, apiToken).Handler())
		endpoint := srv.URL
		srv.Close()

		e := setup(t, vc, endpoint)
		res, err := e.coordinator.Run(ctx, provisionRequest("vmware-ds03"))
		require.NoError(t, err)
		assert.Equal(t, run.StatusFailed, res.Status)
		assert.Equal(t, run.ExitFailed, res.ExitCode())
		assert.Nil(t, res.Mounts)
		assert.Zero(t, e.compute.resolveCallCount)
		assert.Zero(t, e.compute.mountCallCount)
	})
}

func TestTeardownAfterRun(t *testing.T) {
	simulator.Test(func(ctx context.Context, vc *vim25.Client) {
		e := setup(t, vc, "")
		res, err := e.coordinator.Run(ctx, provisionRequest("vmware-ds04"))
		require.NoError(t, err)
		require.Equal(t, run.StatusSuccess, res.Status)

		w := teardown.NewWorkflow(e.storage, e.compute, 0)
		out, err := w.Teardown(ctx, teardown.Request{Name: "vmware-ds04", Cluster: cluster, Eradicate: true})
		require.NoError(t, err)
		assert.True(t, out.FileSystemRemoved)
		assert.Zero(t, out.Failed())
		assert.Empty(t, e.compute.mounts)
		assert.False(t, e.array.HasFileSystem("vmware-ds04"))
	})
}
