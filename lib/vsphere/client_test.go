package vsphere

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/onkernel/nasattach/lib/compute"
	"github.com/onkernel/nasattach/lib/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmware/govmomi/simulator"
	"github.com/vmware/govmomi/vim25"
	"github.com/vmware/govmomi/vim25/soap"
	"github.com/vmware/govmomi/vim25/types"
)

func TestResolveCluster(t *testing.T) {
	simulator.Test(func(ctx context.Context, vc *vim25.Client) {
		c := NewFromVimClient(vc, Config{})

		target, err := c.ResolveCluster(ctx, "DC0_C0")
		require.NoError(t, err)
		require.Len(t, target.Hosts, 3)
		for _, h := range target.Hosts {
			assert.True(t, strings.HasPrefix(h.Name, "DC0_C0_H"), h.Name)
			assert.NotEmpty(t, h.Ref)
			assert.NotEmpty(t, h.Version)
		}

		_, err = c.ResolveCluster(ctx, "missing")
		assert.ErrorIs(t, err, compute.ErrClusterNotFound)
	})
}

func TestVerifyDatastore(t *testing.T) {
	simulator.Test(func(ctx context.Context, vc *vim25.Client) {
		c := NewFromVimClient(vc, Config{})
		target, err := c.ResolveCluster(ctx, "DC0_C0")
		require.NoError(t, err)
		host := target.Hosts[0]

		info, err := c.VerifyDatastore(ctx, host, "LocalDS_0")
		require.NoError(t, err)
		assert.Equal(t, "LocalDS_0", info.Name)

		_, err = c.VerifyDatastore(ctx, host, "nfs-missing")
		assert.ErrorIs(t, err, compute.ErrDatastoreNotFound)

		err = c.UnmountExport(ctx, host, "nfs-missing")
		assert.ErrorIs(t, err, compute.ErrDatastoreNotFound)
	})
}

func TestMountExportVersionGate(t *testing.T) {
	simulator.Test(func(ctx context.Context, vc *vim25.Client) {
		c := NewFromVimClient(vc, Config{MultiSessionMinVersion: "8.0.1"})
		target, err := c.ResolveCluster(ctx, "DC0_C0")
		require.NoError(t, err)

		host := target.Hosts[0]
		host.Version = "7.0.3"
		_, err = c.MountExport(ctx, host, compute.MountRequest{
			DatastoreName:    "nfs-gated",
			ExportPath:       "/gated",
			ServerAddress:    "10.0.0.10",
			Protocol:         storage.ProtocolV41,
			ParallelSessions: 4,
		})
		assert.ErrorIs(t, err, compute.ErrVersionUnsupported)

		_, err = c.VerifyDatastore(ctx, host, "nfs-gated")
		assert.ErrorIs(t, err, compute.ErrDatastoreNotFound)
	})
}

func TestRunDiagnostic(t *testing.T) {
	simulator.Test(func(ctx context.Context, vc *vim25.Client) {
		c := NewFromVimClient(vc, Config{})
		target, err := c.ResolveCluster(ctx, "DC0_C0")
		require.NoError(t, err)
		host := target.Hosts[0]

		t.Run("platform version", func(t *testing.T) {
			h := host
			h.Version = "8.0.2"
			res, err := c.RunDiagnostic(ctx, h, compute.DiagnosticPlatformVersion,
				map[string]string{compute.ParamMinVersion: "8.0.1"})
			require.NoError(t, err)
			assert.True(t, res.OK)
			assert.Equal(t, h.Name, res.Host)

			h.Version = "7.0"
			res, err = c.RunDiagnostic(ctx, h, compute.DiagnosticPlatformVersion,
				map[string]string{compute.ParamMinVersion: "8.0.1"})
			require.NoError(t, err)
			assert.False(t, res.OK)
		})

		t.Run("mounts", func(t *testing.T) {
			res, err := c.RunDiagnostic(ctx, host, compute.DiagnosticMounts, nil)
			require.NoError(t, err)
			assert.True(t, res.OK)
		})

		t.Run("reachability needs address", func(t *testing.T) {
			_, err := c.RunDiagnostic(ctx, host, compute.DiagnosticReachability, nil)
			assert.Error(t, err)
		})

		t.Run("unknown kind", func(t *testing.T) {
			_, err := c.RunDiagnostic(ctx, host, compute.DiagnosticKind("bogus"), nil)
			assert.Error(t, err)
		})
	})
}

func TestClassifyMount(t *testing.T) {
	fault := func(f types.AnyType) error {
		sf := &soap.Fault{}
		sf.Detail.Fault = f
		return soap.WrapSoapFault(sf)
	}

	tests := []struct {
		name         string
		err          error
		multiSession bool
		want         error
	}{
		{"duplicate name", fault(types.DuplicateName{Name: "ds"}), false, compute.ErrAlreadyMounted},
		{"already exists", fault(types.AlreadyExists{Name: "ds"}), false, compute.ErrAlreadyMounted},
		{"not supported multi-session", fault(types.NotSupported{}), true, compute.ErrVersionUnsupported},
		{"not supported single session", fault(types.NotSupported{}), false, compute.ErrMountRejected},
		{"connections invalid", fault(types.InvalidArgument{InvalidProperty: "connections"}), true, compute.ErrVersionUnsupported},
		{"host config fault", fault(types.HostConfigFault{}), false, compute.ErrMountRejected},
		{"transport", errors.New("connection reset"), false, compute.ErrUnreachable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classifyMount(tt.err, tt.multiSession), tt.want)
		})
	}
}
