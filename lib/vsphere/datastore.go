package vsphere

import (
	"context"
	"fmt"
	"strings"

	"github.com/kr/pretty"
	"github.com/onkernel/nasattach/lib/compute"
	"github.com/onkernel/nasattach/lib/logger"
	"github.com/onkernel/nasattach/lib/storage"
	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/types"
)

const (
	nasTypeV3  = "NFS"
	nasTypeV41 = "NFS41"

	securityAuthSys = "AUTH_SYS"
)

func nasType(p storage.ProtocolVersion) string {
	if p == storage.ProtocolV41 {
		return nasTypeV41
	}
	return nasTypeV3
}

// MountExport creates an NFS datastore on a single host.
func (c *Client) MountExport(ctx context.Context, host compute.HostHandle, req compute.MountRequest) (*compute.MountOutcome, error) {
	log := logger.FromContext(ctx).With("host", host.Name)

	if req.MultiSession() {
		ok, err := compute.SupportsMultiSession(host.Version, c.minVersion)
		if err != nil {
			return nil, fmt.Errorf("%w: host %s: %v", compute.ErrVersionUnsupported, host.Name, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: host %s runs %s, multi-session mounts need %s",
				compute.ErrVersionUnsupported, host.Name, host.Version, c.minVersion)
		}
	}

	dss, err := c.hostSystem(host).ConfigManager().DatastoreSystem(ctx)
	if err != nil {
		return nil, classify(err, "datastore system")
	}

	spec := types.HostNasVolumeSpec{
		RemoteHost: req.ServerAddress,
		RemotePath: req.ExportPath,
		LocalPath:  req.DatastoreName,
		AccessMode: string(types.HostMountModeReadWrite),
		Type:       nasType(req.Protocol),
	}
	if req.Protocol == storage.ProtocolV41 {
		spec.RemoteHostNames = []string{req.ServerAddress}
		spec.SecurityType = securityAuthSys
	}
	if req.MultiSession() {
		spec.Connections = int32(req.ParallelSessions)
	}
	log.DebugContext(ctx, "creating nas datastore", "spec", pretty.Sprint(spec))

	ds, err := dss.CreateNasDatastore(ctx, spec)
	if err != nil {
		return nil, classifyMount(err, req.MultiSession())
	}

	outcome := &compute.MountOutcome{
		Host:   host,
		Status: compute.StatusMounted,
		Detail: fmt.Sprintf("created datastore %s", req.DatastoreName),
	}
	var mds mo.Datastore
	if err := ds.Properties(ctx, ds.Reference(), []string{"summary"}, &mds); err == nil {
		outcome.CapacityBytes = mds.Summary.Capacity
		outcome.FreeBytes = mds.Summary.FreeSpace
	}
	return outcome, nil
}

// VerifyDatastore reports the named datastore as seen by a host.
func (c *Client) VerifyDatastore(ctx context.Context, host compute.HostHandle, name string) (*compute.DatastoreInfo, error) {
	ds, err := c.hostDatastore(ctx, host, name)
	if err != nil {
		return nil, err
	}
	if !ds.Summary.Accessible {
		return nil, fmt.Errorf("%w: %s is not accessible on %s", compute.ErrDatastoreNotFound, name, host.Name)
	}
	info := &compute.DatastoreInfo{
		Name:          ds.Summary.Name,
		Type:          ds.Summary.Type,
		CapacityBytes: ds.Summary.Capacity,
		FreeBytes:     ds.Summary.FreeSpace,
	}
	if nas, ok := ds.Info.(*types.NasDatastoreInfo); ok && nas.Nas != nil {
		info.RemoteHost = nas.Nas.RemoteHost
		info.RemotePath = nas.Nas.RemotePath
	}
	return info, nil
}

// UnmountExport removes the named datastore from a host.
func (c *Client) UnmountExport(ctx context.Context, host compute.HostHandle, name string) error {
	ds, err := c.hostDatastore(ctx, host, name)
	if err != nil {
		return err
	}
	dss, err := c.hostSystem(host).ConfigManager().DatastoreSystem(ctx)
	if err != nil {
		return classify(err, "datastore system")
	}
	if err := dss.Remove(ctx, object.NewDatastore(c.vim, ds.Self)); err != nil {
		return classify(err, "remove datastore")
	}
	logger.FromContext(ctx).InfoContext(ctx, "removed datastore", "host", host.Name, "datastore", name)
	return nil
}

func (c *Client) hostDatastores(ctx context.Context, host compute.HostHandle) ([]mo.Datastore, error) {
	var hs mo.HostSystem
	if err := c.hostSystem(host).Properties(ctx, c.hostSystem(host).Reference(), []string{"datastore"}, &hs); err != nil {
		return nil, classify(err, "retrieve host datastores")
	}
	if len(hs.Datastore) == 0 {
		return nil, nil
	}
	var dss []mo.Datastore
	if err := c.collector().Retrieve(ctx, hs.Datastore, []string{"summary", "info"}, &dss); err != nil {
		return nil, classify(err, "retrieve datastore properties")
	}
	return dss, nil
}

func (c *Client) hostDatastore(ctx context.Context, host compute.HostHandle, name string) (*mo.Datastore, error) {
	dss, err := c.hostDatastores(ctx, host)
	if err != nil {
		return nil, err
	}
	for i := range dss {
		if dss[i].Summary.Name == name {
			return &dss[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s on %s", compute.ErrDatastoreNotFound, name, host.Name)
}

func isNFS(fsType string) bool {
	return strings.HasPrefix(strings.ToUpper(fsType), nasTypeV3)
}
