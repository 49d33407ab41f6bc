package vsphere

import (
	"context"
	"fmt"

	"github.com/onkernel/nasattach/lib/compute"
	"github.com/onkernel/nasattach/lib/logger"
	"github.com/vmware/govmomi/find"
	"github.com/vmware/govmomi/vim25/mo"
)

// ResolveCluster returns the cluster's member hosts in inventory order.
func (c *Client) ResolveCluster(ctx context.Context, name string) (*compute.ClusterTarget, error) {
	log := logger.FromContext(ctx)

	finder, err := c.finder(ctx)
	if err != nil {
		return nil, err
	}
	cluster, err := finder.ClusterComputeResource(ctx, name)
	if err != nil {
		if _, ok := err.(*find.NotFoundError); ok {
			return nil, fmt.Errorf("%w: %s", compute.ErrClusterNotFound, name)
		}
		return nil, classify(err, "find cluster")
	}

	var ccr mo.ClusterComputeResource
	if err := cluster.Properties(ctx, cluster.Reference(), []string{"host"}, &ccr); err != nil {
		return nil, classify(err, "retrieve cluster hosts")
	}

	target := &compute.ClusterTarget{Name: name}
	if len(ccr.Host) == 0 {
		return target, nil
	}

	var hosts []mo.HostSystem
	if err := c.collector().Retrieve(ctx, ccr.Host, []string{"name", "summary"}, &hosts); err != nil {
		return nil, classify(err, "retrieve host properties")
	}
	byRef := make(map[string]mo.HostSystem, len(hosts))
	for _, h := range hosts {
		byRef[h.Self.Value] = h
	}

	// The property collector does not preserve request order.
	for _, ref := range ccr.Host {
		h, ok := byRef[ref.Value]
		if !ok {
			continue
		}
		handle := compute.HostHandle{Name: h.Name, Ref: ref.Value}
		if cfg := h.Summary.Config; cfg.Product != nil {
			handle.Version = cfg.Product.Version
			handle.Build = cfg.Product.Build
		}
		target.Hosts = append(target.Hosts, handle)
	}

	log.DebugContext(ctx, "resolved cluster", "cluster", name, "hosts", len(target.Hosts))
	return target, nil
}
