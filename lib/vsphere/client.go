// Package vsphere implements compute.Client against vCenter using govmomi.
package vsphere

import (
	"context"
	"fmt"
	"net/url"

	"github.com/onkernel/nasattach/lib/compute"
	"github.com/vmware/govmomi"
	"github.com/vmware/govmomi/find"
	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/property"
	"github.com/vmware/govmomi/vim25"
	"github.com/vmware/govmomi/vim25/soap"
	"github.com/vmware/govmomi/vim25/types"
)

// Credentials are resolved by the caller and handed over as-is.
type Credentials struct {
	Username string
	Password string
}

// Config describes the vCenter connection and mount policy.
type Config struct {
	URL        string
	Datacenter string
	Insecure   bool

	// MultiSessionMinVersion is the lowest host version allowed to mount
	// with more than one NFS session.
	MultiSessionMinVersion string
}

// Client encapsulates a vCenter connection, exposing the subset of
// functionality the attachment and teardown workflows need.
type Client struct {
	vim        *vim25.Client
	datacenter string
	minVersion string
	logout     func(context.Context) error
}

var _ compute.Client = (*Client)(nil)

// Dial connects and logs in. Close must be called to release the session.
func Dial(ctx context.Context, cfg Config, creds Credentials) (*Client, error) {
	u, err := soap.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse vcenter url: %w", err)
	}
	u.User = url.UserPassword(creds.Username, creds.Password)

	gc, err := govmomi.NewClient(ctx, u, cfg.Insecure)
	if err != nil {
		if soap.IsSoapFault(err) {
			return nil, fmt.Errorf("%w: login to %s: %v", compute.ErrRejected, u.Host, err)
		}
		return nil, fmt.Errorf("%w: connect to %s: %v", compute.ErrUnreachable, u.Host, err)
	}

	c := NewFromVimClient(gc.Client, cfg)
	c.logout = gc.Logout
	return c, nil
}

// NewFromVimClient wraps an already authenticated vim25 client.
func NewFromVimClient(vim *vim25.Client, cfg Config) *Client {
	minVersion := cfg.MultiSessionMinVersion
	if minVersion == "" {
		minVersion = compute.DefaultMultiSessionMinVersion
	}
	return &Client{
		vim:        vim,
		datacenter: cfg.Datacenter,
		minVersion: minVersion,
	}
}

// Close logs out of vCenter.
func (c *Client) Close(ctx context.Context) error {
	if c.logout == nil {
		return nil
	}
	return c.logout(ctx)
}

func (c *Client) finder(ctx context.Context) (*find.Finder, error) {
	finder := find.NewFinder(c.vim, true)
	datacenter, err := finder.DatacenterOrDefault(ctx, c.datacenter)
	if err != nil {
		return nil, classify(err, "find datacenter")
	}
	finder.SetDatacenter(datacenter)
	return finder, nil
}

func (c *Client) collector() *property.Collector {
	return property.DefaultCollector(c.vim)
}

func (c *Client) hostSystem(h compute.HostHandle) *object.HostSystem {
	return object.NewHostSystem(c.vim, types.ManagedObjectReference{Type: "HostSystem", Value: h.Ref})
}
