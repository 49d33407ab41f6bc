package vsphere

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/onkernel/nasattach/lib/compute"
	"github.com/onkernel/nasattach/lib/storage"
	"github.com/vmware/govmomi/govc/host/esxcli"
	"github.com/vmware/govmomi/vim25/mo"
)

const (
	rulesetNFS3  = "nfsClient"
	rulesetNFS41 = "nfs41Client"

	pingCount = "3"
)

// RunDiagnostic runs an advisory probe against a host. Probe failures are
// reported in the result; the error return is reserved for probes that
// could not be executed at all.
func (c *Client) RunDiagnostic(ctx context.Context, host compute.HostHandle, kind compute.DiagnosticKind, params map[string]string) (*compute.DiagnosticResult, error) {
	res := &compute.DiagnosticResult{Kind: kind, Host: host.Name}
	var err error
	switch kind {
	case compute.DiagnosticPlatformVersion:
		err = c.diagnoseVersion(host, params, res)
	case compute.DiagnosticFirewall:
		err = c.diagnoseFirewall(ctx, host, params, res)
	case compute.DiagnosticReachability:
		err = c.diagnoseReachability(ctx, host, params, res)
	case compute.DiagnosticAdapters:
		err = c.diagnoseAdapters(ctx, host, res)
	case compute.DiagnosticMounts:
		err = c.diagnoseMounts(ctx, host, res)
	default:
		return nil, fmt.Errorf("unknown diagnostic %q", kind)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) diagnoseVersion(host compute.HostHandle, params map[string]string, res *compute.DiagnosticResult) error {
	minVersion := params[compute.ParamMinVersion]
	if minVersion == "" {
		minVersion = c.minVersion
	}
	ok, err := compute.SupportsMultiSession(host.Version, minVersion)
	res.Details = []string{fmt.Sprintf("version %s build %s", host.Version, host.Build)}
	switch {
	case err != nil:
		res.Summary = fmt.Sprintf("cannot compare version: %v", err)
	case ok:
		res.OK = true
		res.Summary = fmt.Sprintf("%s supports multi-session mounts", host.Version)
	default:
		res.Summary = fmt.Sprintf("%s is older than %s", host.Version, minVersion)
	}
	return nil
}

func (c *Client) diagnoseFirewall(ctx context.Context, host compute.HostHandle, params map[string]string, res *compute.DiagnosticResult) error {
	fw, err := c.hostSystem(host).ConfigManager().FirewallSystem(ctx)
	if err != nil {
		return classify(err, "firewall system")
	}
	info, err := fw.Info(ctx)
	if err != nil {
		return classify(err, "firewall info")
	}

	want := rulesetNFS3
	if params[compute.ParamProtocol] == string(storage.ProtocolV41) {
		want = rulesetNFS41
	}
	res.Summary = fmt.Sprintf("ruleset %s not present", want)
	for _, rs := range info.Ruleset {
		if rs.Key != want {
			continue
		}
		res.OK = rs.Enabled
		if rs.Enabled {
			res.Summary = fmt.Sprintf("ruleset %s enabled", want)
		} else {
			res.Summary = fmt.Sprintf("ruleset %s disabled", want)
		}
		if rs.AllowedHosts != nil {
			res.Details = append(res.Details, fmt.Sprintf("all ip: %t", rs.AllowedHosts.AllIp))
			for _, ip := range rs.AllowedHosts.IpAddress {
				res.Details = append(res.Details, "allowed "+ip)
			}
		}
	}
	return nil
}

func (c *Client) diagnoseReachability(ctx context.Context, host compute.HostHandle, params map[string]string, res *compute.DiagnosticResult) error {
	addr := params[compute.ParamAddress]
	if addr == "" {
		return fmt.Errorf("reachability diagnostic needs %q", compute.ParamAddress)
	}
	e, err := esxcli.NewExecutor(c.vim, c.hostSystem(host))
	if err != nil {
		return classify(err, "esxcli executor")
	}
	out, err := e.Run([]string{"network", "diag", "ping", "--host", addr, "--count", pingCount})
	if err != nil {
		res.Summary = fmt.Sprintf("ping %s failed: %v", addr, err)
		return nil
	}

	res.OK = true
	res.Summary = fmt.Sprintf("ping %s succeeded", addr)
	for _, v := range out.Values {
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			res.Details = append(res.Details, fmt.Sprintf("%s=%s", k, strings.Join(v[k], ",")))
		}
		if lost, ok := v["PacketLost"]; ok && len(lost) > 0 && lost[0] == "100" {
			res.OK = false
			res.Summary = fmt.Sprintf("ping %s lost every packet", addr)
		}
	}
	return nil
}

func (c *Client) diagnoseAdapters(ctx context.Context, host compute.HostHandle, res *compute.DiagnosticResult) error {
	ns, err := c.hostSystem(host).ConfigManager().NetworkSystem(ctx)
	if err != nil {
		return classify(err, "network system")
	}
	var mns mo.HostNetworkSystem
	if err := ns.Properties(ctx, ns.Reference(), []string{"networkInfo.vnic"}, &mns); err != nil {
		return classify(err, "retrieve vmkernel adapters")
	}
	if mns.NetworkInfo != nil {
		for _, vnic := range mns.NetworkInfo.Vnic {
			ip := ""
			if vnic.Spec.Ip != nil {
				ip = vnic.Spec.Ip.IpAddress
			}
			res.Details = append(res.Details, fmt.Sprintf("%s portgroup=%q ip=%s", vnic.Device, vnic.Portgroup, ip))
		}
	}
	res.OK = len(res.Details) > 0
	res.Summary = fmt.Sprintf("%d vmkernel adapters", len(res.Details))
	return nil
}

func (c *Client) diagnoseMounts(ctx context.Context, host compute.HostHandle, res *compute.DiagnosticResult) error {
	dss, err := c.hostDatastores(ctx, host)
	if err != nil {
		return err
	}
	for _, ds := range dss {
		if !isNFS(ds.Summary.Type) {
			continue
		}
		res.Details = append(res.Details, fmt.Sprintf("%s type=%s accessible=%t url=%s",
			ds.Summary.Name, ds.Summary.Type, ds.Summary.Accessible, ds.Summary.Url))
	}
	res.OK = true
	res.Summary = fmt.Sprintf("%d nfs datastores mounted", len(res.Details))
	return nil
}
