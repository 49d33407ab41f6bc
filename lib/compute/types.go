package compute

import "github.com/onkernel/nasattach/lib/storage"

// HostHandle identifies one host of a cluster.
type HostHandle struct {
	Name    string
	Ref     string
	Version string
	Build   string
}

// ClusterTarget is a cluster resolved to its hosts, in the order the control plane reports them.
type ClusterTarget struct {
	Name  string
	Hosts []HostHandle
}

// MountRequest describes an NFS datastore mount.
type MountRequest struct {
	DatastoreName    string
	ExportPath       string
	ServerAddress    string
	Protocol         storage.ProtocolVersion
	ParallelSessions int
}

// MultiSession reports whether the request asks for more than one transport session.
func (r MountRequest) MultiSession() bool {
	return r.ParallelSessions > 1
}

type MountStatus string

const (
	StatusMounted MountStatus = "Mounted"
	StatusFailed  MountStatus = "Failed"
)

// MountOutcome is the result of mounting on a single host.
type MountOutcome struct {
	Host          HostHandle
	Status        MountStatus
	Err           error
	Detail        string
	CapacityBytes int64
	FreeBytes     int64
}

// DatastoreInfo is what a host reports about a mounted datastore.
type DatastoreInfo struct {
	Name          string
	Type          string
	RemoteHost    string
	RemotePath    string
	CapacityBytes int64
	FreeBytes     int64
}

// DiagnosticKind names a remote probe.
type DiagnosticKind string

const (
	DiagnosticPlatformVersion DiagnosticKind = "platform-version"
	DiagnosticFirewall        DiagnosticKind = "firewall"
	DiagnosticReachability    DiagnosticKind = "reachability"
	DiagnosticAdapters        DiagnosticKind = "adapters"
	DiagnosticMounts          DiagnosticKind = "mounts"
)

// Diagnostic parameter keys.
const (
	ParamAddress    = "address"
	ParamMinVersion = "min_version"
	ParamProtocol   = "protocol"
)

// DiagnosticResult is advisory; OK=false never blocks a mount.
type DiagnosticResult struct {
	Kind    DiagnosticKind `json:"kind"`
	Host    string         `json:"host"`
	OK      bool           `json:"ok"`
	Summary string         `json:"summary"`
	Details []string       `json:"details,omitempty"`
}
