package attachment

import (
	"time"

	"github.com/onkernel/nasattach/lib/compute"
	"github.com/onkernel/nasattach/lib/storage"
)

// DefaultConcurrencyCap bounds the mount fan-out when no cap is configured.
const DefaultConcurrencyCap = 16

// Config tunes the attachment workflow.
type Config struct {
	// ServerAddress is the NFS server address hosts mount from.
	ServerAddress string

	// Concurrency is the number of hosts mounted at once. Zero means one
	// worker per host, limited by ConcurrencyCap.
	Concurrency    int
	ConcurrencyCap int

	// SettleDelay is waited after a successful mount call before the
	// datastore is verified.
	SettleDelay time.Duration

	// VerifyDefaultProtocol applies SettleDelay to v3 mounts as well.
	// Multi-session (v4.1) mounts always settle.
	VerifyDefaultProtocol bool

	DiagnosticsEnabled     bool
	MultiSessionMinVersion string
}

// Request describes what to attach and where.
type Request struct {
	Cluster          string                   `json:"cluster"`
	DatastoreName    string                   `json:"datastore"`
	Export           storage.ExportDescriptor `json:"export"`
	ParallelSessions int                      `json:"parallel_sessions,omitempty"`
}

// Status is the aggregate outcome of a fan-out.
type Status string

const (
	StatusSuccess        Status = "Success"
	StatusPartialSuccess Status = "PartialSuccess"
	StatusFailed         Status = "Failed"
)

// HostOutcome is the per-host entry of a MountReport.
type HostOutcome struct {
	Host          string              `json:"host"`
	Version       string              `json:"version,omitempty"`
	Status        compute.MountStatus `json:"status"`
	Strategy      string              `json:"strategy,omitempty"`
	Detail        string              `json:"detail,omitempty"`
	Error         string              `json:"error,omitempty"`
	CapacityBytes int64               `json:"capacity_bytes,omitempty"`
	FreeBytes     int64               `json:"free_bytes,omitempty"`
	Err           error               `json:"-"`
}

// MountReport lists one outcome per host, in cluster order.
type MountReport struct {
	Cluster     string                     `json:"cluster"`
	Datastore   string                     `json:"datastore"`
	Status      Status                     `json:"status"`
	Mounted     int                        `json:"mounted"`
	Failed      int                        `json:"failed"`
	Outcomes    []HostOutcome              `json:"outcomes"`
	Diagnostics []compute.DiagnosticResult `json:"diagnostics,omitempty"`
}

// Total is the number of hosts the cluster resolved to.
func (r *MountReport) Total() int {
	return len(r.Outcomes)
}

// statusFor maps counts to an aggregate status.
func statusFor(mounted, failed int) Status {
	switch {
	case failed == 0 && mounted > 0:
		return StatusSuccess
	case mounted == 0:
		return StatusFailed
	default:
		return StatusPartialSuccess
	}
}
