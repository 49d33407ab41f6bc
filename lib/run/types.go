package run

import (
	"time"

	"github.com/onkernel/nasattach/lib/attachment"
	"github.com/onkernel/nasattach/lib/provisioning"
	"github.com/onkernel/nasattach/lib/storage"
)

// Status is the overall outcome of a run.
type Status string

const (
	StatusSuccess        Status = "Success"
	StatusPartialSuccess Status = "PartialSuccess"
	StatusFailed         Status = "Failed"
)

// Exit codes.
const (
	ExitOK     = 0
	ExitFailed = 1
)

// Request is everything a run needs besides credentials.
type Request struct {
	// RunID is generated when empty.
	RunID string `json:"run_id,omitempty"`

	Provision provisioning.Request `json:"provision"`
	Cluster   string               `json:"cluster"`

	// DatastoreName defaults to the file system name.
	DatastoreName    string `json:"datastore,omitempty"`
	ParallelSessions int    `json:"parallel_sessions,omitempty"`
}

// Result is the terminal artifact of a run. Provisioning warnings and the
// mount report are kept side by side.
type Result struct {
	RunID        string                    `json:"run_id"`
	Request      Request                   `json:"request"`
	Status       Status                    `json:"status"`
	Error        string                    `json:"error,omitempty"`
	Provisioning *provisioning.Result      `json:"provisioning,omitempty"`
	Export       *storage.ExportDescriptor `json:"export,omitempty"`
	Mounts       *attachment.MountReport   `json:"mounts,omitempty"`
	StartedAt    time.Time                 `json:"started_at"`
	FinishedAt   time.Time                 `json:"finished_at"`
}

// ExitCode is 0 on Success, or on PartialSuccess with at least one host
// mounted, and 1 otherwise.
func (r *Result) ExitCode() int {
	switch r.Status {
	case StatusSuccess:
		return ExitOK
	case StatusPartialSuccess:
		if r.Mounts != nil && r.Mounts.Mounted > 0 {
			return ExitOK
		}
	}
	return ExitFailed
}

// Degraded reports whether provisioning finished with optional policies missing.
func (r *Result) Degraded() bool {
	return r.Provisioning != nil && r.Provisioning.Degraded()
}

// Duration is the wall time of the run.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func statusFromAttachment(s attachment.Status) Status {
	switch s {
	case attachment.StatusSuccess:
		return StatusSuccess
	case attachment.StatusPartialSuccess:
		return StatusPartialSuccess
	}
	return StatusFailed
}
