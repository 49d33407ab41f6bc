package provisioning

import (
	"fmt"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/onkernel/nasattach/lib/storage"
)

// Defaults applied by WithDefaults.
const (
	DefaultSnapshotInterval    = time.Hour
	DefaultSnapshotRetention   = 24 * time.Hour
	DefaultSnapshotClientLabel = "hourly"

	DefaultExportClient     = "*"
	DefaultExportAccess     = "no-root-squash"
	DefaultExportPermission = "rw"
)

// SnapshotSchedule is the cadence of the snapshot rule.
type SnapshotSchedule struct {
	Interval    time.Duration `json:"interval"`
	Retention   time.Duration `json:"retention"`
	ClientLabel string        `json:"client_label"`
}

// ExportAccess is the client rule added to the export policy.
type ExportAccess struct {
	Client     string `json:"client"`
	Access     string `json:"access"`
	Permission string `json:"permission"`
}

// Request describes a file system to provision. Name is shared by the file
// system, its export and every policy created for it.
type Request struct {
	Name            string                  `json:"name"`
	Capacity        string                  `json:"capacity,omitempty"`
	Protocol        storage.ProtocolVersion `json:"protocol"`
	QuotaEnabled    bool                    `json:"quota_enabled"`
	SnapshotEnabled bool                    `json:"snapshot_enabled"`
	Snapshot        SnapshotSchedule        `json:"snapshot"`
	Export          ExportAccess            `json:"export"`
}

// WithDefaults returns a copy of r with unset optional fields filled in.
func (r Request) WithDefaults() Request {
	if p, err := storage.ParseProtocolVersion(string(r.Protocol)); err == nil {
		r.Protocol = p
	}
	if r.Snapshot.Interval == 0 {
		r.Snapshot.Interval = DefaultSnapshotInterval
	}
	if r.Snapshot.Retention == 0 {
		r.Snapshot.Retention = DefaultSnapshotRetention
	}
	if r.Snapshot.ClientLabel == "" {
		r.Snapshot.ClientLabel = DefaultSnapshotClientLabel
	}
	if r.Export.Client == "" {
		r.Export.Client = DefaultExportClient
	}
	if r.Export.Access == "" {
		r.Export.Access = DefaultExportAccess
	}
	if r.Export.Permission == "" {
		r.Export.Permission = DefaultExportPermission
	}
	return r
}

// Validate checks the request. Capacity is only required when quota is enabled.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	if _, err := storage.ParseProtocolVersion(string(r.Protocol)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if r.QuotaEnabled {
		if _, err := r.CapacityBytes(); err != nil {
			return err
		}
	}
	if r.SnapshotEnabled && (r.Snapshot.Interval < 0 || r.Snapshot.Retention < r.Snapshot.Interval) {
		return fmt.Errorf("%w: snapshot retention %s must cover interval %s",
			ErrInvalidRequest, r.Snapshot.Retention, r.Snapshot.Interval)
	}
	return nil
}

// CapacityBytes parses Capacity ("10GB", "512MiB", ...) into a positive byte count.
func (r Request) CapacityBytes() (int64, error) {
	var size datasize.ByteSize
	if err := size.UnmarshalText([]byte(strings.TrimSpace(r.Capacity))); err != nil {
		return 0, fmt.Errorf("%w: capacity %q: %v", ErrInvalidRequest, r.Capacity, err)
	}
	if size == 0 || size.Bytes() > 1<<62 {
		return 0, fmt.Errorf("%w: capacity %q must be a positive size", ErrInvalidRequest, r.Capacity)
	}
	return int64(size.Bytes()), nil
}

// Policy names derived from the request name. The array keeps one namespace
// for all policy kinds.
func (r Request) policyName(kind storage.PolicyKind) string {
	return fmt.Sprintf("%s-%s", r.Name, kind)
}
