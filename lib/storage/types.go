package storage

import (
	"fmt"
	"time"
)

// ProtocolVersion selects the NFS protocol an export is served with.
type ProtocolVersion string

const (
	ProtocolV3  ProtocolVersion = "v3"
	ProtocolV41 ProtocolVersion = "v4.1"
)

// ParseProtocolVersion accepts the CLI spellings of a protocol version.
func ParseProtocolVersion(s string) (ProtocolVersion, error) {
	switch s {
	case "", "v3", "3", "nfsv3":
		return ProtocolV3, nil
	case "v4.1", "4.1", "nfsv4.1", "v41":
		return ProtocolV41, nil
	}
	return "", fmt.Errorf("unsupported protocol version %q (want v3 or v4.1)", s)
}

// MultiSession reports whether the version belongs to the multi-session family.
func (v ProtocolVersion) MultiSession() bool {
	return v == ProtocolV41
}

func (v ProtocolVersion) String() string {
	return string(v)
}

// PolicyKind names one of the four policy types a directory can carry.
type PolicyKind string

const (
	PolicyExport   PolicyKind = "export"
	PolicyQuota    PolicyKind = "quota"
	PolicySnapshot PolicyKind = "snapshot"
	PolicyAutodir  PolicyKind = "autodir"
)

// FileSystemHandle identifies a created file system and its managed root directory.
type FileSystemHandle struct {
	Name      string    `json:"name"`
	ID        string    `json:"id,omitempty"`
	Directory string    `json:"directory"`
	Created   time.Time `json:"created,omitempty"`
}

// PolicyBinding records that a policy is attached to a directory.
type PolicyBinding struct {
	Kind      PolicyKind `json:"kind"`
	Policy    string     `json:"policy"`
	Directory string     `json:"directory"`
}

// ExportDescriptor is the network path clients mount.
type ExportDescriptor struct {
	Name     string          `json:"name"`
	Path     string          `json:"path"`
	Protocol ProtocolVersion `json:"protocol"`
}

// ExportRule describes a single NFS client rule.
type ExportRule struct {
	Client     string
	Access     string
	Permission string
	Protocol   ProtocolVersion
}
