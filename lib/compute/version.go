package compute

import (
	"fmt"
	"strings"

	"github.com/blang/semver/v4"
)

// DefaultMultiSessionMinVersion is the first platform release that accepts
// more than one NFS session per datastore.
const DefaultMultiSessionMinVersion = "8.0.1"

// ParseVersion parses a platform version such as "8.0.2" or "7.0".
func ParseVersion(v string) (semver.Version, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return semver.Version{}, fmt.Errorf("empty version")
	}
	parsed, err := semver.ParseTolerant(v)
	if err != nil {
		return semver.Version{}, fmt.Errorf("parse version %q: %w", v, err)
	}
	return parsed, nil
}

// SupportsMultiSession reports whether a host version is at least minVersion.
func SupportsMultiSession(hostVersion, minVersion string) (bool, error) {
	if minVersion == "" {
		minVersion = DefaultMultiSessionMinVersion
	}
	min, err := ParseVersion(minVersion)
	if err != nil {
		return false, err
	}
	have, err := ParseVersion(hostVersion)
	if err != nil {
		return false, err
	}
	return have.GTE(min), nil
}
