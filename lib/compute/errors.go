package compute

import "errors"

var (
	// ErrUnreachable is returned when the control plane cannot be contacted
	ErrUnreachable = errors.New("compute control plane unreachable")

	// ErrClusterNotFound is returned when the named cluster does not exist
	ErrClusterNotFound = errors.New("cluster not found")

	// ErrDatastoreNotFound is returned when a host has no accessible datastore with the given name
	ErrDatastoreNotFound = errors.New("datastore not found")

	// ErrMountRejected is returned when a host declines to mount an export
	ErrMountRejected = errors.New("mount rejected")

	// ErrVersionUnsupported is returned when the host platform predates the requested protocol features
	ErrVersionUnsupported = errors.New("host version unsupported")

	// ErrAlreadyMounted is returned when a datastore with the requested name already exists on the host
	ErrAlreadyMounted = errors.New("datastore already mounted")

	// ErrRejected is returned for any other remote validation failure
	ErrRejected = errors.New("compute request rejected")
)
