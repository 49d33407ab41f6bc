package attachment

import "errors"

var (
	// ErrNoHosts is returned when the cluster resolves to an empty host list
	ErrNoHosts = errors.New("cluster has no hosts")

	// ErrInvalidRequest is returned when a request is missing the datastore name or export path
	ErrInvalidRequest = errors.New("invalid attachment request")
)
