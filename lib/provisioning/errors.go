package provisioning

import "errors"

var (
	// ErrInvalidRequest is returned when a request fails validation before any remote call
	ErrInvalidRequest = errors.New("invalid provisioning request")

	// ErrAborted is returned when a fatal step stops the workflow
	ErrAborted = errors.New("provisioning aborted")
)
