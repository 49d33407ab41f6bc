package storage

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure reported by the storage controller.
type ErrorKind string

const (
	KindUnreachable   ErrorKind = "Unreachable"
	KindAlreadyExists ErrorKind = "AlreadyExists"
	KindNotFound      ErrorKind = "NotFound"
	KindNotBound      ErrorKind = "NotBound"
	KindRejected      ErrorKind = "Rejected"
)

// Sentinel errors matching each ErrorKind, for use with errors.Is.
var (
	// ErrUnreachable is returned when the array cannot be contacted
	ErrUnreachable = errors.New("storage array unreachable")

	// ErrAlreadyExists is returned when creating an object whose name is taken
	ErrAlreadyExists = errors.New("storage object already exists")

	// ErrNotFound is returned when a named object does not exist
	ErrNotFound = errors.New("storage object not found")

	// ErrNotBound is returned when resolving an export for a directory with no export binding
	ErrNotBound = errors.New("export policy not bound")

	// ErrRejected is returned when the array refuses a request for any other reason
	ErrRejected = errors.New("storage request rejected")
)

var kindSentinels = map[ErrorKind]error{
	KindUnreachable:   ErrUnreachable,
	KindAlreadyExists: ErrAlreadyExists,
	KindNotFound:      ErrNotFound,
	KindNotBound:      ErrNotBound,
	KindRejected:      ErrRejected,
}

// StorageError is the error type every Client operation fails with.
type StorageError struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

// NewError builds a StorageError for the given operation.
func NewError(kind ErrorKind, op, message string) *StorageError {
	return &StorageError{Kind: kind, Op: op, Message: message}
}

func (e *StorageError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

// Is reports whether target is the sentinel for this error's kind.
func (e *StorageError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// KindOf returns the ErrorKind carried by err, or "" when err is not a StorageError.
func KindOf(err error) ErrorKind {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}
