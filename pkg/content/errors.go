package content

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrValidation indicates a request was rejected before any store call
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates a record was not found
	ErrNotFound = errors.New("record not found")

	// ErrPayloadRejected indicates an image exceeded the configured type or size limits
	ErrPayloadRejected = errors.New("payload rejected")

	// ErrImageUploadFailed indicates the image could not be stored
	ErrImageUploadFailed = errors.New("image upload failed")

	// ErrStoreUnavailable indicates the blob store could not be reached or refused the call
	ErrStoreUnavailable = errors.New("blob store unavailable")

	// ErrPersistenceFailed indicates a record store operation failed
	ErrPersistenceFailed = errors.New("persistence failed")

	// ErrRecordCreateFailed indicates the record insert failed
	ErrRecordCreateFailed = fmt.Errorf("%w: record create failed", ErrPersistenceFailed)

	// ErrObjectNotFound is returned by blob stores for a missing key
	ErrObjectNotFound = errors.New("object not found")
)

// ValidationError describes a user-correctable problem with a request.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// Is reports every ValidationError as ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ContentError represents an error related to record operations
type ContentError struct {
	ID  uuid.UUID
	Op  string
	Err error
}

func (e *ContentError) Error() string {
	if e.ID == uuid.Nil {
		return fmt.Sprintf("content operation %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("content operation %s failed for record %s: %v", e.Op, e.ID, e.Err)
}

func (e *ContentError) Unwrap() error {
	return e.Err
}

// StorageError represents a failed blob store call. It matches ErrStoreUnavailable.
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a user-correctable validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
