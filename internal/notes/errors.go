package notes

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the failure taxonomy. Handlers map these to
// HTTP statuses; anything else is a generic server failure.
var (
	// ErrUnauthorized indicates the caller does not own the target note.
	ErrUnauthorized = errors.New("notes: unauthorized")
	// ErrNotFound indicates the target note does not exist.
	ErrNotFound = errors.New("notes: not found")
	// ErrInvalidInput indicates a bad style id or malformed request body.
	ErrInvalidInput = errors.New("notes: invalid input")
	// ErrQuotaExceeded is a business-rule rejection carrying user-facing copy.
	ErrQuotaExceeded = errors.New("notes: free note limit reached")
	// ErrUpload indicates the object store rejected the audio write.
	ErrUpload = errors.New("notes: audio upload failed")
	// ErrPersistence indicates a store read or write failure.
	ErrPersistence = errors.New("notes: persistence failed")
)

// QuotaMessage is the upgrade copy surfaced with ErrQuotaExceeded.
const QuotaMessage = "Go Premium and unlock unlimited notes."

// ServiceError decorates a failure with an operation code for logs and
// error responses while preserving the wrapped cause for errors.Is.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the dotted operation.reason code.
func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}
