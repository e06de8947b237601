// Package shared holds the error kinds and event contracts that the practice
// domain and its adapters agree on. It imports nothing outside the standard
// library.
package shared

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidFormat      = errors.New("invalid format")
	ErrStorageRead        = errors.New("storage read failed")
	ErrStorageWrite       = errors.New("storage write failed")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// DomainError attaches where and what to a failure. It matches both its
// Kind and its cause.
type DomainError struct {
	Domain  string
	Op      string
	Kind    error
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
	}
	return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
}

// Unwrap exposes the kind and the cause to errors.Is and errors.As.
func (e *DomainError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewDomainError creates a sentinel-style error with no cause.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError creates a DomainError around err.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

var (
	ErrUnknownSessionType = NewDomainError("practice", "Validate", ErrInvalidInput, "unknown session type")

	// ErrBlobNotFound means the key was never written. Backends return it
	// instead of their own miss errors.
	ErrBlobNotFound = NewDomainError("storage", "Load", ErrNotFound, "blob not found")

	ErrStoreClosed = NewDomainError("storage", "Check", ErrServiceUnavailable, "store is closed")
)

// IsStorage reports whether err came from loading or saving a blob.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorageRead) || errors.Is(err, ErrStorageWrite)
}
