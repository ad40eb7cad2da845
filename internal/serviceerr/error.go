// Package serviceerr carries the error taxonomy shared by every store.
package serviceerr

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers map them to HTTP statuses with errors.Is.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNotFound        = errors.New("not found")
	ErrUpstreamAuth    = errors.New("identity provider rejected exchange")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInternal        = errors.New("internal failure")
)

// Error is a coded failure produced at a service boundary.
type Error struct {
	code  string
	kind  error
	cause error
}

// New builds an Error whose code is "<operation>.<reason>".
func New(operation, reason string, kind, cause error) *Error {
	if kind == nil {
		kind = ErrInternal
	}
	return &Error{
		code:  fmt.Sprintf("%s.%s", operation, reason),
		kind:  kind,
		cause: cause,
	}
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.cause)
}

// Code returns the stable machine-readable code.
func (e *Error) Code() string {
	return e.code
}

// Kind returns the taxonomy sentinel.
func (e *Error) Kind() error {
	return e.kind
}

func (e *Error) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.cause}
}

// CodeOf extracts the service code from err, or "" when err carries none.
func CodeOf(err error) string {
	var serviceErr *Error
	if errors.As(err, &serviceErr) {
		return serviceErr.code
	}
	return ""
}
