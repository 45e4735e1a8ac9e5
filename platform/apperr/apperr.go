// Package apperr defines the typed errors domain code returns. The HTTP
// edge maps an error's Kind to a status code, so services never import
// net/http.
package apperr

import (
	"fmt"
	"net/http"
)

// Kind categorizes an error for HTTP mapping.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindValidation
	KindConflict
	KindForbidden
	KindUnauthorized
	KindInternal
)

// Error carries a Kind, a user-safe message, and optionally the failing
// operation and an underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Op      string
	Err     error
	Details any
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the cause for errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the Kind to a response status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// New creates an error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error that records an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithOp tags the error with the operation that produced it.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// NotFound creates a not found error.
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// Validation creates an invalid input error.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// Conflict creates an error for a clash with existing state.
func Conflict(message string) *Error {
	return New(KindConflict, message)
}

// Unauthorized creates an authentication failure error.
func Unauthorized(message string) *Error {
	return New(KindUnauthorized, message)
}

// Internal creates an unexpected internal error.
func Internal(message string) *Error {
	return New(KindInternal, message)
}
