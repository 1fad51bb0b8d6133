// Package apperror defines the error vocabulary shared by every service:
// a small set of stable kinds plus a human-readable message. Handlers map
// kinds to HTTP status codes in one place; internal detail is only exposed
// outside production.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the stable classification of an application error.
type Kind string

const (
	KindNotFound              Kind = "NOT_FOUND"
	KindAccessDenied          Kind = "ACCESS_DENIED"
	KindInvalidArgument       Kind = "INVALID_ARGUMENT"
	KindPreconditionFailed    Kind = "PRECONDITION_FAILED"
	KindConflict              Kind = "CONFLICT"
	KindDependencyUnavailable Kind = "DEPENDENCY_UNAVAILABLE"
)

// Error carries a kind, a user-facing message and an optional wrapped cause.
type Error struct {
	Kind    Kind   `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the kind to its HTTP status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindAccessDenied:
		return http.StatusForbidden
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindPreconditionFailed:
		return http.StatusPreconditionFailed
	case KindConflict:
		return http.StatusConflict
	case KindDependencyUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

func AccessDenied(message string) *Error {
	return &Error{Kind: KindAccessDenied, Message: message}
}

func InvalidArgument(message string) *Error {
	return &Error{Kind: KindInvalidArgument, Message: message}
}

func PreconditionFailed(message string) *Error {
	return &Error{Kind: KindPreconditionFailed, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func DependencyUnavailable(message string, err error) *Error {
	return &Error{Kind: KindDependencyUnavailable, Message: message, Err: err}
}

// Wrap attaches a cause to an existing kinded error, or classifies an
// unknown error as a dependency failure.
func Wrap(err error, message string) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return &Error{Kind: ae.Kind, Message: message + ": " + ae.Message, Err: ae.Err}
	}
	return &Error{Kind: KindDependencyUnavailable, Message: message, Err: err}
}

// KindOf returns the kind of err, or "" when err carries no kind.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// Is reports whether err is an application error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
