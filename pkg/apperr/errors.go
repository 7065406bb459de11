// Package apperr defines the error kinds shared by the screensim adapters and
// orchestrators. Adapters wrap low-level failures into one of the kinds below;
// the HTTP transport maps a kind to a status code exactly once.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrValidation marks a malformed or disallowed request.
	ErrValidation = errors.New("validation failed")

	// ErrUnsupportedMedia marks image bytes that cannot be decoded or have
	// no usable dimensions. It is a validation subkind.
	ErrUnsupportedMedia = errors.New("unsupported media")

	// ErrNotFound marks a referenced object or bucket that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDependencyUnavailable marks a failing or unreachable external
	// collaborator (object store, embedding provider, vector index).
	ErrDependencyUnavailable = errors.New("dependency unavailable")

	// ErrConfigurationMismatch marks an existing vector collection whose
	// parameters differ from the configured ones. It is fatal at startup.
	ErrConfigurationMismatch = errors.New("configuration mismatch")
)

// Error carries a kind, a human readable message and an optional cause.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// Wrap builds an *Error of the given kind.
func Wrap(kind error, msg string, cause error) error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// Validation is a shorthand for Wrap(ErrValidation, fmt.Sprintf(...), nil).
func Validation(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

// UnsupportedMedia wraps cause as an unsupported media error.
func UnsupportedMedia(msg string, cause error) error {
	return &Error{Kind: ErrUnsupportedMedia, Message: msg, Cause: cause}
}

// NotFound wraps cause as a not found error.
func NotFound(msg string, cause error) error {
	return &Error{Kind: ErrNotFound, Message: msg, Cause: cause}
}

// Dependency wraps cause as a dependency unavailable error.
func Dependency(msg string, cause error) error {
	return &Error{Kind: ErrDependencyUnavailable, Message: msg, Cause: cause}
}

// IsValidation reports whether err is a validation error, including the
// unsupported media subkind.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrUnsupportedMedia)
}

// HTTPStatus maps an error to the status code used by the HTTP transport.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDependencyUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to expose to callers. Causes are
// never included and unknown failures collapse into a generic message.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}
