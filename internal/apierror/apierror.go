// Package apierror maps domain failures to HTTP statuses and client-safe messages.
package apierror

import (
	"errors"
	"net/http"

	"accounts-api/internal/dbexec"
	"accounts-api/internal/planner"
)

// Error is a failure with the status and message a client should see.
type Error struct {
	Status  int
	Message string
	cause   error
}

// New returns an Error with no underlying cause.
func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// Wrap returns an Error that keeps cause for logging.
func Wrap(status int, message string, cause error) *Error {
	return &Error{Status: status, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// BadRequest is a 400 with message.
func BadRequest(message string) *Error { return New(http.StatusBadRequest, message) }

// Unauthorized is a 401 with message.
func Unauthorized(message string) *Error { return New(http.StatusUnauthorized, message) }

// Forbidden is a 403 with message.
func Forbidden(message string) *Error { return New(http.StatusForbidden, message) }

// NotFound is a 404 with message.
func NotFound(message string) *Error { return New(http.StatusNotFound, message) }

// From classifies err. Errors that are already *Error pass through; anything
// unrecognised becomes a generic 500 that keeps err as its cause.
func From(err error) *Error {
	var apiErr *Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, planner.ErrInvalidPageRequest):
		return Wrap(http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, dbexec.ErrNotFound):
		return Wrap(http.StatusNotFound, "Record not found", err)
	case errors.Is(err, dbexec.ErrDuplicate):
		return Wrap(http.StatusConflict, "Record already exists", err)
	default:
		return Wrap(http.StatusInternalServerError, "Internal server error", err)
	}
}

// Internal reports whether the error is a server-side failure.
func (e *Error) Internal() bool {
	return e.Status >= http.StatusInternalServerError
}
