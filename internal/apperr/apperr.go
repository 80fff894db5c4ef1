// Package apperr carries the error taxonomy shared by the donation service and
// the HTTP layer. The service raises coded errors at the point of detection;
// only the transport translates codes into status codes.
package apperr

import (
	"errors"
	"fmt"
)

// Code classifies an error.
type Code string

const (
	// CodeInvalidInput is a malformed identifier or parameter (bad request).
	CodeInvalidInput Code = "invalid_input"

	// CodeUnprocessable is a well-formed request missing a required field.
	CodeUnprocessable Code = "unprocessable"

	// CodeUnauthenticated means the caller identity could not be resolved.
	CodeUnauthenticated Code = "unauthenticated"

	// CodeForbidden means the caller is known but may not perform the action.
	CodeForbidden Code = "forbidden"

	// CodeNotFound means the referenced record does not exist.
	CodeNotFound Code = "not_found"

	// CodeConflict means the action violates the current lifecycle state.
	CodeConflict Code = "conflict"

	// CodeStorage is an unrecoverable persistence failure.
	CodeStorage Code = "storage"
)

// Error is a coded application error.
type Error struct {
	Code    Code
	Message string
	Err     error
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

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the outermost coded error in the chain, or
// CodeStorage for uncoded errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeStorage
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// IsValidation reports whether err is either class of validation error.
func IsValidation(err error) bool {
	return HasCode(err, CodeInvalidInput) || HasCode(err, CodeUnprocessable)
}

// Message returns the user-facing message of a coded error, falling back to
// a generic text so storage details are not leaked.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code != CodeStorage {
		return e.Message
	}
	return "internal error"
}
