// Package dErrors provides code-based domain errors shared by services and
// handlers. Stores return sentinel errors (pkg/platform/sentinel); services
// translate them into domain errors so transport layers can map codes to
// HTTP statuses without inspecting infrastructure failures.
package dErrors

import (
	"errors"
	"fmt"
)

// Code identifies the class of a domain error. The string values double as
// wire-level error codes in JSON responses.
type Code string

const (
	CodeValidation         Code = "validation_error"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInvalidInput       Code = "invalid_input"
	CodeBadRequest         Code = "bad_request"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal_error"
)

// Error is a domain error with a classification code, a human-readable
// message, an optional wrapped cause, and optional detail lines (used by
// validation to report every offending item, never just the first).
type Error struct {
	Code    Code
	Message string
	Details []string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is/errors.As chains.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// WithDetails returns a copy of the error carrying detail lines.
func (e *Error) WithDetails(details ...string) *Error {
	clone := *e
	clone.Details = append(append([]string(nil), e.Details...), details...)
	return &clone
}

// HasCode reports whether err (or anything it wraps) is a domain error with
// the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is reports whether err is a domain error of any code.
func Is(err error) bool {
	var de *Error
	return errors.As(err, &de)
}

// Load extracts the domain error from err, or nil if err carries none.
func Load(err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return nil
}
