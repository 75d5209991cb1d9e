// Package apperr defines the coded error type shared by the domain packages.
//
// Every failure the core reports is local to one operation: a Validation
// error means the request was rejected before any state changed, NotFound
// means a referenced record is absent and Conflict means a uniqueness rule
// was violated.
package apperr

import (
	"errors"
	"net/http"
)

// Code is a machine-readable error classification.
type Code string

const (
	CodeValidation   Code = "validation"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeUnauthorized Code = "unauthorized"
	CodeInternal     Code = "internal"
)

// Kind sentinels match any error carrying the same code.
var (
	ErrValidation   = &Error{Code: CodeValidation}
	ErrNotFound     = &Error{Code: CodeNotFound}
	ErrConflict     = &Error{Code: CodeConflict}
	ErrUnauthorized = &Error{Code: CodeUnauthorized}
)

// Error is the domain error type.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches by code when target is a kind sentinel (no message), and by
// code and message otherwise.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Message == "" {
		return e.Code == t.Code
	}
	return e.Code == t.Code && e.Message == t.Message
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Validation(message string) *Error {
	return New(CodeValidation, message)
}

func NotFound(message string) *Error {
	return New(CodeNotFound, message)
}

func Conflict(message string) *Error {
	return New(CodeConflict, message)
}

func Unauthorized(message string) *Error {
	return New(CodeUnauthorized, message)
}

// Wrap creates an error with the given code that wraps cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or
// CodeInternal when there is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HTTPStatus maps err to the status code a handler should answer with.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
