package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code, errType string, status int, message string) *Error {
	return &Error{Code: code, Type: errType, Status: status, Message: message}
}

// Wrap attaches context to an existing error, inheriting code and status
// from the given template.
func Wrap(err error, template *Error, message string) *Error {
	if template == nil {
		template = ErrInternal
	}
	if message == "" {
		message = template.Message
	}
	return &Error{Code: template.Code, Type: template.Type, Status: template.Status, Message: message, Err: err}
}

// Error type labels surfaced in the error envelope.
const (
	TypeValidation   = "VALIDATION"
	TypeNotFound     = "NOT_FOUND"
	TypeConflict     = "CONFLICT"
	TypeUnauthorized = "UNAUTHORIZED"
	TypeForbidden    = "FORBIDDEN"
	TypeInternal     = "INTERNAL"
)

// Predefined errors for common scenarios.
var (
	ErrValidation         = New("VALIDATION_ERROR", TypeValidation, http.StatusBadRequest, "validation failed")
	ErrNotFound           = New("NOT_FOUND", TypeNotFound, http.StatusNotFound, "resource not found")
	ErrConflict           = New("CONFLICT", TypeConflict, http.StatusConflict, "conflict")
	ErrUnauthorized       = New("UNAUTHORIZED", TypeUnauthorized, http.StatusUnauthorized, "unauthorized")
	ErrForbidden          = New("FORBIDDEN", TypeForbidden, http.StatusForbidden, "forbidden")
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", TypeUnauthorized, http.StatusUnauthorized, "invalid access code")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", TypeForbidden, http.StatusForbidden, "account is inactive")
	ErrInternal           = New("INTERNAL_ERROR", TypeInternal, http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", TypeInternal, http.StatusInternalServerError, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
