package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Status    int    `json:"status"`
	Retryable bool   `json:"-"`
	Err       error  `json:"-"`
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
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors covering the identity core's failure taxonomy.
// INVALID_CREDENTIALS deliberately covers both unknown email and wrong
// password so callers cannot enumerate accounts.
var (
	ErrTenantNotFound      = New("TENANT_NOT_FOUND", http.StatusNotFound, "tenant not found")
	ErrTenantSuspended     = New("TENANT_SUSPENDED", http.StatusForbidden, "tenant is not active")
	ErrInvalidCredentials  = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrAccountInactive     = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrAccountUnverified   = New("ACCOUNT_UNVERIFIED", http.StatusForbidden, "account is not verified")
	ErrTokenExpired        = New("TOKEN_EXPIRED", http.StatusUnauthorized, "token has expired")
	ErrTokenMalformed      = New("TOKEN_MALFORMED", http.StatusUnauthorized, "token is malformed")
	ErrTokenTenantMismatch = New("TOKEN_TENANT_MISMATCH", http.StatusForbidden, "token was issued for a different tenant")
	ErrRefreshTokenRevoked = New("REFRESH_TOKEN_REVOKED", http.StatusUnauthorized, "refresh token is expired or revoked")
	ErrInsufficientRole    = New("INSUFFICIENT_ROLE", http.StatusForbidden, "insufficient role for this operation")
	ErrDuplicateEmail      = New("DUPLICATE_EMAIL", http.StatusConflict, "email is already registered")
	ErrValidation          = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrUnauthorized        = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrForbidden           = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrNotFound            = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrInternal            = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")

	// ErrStoreUnavailable is the only retryable entry in the taxonomy so
	// clients can distinguish "try again" from "you are not allowed".
	ErrStoreUnavailable = &Error{
		Code:      "STORE_UNAVAILABLE",
		Status:    http.StatusServiceUnavailable,
		Message:   "backing store is unavailable",
		Retryable: true,
	}
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
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
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

// Is reports whether err carries the same error code as target.
func Is(err error, target *Error) bool {
	if err == nil || target == nil {
		return false
	}
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == target.Code
}
