// Package errors defines the application error contract shared by the
// usecase layer and the HTTP boundary. Every failure a handler can
// surface is one of the predefined AppError kinds below; the HTTP error
// handler is the sole translator from kind to status code.
package errors

import (
	"net/http"

	"athfed/internal/errors"
)

// AppError defines the interface for application-specific errors.
type AppError interface {
	error
	HTTPCode() int     // HTTP status code
	ErrorCode() string // Business error code
	Message() string   // User-friendly error message
	Details() string   // Detailed error information (optional)
}

// BaseError is a basic error structure that implements the AppError interface.
type BaseError struct {
	httpCode  int
	errorCode string
	message   string
	details   string
}

// NewBaseError creates a new base error.
func NewBaseError(httpCode int, errorCode, message, details string) *BaseError {
	return &BaseError{
		httpCode:  httpCode,
		errorCode: errorCode,
		message:   message,
		details:   details,
	}
}

// Error implements the error interface.
func (e *BaseError) Error() string {
	return e.message
}

// WrapMessage wraps the error with additional context message.
func (e *BaseError) WrapMessage(message string) error {
	return errors.Wrap(e, message)
}

// HTTPCode returns the HTTP status code.
func (e *BaseError) HTTPCode() int {
	return e.httpCode
}

// ErrorCode returns the business error code.
func (e *BaseError) ErrorCode() string {
	return e.errorCode
}

// Message returns the user-friendly error message.
func (e *BaseError) Message() string {
	return e.message
}

// Details returns detailed error information.
func (e *BaseError) Details() string {
	return e.details
}

// WithDetails returns a copy of the error carrying detailed information.
func (e *BaseError) WithDetails(details string) *BaseError {
	return &BaseError{
		httpCode:  e.httpCode,
		errorCode: e.errorCode,
		message:   e.message,
		details:   details,
	}
}

// Predefined error kinds. Messages are stable strings; diagnostic detail
// is logged server-side with the request id and never returned.
var (
	// ErrValidation covers malformed or incomplete input.
	ErrValidation = NewBaseError(
		http.StatusBadRequest,
		"VALIDATION",
		"Invalid input",
		"",
	)

	// ErrUnauthorized covers missing or invalid access tokens.
	ErrUnauthorized = NewBaseError(
		http.StatusUnauthorized,
		"UNAUTHORIZED",
		"Authentication required",
		"",
	)

	// ErrTokenExpired is a distinct 401 reason so clients know to refresh.
	ErrTokenExpired = NewBaseError(
		http.StatusUnauthorized,
		"EXPIRED",
		"Token has expired",
		"",
	)

	// ErrForbidden covers role mismatches on protected routes.
	ErrForbidden = NewBaseError(
		http.StatusForbidden,
		"FORBIDDEN",
		"Insufficient permissions",
		"",
	)

	// ErrInvalidCredentials covers login failures. Handlers must not reveal
	// whether the email or the password was wrong.
	ErrInvalidCredentials = NewBaseError(
		http.StatusUnauthorized,
		"INVALID_CREDENTIALS",
		"Invalid email or password",
		"",
	)

	// ErrInactive covers identities that exist but are deactivated.
	ErrInactive = NewBaseError(
		http.StatusForbidden,
		"INACTIVE",
		"Account is deactivated",
		"",
	)

	// ErrConflictEmail covers registration collisions.
	ErrConflictEmail = NewBaseError(
		http.StatusConflict,
		"CONFLICT_EMAIL",
		"Email is already registered",
		"",
	)

	// ErrAlreadyVerified covers verification requests for verified emails.
	ErrAlreadyVerified = NewBaseError(
		http.StatusConflict,
		"ALREADY_VERIFIED",
		"Email is already verified",
		"",
	)

	// ErrTwoFactorAlreadyEnabled covers duplicate 2FA enable requests.
	ErrTwoFactorAlreadyEnabled = NewBaseError(
		http.StatusConflict,
		"ALREADY_ENABLED",
		"Two-factor authentication is already enabled",
		"",
	)

	// ErrInvalidCode covers wrong TOTP, backup and challenge codes.
	ErrInvalidCode = NewBaseError(
		http.StatusUnauthorized,
		"INVALID_CODE",
		"Invalid code",
		"",
	)

	// ErrCodeExpired covers expired challenge codes and pending-2FA tokens.
	ErrCodeExpired = NewBaseError(
		http.StatusUnauthorized,
		"EXPIRED",
		"Code has expired",
		"",
	)

	// ErrLockedOut covers challenges destroyed by the attempt cap.
	ErrLockedOut = NewBaseError(
		http.StatusTooManyRequests,
		"LOCKED_OUT",
		"Too many attempts, request a new code",
		"",
	)

	// ErrRefreshInvalid covers unknown, revoked or expired refresh tokens.
	ErrRefreshInvalid = NewBaseError(
		http.StatusUnauthorized,
		"REFRESH_INVALID",
		"Invalid refresh token",
		"",
	)

	// ErrRefreshReplayed covers rotation of an already-rotated refresh
	// token. The whole session family is revoked when this is raised.
	ErrRefreshReplayed = NewBaseError(
		http.StatusUnauthorized,
		"REFRESH_REPLAYED",
		"Refresh token was already used",
		"",
	)

	// ErrRateLimited covers exhausted endpoint budgets.
	ErrRateLimited = NewBaseError(
		http.StatusTooManyRequests,
		"RATE_LIMITED",
		"Too many requests",
		"",
	)

	// ErrTransportUnavailable covers downstream outages (database, key-value, email).
	ErrTransportUnavailable = NewBaseError(
		http.StatusServiceUnavailable,
		"TRANSPORT_UNAVAILABLE",
		"Service temporarily unavailable",
		"",
	)

	// ErrWeakPassword covers password policy failures.
	ErrWeakPassword = NewBaseError(
		http.StatusBadRequest,
		"WEAK_PASSWORD",
		"Password does not meet security requirements",
		"",
	)

	// ErrNotFound covers missing resources outside the credential paths.
	ErrNotFound = NewBaseError(
		http.StatusNotFound,
		"NOT_FOUND",
		"Resource not found",
		"",
	)
)
