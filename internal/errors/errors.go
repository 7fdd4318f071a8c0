package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// DomainError represents a domain-specific error with a code and message
type DomainError struct {
	Code       string
	Message    string
	RetryAfter time.Duration // set for throttling errors, zero otherwise
	Err        error         // underlying error for wrapping
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is and errors.As
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches by code so wrapped copies compare equal to the predefined vars
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with domain error context
func WrapError(domainErr *DomainError, err error) *DomainError {
	return &DomainError{
		Code:    domainErr.Code,
		Message: domainErr.Message,
		Err:     err,
	}
}

// WithRetryAfter returns a copy of the domain error carrying a retry hint
func WithRetryAfter(domainErr *DomainError, retryAfter time.Duration) *DomainError {
	return &DomainError{
		Code:       domainErr.Code,
		Message:    domainErr.Message,
		RetryAfter: retryAfter,
	}
}

// Predefined domain errors
var (
	// Credential errors. The message is deliberately generic so callers
	// cannot distinguish unknown identity from wrong password.
	ErrInvalidCredentials = NewDomainError("INVALID_CREDENTIALS", "incorrect email or password")
	ErrUserNotFound       = NewDomainError("USER_NOT_FOUND", "user not found")
	ErrEmailExists        = NewDomainError("EMAIL_EXISTS", "email already exists")
	ErrUserInactive       = NewDomainError("USER_INACTIVE", "account is deactivated")

	// Token errors, one per decode-time failure mode
	ErrUnauthorized              = NewDomainError("UNAUTHORIZED", "unauthorized")
	ErrTokenExpired              = NewDomainError("TOKEN_EXPIRED", "token has expired")
	ErrTokenMalformed            = NewDomainError("TOKEN_MALFORMED", "token is malformed or has an invalid signature")
	ErrTokenRevoked              = NewDomainError("TOKEN_REVOKED", "token has been revoked")
	ErrTokenWrongType            = NewDomainError("TOKEN_WRONG_TYPE", "token type is not valid for this operation")
	ErrTokenMissingClaim         = NewDomainError("TOKEN_MISSING_CLAIM", "token is missing a required claim")
	ErrRevocationStoreUnavailable = NewDomainError("REVOCATION_STORE_UNAVAILABLE", "token has been revoked")

	// Two-factor errors
	ErrTwoFactorRequired    = NewDomainError("TWO_FACTOR_REQUIRED", "two-factor verification required")
	ErrInvalidTwoFactorCode = NewDomainError("INVALID_TWO_FACTOR_CODE", "invalid verification code")
	ErrTwoFactorNotSetUp    = NewDomainError("TWO_FACTOR_NOT_SET_UP", "two-factor authentication is not set up")
	ErrTwoFactorEnabled     = NewDomainError("TWO_FACTOR_ENABLED", "two-factor authentication is already enabled")

	// Throttling errors
	ErrRateLimited   = NewDomainError("RATE_LIMITED", "too many requests")
	ErrAccountLocked = NewDomainError("ACCOUNT_LOCKED", "too many failed attempts, account temporarily locked")

	// Validation errors
	ErrInvalidInput      = NewDomainError("INVALID_INPUT", "invalid input")
	ErrPasswordMismatch  = NewDomainError("PASSWORD_MISMATCH", "new password and confirmation do not match")
	ErrIncorrectPassword = NewDomainError("INCORRECT_PASSWORD", "current password is incorrect")

	// System errors
	ErrInternal           = NewDomainError("INTERNAL_ERROR", "internal server error")
	ErrServiceUnavailable = NewDomainError("SERVICE_UNAVAILABLE", "service unavailable")
)

// IsDomainError checks if an error is a domain error
func IsDomainError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr)
}

// GetDomainError extracts the domain error from an error
func GetDomainError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// ToHTTPStatus maps domain errors to HTTP status codes
// This should only be used in the handler/presentation layer
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErrorToHTTPStatus(domainErr)
	}

	return http.StatusInternalServerError
}

func domainErrorToHTTPStatus(err *DomainError) int {
	switch err.Code {
	// 400 Bad Request
	case "INVALID_INPUT", "PASSWORD_MISMATCH", "TWO_FACTOR_NOT_SET_UP", "TWO_FACTOR_ENABLED":
		return http.StatusBadRequest

	// 401 Unauthorized. The unavailable revocation store maps here too:
	// when the blacklist cannot be consulted every token counts as revoked.
	case "UNAUTHORIZED", "INVALID_CREDENTIALS", "TOKEN_EXPIRED", "TOKEN_MALFORMED",
		"TOKEN_REVOKED", "TOKEN_WRONG_TYPE", "TOKEN_MISSING_CLAIM", "INCORRECT_PASSWORD",
		"REVOCATION_STORE_UNAVAILABLE", "INVALID_TWO_FACTOR_CODE":
		return http.StatusUnauthorized

	// 403 Forbidden
	case "TWO_FACTOR_REQUIRED", "USER_INACTIVE":
		return http.StatusForbidden

	// 404 Not Found
	case "USER_NOT_FOUND":
		return http.StatusNotFound

	// 409 Conflict
	case "EMAIL_EXISTS":
		return http.StatusConflict

	// 429 Too Many Requests
	case "RATE_LIMITED", "ACCOUNT_LOCKED":
		return http.StatusTooManyRequests

	// 503 Service Unavailable
	case "SERVICE_UNAVAILABLE":
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetErrorMessage safely extracts error message
func GetErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}

	return err.Error()
}
