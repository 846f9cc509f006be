// Package contextutils holds the structured error type shared by every
// campusfix layer, plus small validation helpers.
package contextutils

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is the stable, client-visible identifier of a failure
type ErrorCode string

// Error codes returned in API bodies
const (
	ErrorCodeDatabaseConnection ErrorCode = "DATABASE_CONNECTION_ERROR"
	ErrorCodeDatabaseQuery      ErrorCode = "DATABASE_QUERY_ERROR"
	ErrorCodeRecordNotFound     ErrorCode = "RECORD_NOT_FOUND"

	ErrorCodeInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrorCodeMissingRequired  ErrorCode = "MISSING_REQUIRED_FIELD"
	ErrorCodeInvalidFormat    ErrorCode = "INVALID_FORMAT"
	ErrorCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	ErrorCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrorCodeForbidden    ErrorCode = "FORBIDDEN"

	ErrorCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrorCodeRateLimit          ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrorCodeInternalError      ErrorCode = "INTERNAL_SERVER_ERROR"
	// ErrorCodeStorageUnavailable means the media sink rejected or could not receive an object
	ErrorCodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"

	// ErrorCodeOAuthCodeExpired covers both expired and already redeemed codes or tokens
	ErrorCodeOAuthCodeExpired   ErrorCode = "OAUTH_CODE_EXPIRED"
	ErrorCodeOAuthStateMismatch ErrorCode = "OAUTH_STATE_MISMATCH"
	ErrorCodeOAuthProviderError ErrorCode = "OAUTH_PROVIDER_ERROR"
)

// SeverityLevel decides how loudly an error is logged and whether details reach the client
type SeverityLevel string

// Severity levels
const (
	SeverityInfo  SeverityLevel = "info"
	SeverityWarn  SeverityLevel = "warn"
	SeverityError SeverityLevel = "error"
	SeverityFatal SeverityLevel = "fatal"
)

// codeSpec is the default shape of each code's sentinel
type codeSpec struct {
	severity  SeverityLevel
	message   string
	retryable bool
}

var codeSpecs = map[ErrorCode]codeSpec{
	ErrorCodeDatabaseConnection: {SeverityError, "Database connection failed", true},
	ErrorCodeDatabaseQuery:      {SeverityError, "Database query failed", false},
	ErrorCodeRecordNotFound:     {SeverityInfo, "Record not found", false},
	ErrorCodeInvalidInput:       {SeverityWarn, "Invalid input", false},
	ErrorCodeMissingRequired:    {SeverityWarn, "Missing required field", false},
	ErrorCodeInvalidFormat:      {SeverityWarn, "Invalid format", false},
	ErrorCodeValidationFailed:   {SeverityWarn, "Validation failed", false},
	ErrorCodeUnauthorized:       {SeverityWarn, "Authentication required", false},
	ErrorCodeForbidden:          {SeverityWarn, "Admin access required", false},
	ErrorCodeServiceUnavailable: {SeverityError, "Service unavailable", true},
	ErrorCodeRateLimit:          {SeverityWarn, "Rate limit exceeded", true},
	ErrorCodeInternalError:      {SeverityError, "Internal server error", false},
	ErrorCodeStorageUnavailable: {SeverityError, "Media storage unavailable", true},
	ErrorCodeOAuthCodeExpired:   {SeverityWarn, "OAuth code expired", false},
	ErrorCodeOAuthStateMismatch: {SeverityWarn, "OAuth state mismatch", false},
	ErrorCodeOAuthProviderError: {SeverityError, "OAuth provider error", false},
}

func sentinel(code ErrorCode) *AppError {
	spec := codeSpecs[code]
	return &AppError{Code: code, Severity: spec.severity, Message: spec.message}
}

// Sentinels, matched with errors.Is by code
var (
	ErrDatabaseConnection = sentinel(ErrorCodeDatabaseConnection)
	ErrDatabaseQuery      = sentinel(ErrorCodeDatabaseQuery)
	ErrRecordNotFound     = sentinel(ErrorCodeRecordNotFound)

	ErrInvalidInput    = sentinel(ErrorCodeInvalidInput)
	ErrMissingRequired = sentinel(ErrorCodeMissingRequired)
	ErrInvalidFormat   = sentinel(ErrorCodeInvalidFormat)

	ErrUnauthorized = sentinel(ErrorCodeUnauthorized)
	ErrForbidden    = sentinel(ErrorCodeForbidden)

	ErrServiceUnavailable = sentinel(ErrorCodeServiceUnavailable)
	ErrRateLimit          = sentinel(ErrorCodeRateLimit)
	ErrInternalError      = sentinel(ErrorCodeInternalError)
	ErrStorageUnavailable = sentinel(ErrorCodeStorageUnavailable)

	ErrOAuthCodeExpired   = sentinel(ErrorCodeOAuthCodeExpired)
	ErrOAuthStateMismatch = sentinel(ErrorCodeOAuthStateMismatch)
	ErrOAuthProviderError = sentinel(ErrorCodeOAuthProviderError)
)

// AppError is a coded error carrying a client-facing message and internal details
type AppError struct {
	Code     ErrorCode
	Severity SeverityLevel
	Message  string
	Details  string
	Cause    error
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError with the same code
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && e.Code == t.Code
}

// NewAppError creates an AppError without a cause
func NewAppError(code ErrorCode, severity SeverityLevel, message, details string) *AppError {
	return &AppError{Code: code, Severity: severity, Message: message, Details: details}
}

// NewAppErrorWithCause creates an AppError wrapping cause
func NewAppErrorWithCause(code ErrorCode, severity SeverityLevel, message, details string, cause error) *AppError {
	return &AppError{Code: code, Severity: severity, Message: message, Details: details, Cause: cause}
}

// NewValidationError builds a field-level validation error.
func NewValidationError(field, reason string) *AppError {
	return &AppError{
		Code:     ErrorCodeValidationFailed,
		Severity: SeverityWarn,
		Message:  fmt.Sprintf("Invalid %s", field),
		Details:  reason,
	}
}

// wrap takes code and severity from the nearest AppError in err's chain,
// or marks the result as an internal error
func wrap(err error, message string, cause error) *AppError {
	wrapped := &AppError{
		Code:     ErrorCodeInternalError,
		Severity: SeverityError,
		Message:  message,
		Details:  err.Error(),
		Cause:    cause,
	}
	if appErr, ok := AsAppError(err); ok {
		wrapped.Code = appErr.Code
		wrapped.Severity = appErr.Severity
	}
	return wrapped
}

// WrapError adds context to err. A nil err stays nil.
func WrapError(err error, context string) error {
	if err == nil {
		return nil
	}
	return wrap(err, context, err)
}

// WrapErrorf adds formatted context to err. When format contains %w the
// formatted error becomes the cause, so its operands stay reachable.
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	if strings.Contains(format, "%w") {
		formatted := fmt.Errorf(format, args...)
		return wrap(err, formatted.Error(), formatted)
	}
	return wrap(err, fmt.Sprintf(format, args...), err)
}

// ErrorWithContextf creates an internal error with a formatted message
func ErrorWithContextf(format string, args ...interface{}) error {
	return &AppError{
		Code:     ErrorCodeInternalError,
		Severity: SeverityError,
		Message:  fmt.Sprintf(format, args...),
	}
}

// AsAppError finds the first AppError in err's chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetErrorCode returns the code of the first AppError in err's chain, or INTERNAL_SERVER_ERROR
func GetErrorCode(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrorCodeInternalError
}

// IsRetryable reports whether a client may retry the failed request unchanged
func IsRetryable(err error) bool {
	appErr, ok := AsAppError(err)
	if !ok || appErr.Severity == SeverityFatal {
		return false
	}
	return codeSpecs[appErr.Code].retryable
}

// ToJSON renders the error for an API response.
// Error and fatal severities never expose details to clients.
func (e *AppError) ToJSON() map[string]interface{} {
	result := map[string]interface{}{
		"code":      string(e.Code),
		"message":   e.Message,
		"severity":  string(e.Severity),
		"error":     e.Message,
		"retryable": IsRetryable(e),
	}
	if e.Details != "" && e.Severity != SeverityError && e.Severity != SeverityFatal {
		result["details"] = e.Details
	}
	return result
}
