package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"runtime/debug"
)

// Error codes shared across handlers
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeAuthRequired = "AUTH_REQUIRED"
	CodeInternal     = "INTERNAL_ERROR"
	CodeRateLimited  = "RATE_LIMIT_EXCEEDED"
	CodeNotFound     = "NOT_FOUND"
)

// AppError represents an application error with HTTP status code and error code
type AppError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	Stack      string `json:"-"`
	cause      error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is / errors.As
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// WithCause records the underlying error. It is logged, never sent to the client.
func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

// NewError creates a new application error
func NewError(statusCode int, code string, message string) *AppError {
	appErr := &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
	}
	if statusCode >= http.StatusInternalServerError {
		appErr.Stack = string(debug.Stack())
	}
	return appErr
}

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(code string, message string) *AppError {
	return NewError(http.StatusBadRequest, code, message)
}

// NewValidationError creates a 400 error carrying per-field details
func NewValidationError(message string, details any) *AppError {
	return NewError(http.StatusBadRequest, CodeValidation, message).WithDetails(details)
}

// NewUnauthorizedError creates a 401 Unauthorized error
func NewUnauthorizedError(code string, message string) *AppError {
	return NewError(http.StatusUnauthorized, code, message)
}

// NewForbiddenError creates a 403 Forbidden error
func NewForbiddenError(code string, message string) *AppError {
	return NewError(http.StatusForbidden, code, message)
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(code string, message string) *AppError {
	return NewError(http.StatusNotFound, code, message)
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(code string, message string) *AppError {
	return NewError(http.StatusConflict, code, message)
}

// NewTooManyRequestsError creates a 429 Too Many Requests error
func NewTooManyRequestsError(code string, message string) *AppError {
	return NewError(http.StatusTooManyRequests, code, message)
}

// NewInternalServerError creates a 500 Internal Server Error
func NewInternalServerError(code string, message string) *AppError {
	return NewError(http.StatusInternalServerError, code, message)
}

// NewBadGatewayError creates a 502 error for failed upstream calls
func NewBadGatewayError(code string, message string) *AppError {
	return NewError(http.StatusBadGateway, code, message)
}

// NewServiceUnavailableError creates a 503 Service Unavailable error
func NewServiceUnavailableError(code string, message string) *AppError {
	return NewError(http.StatusServiceUnavailable, code, message)
}

// FromError converts a standard error to an AppError.
// AppErrors anywhere in the chain are returned as-is; anything else becomes
// a generic internal error that keeps the original as its cause.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	return NewInternalServerError(CodeInternal, "An unexpected error occurred").WithCause(err)
}

// GetStatusCode extracts the HTTP status code from an AppError, returns 500 if not an AppError
func GetStatusCode(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// GetErrorCode extracts the error code from an AppError, returns "UNKNOWN_ERROR" if not an AppError
func GetErrorCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN_ERROR"
}

// Is checks if err is an AppError with the same code as target
func Is(err error, target *AppError) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.Code == target.Code
}
