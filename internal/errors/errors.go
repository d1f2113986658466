// Package errors provides custom error types for the Tally API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import (
	stderrors "errors"
	"net/http"
)

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// IsServerError reports whether the error must be rendered as a generic
// internal error to the client.
func (e *AppError) IsServerError() bool { return e.StatusCode >= http.StatusInternalServerError }

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// HasCode reports whether err is an *AppError carrying the sentinel's code.
func HasCode(err error, sentinel *AppError) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Code == sentinel.Code
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
	ErrForbidden          = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound   = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
)

// Category errors.
var (
	ErrCategoryNotFound  = &AppError{Code: "CATEGORY_NOT_FOUND", Message: "Category not found", StatusCode: http.StatusNotFound}
	ErrDuplicateCategory = &AppError{Code: "DUPLICATE_CATEGORY", Message: "A category with this name and type already exists", StatusCode: http.StatusConflict}
)

// Entry and ledger errors.
var (
	ErrEntryNotFound     = &AppError{Code: "ENTRY_NOT_FOUND", Message: "Entry not found", StatusCode: http.StatusNotFound}
	ErrInvalidEntryType  = &AppError{Code: "INVALID_ENTRY_TYPE", Message: "Entry type must be income or expense", StatusCode: http.StatusBadRequest}
	ErrUnknownCategory   = &AppError{Code: "UNKNOWN_CATEGORY", Message: "Category does not exist for this type", StatusCode: http.StatusUnprocessableEntity}
	ErrDateRangeTooLarge = &AppError{Code: "DATE_RANGE_TOO_LARGE", Message: "The selected date range is too big", StatusCode: http.StatusBadRequest}
	ErrStorageConflict   = &AppError{Code: "STORAGE_CONFLICT", Message: "The request conflicted with a concurrent update, please retry", StatusCode: http.StatusConflict}

	// ErrInvariantViolation is rendered to clients as ErrInternalServer.
	ErrInvariantViolation = &AppError{Code: "INVARIANT_VIOLATION", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)
