package types

import "fmt"

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

const (
	// Configuration
	ErrCodeConfigMissing ErrorCode = "config_missing_bucket"
	ErrCodeConfigInvalid ErrorCode = "config_invalid"

	// Not Found
	ErrCodeNotFoundUser   ErrorCode = "not_found_user"
	ErrCodeNotFoundCourse ErrorCode = "not_found_course"
	ErrCodeNotFoundGroup  ErrorCode = "not_found_group"
	ErrCodeNotFoundModule ErrorCode = "not_found_module"

	// Resolution / dispatch
	ErrCodeResolutionFailed ErrorCode = "resolution_failed"
	ErrCodeTransportFailed  ErrorCode = "transport_failed"

	// Internal/Upstream
	ErrCodeInternalDB         ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
)

// AppError is the standard application error type. Repository and service
// errors are expressed as AppError so callers can branch on Code and the
// error chain stays intact for errors.Is/errors.As.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
