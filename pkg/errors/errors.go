package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies control-plane failures.
type ErrorCode string

const (
	ErrCodeValidation  ErrorCode = "VALIDATION_ERROR"
	ErrCodeResolution  ErrorCode = "RESOLUTION_ERROR"
	ErrCodeAuth        ErrorCode = "AUTH_ERROR"
	ErrCodeProcess     ErrorCode = "PROCESS_ERROR"
	ErrCodePersistence ErrorCode = "PERSISTENCE_ERROR"
	ErrCodeConflict    ErrorCode = "CONFLICT"
	ErrCodeInternal    ErrorCode = "INTERNAL_ERROR"
)

// AppError is an error with a code, an operator-facing message and
// optional structured context for logging.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with application error
func WrapError(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
		Context: make(map[string]interface{}),
	}
}

// NewValidationError reports a malformed or out-of-range config field.
func NewValidationError(field, message string) *AppError {
	return NewAppError(ErrCodeValidation, message).WithContext("field", field)
}

// NewResolutionError reports a remote address that failed name lookup.
func NewResolutionError(host string, cause error) *AppError {
	return WrapError(cause, ErrCodeResolution, "failed to resolve the remote address").
		WithContext("field", "srtla_addr").
		WithContext("host", host)
}

func NewAuthError(message string) *AppError {
	return NewAppError(ErrCodeAuth, message)
}

func NewProcessError(message string, cause error) *AppError {
	return WrapError(cause, ErrCodeProcess, message)
}

func NewPersistenceError(document string, cause error) *AppError {
	return WrapError(cause, ErrCodePersistence, "failed to save "+document).
		WithContext("document", document)
}

func NewConflictError(message string) *AppError {
	return NewAppError(ErrCodeConflict, message)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrCodeInternal, message)
}

// GetAppError extracts AppError from error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code ErrorCode) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Code == code
}

// IsValidation is true for validation failures, including address
// resolution failures which are reported as a validation variant.
func IsValidation(err error) bool {
	return HasCode(err, ErrCodeValidation) || HasCode(err, ErrCodeResolution)
}

func IsPersistence(err error) bool {
	return HasCode(err, ErrCodePersistence)
}

// OperatorMessage returns the text shown to the operator for err. Causes
// are left out; they go to the log.
func OperatorMessage(err error) string {
	if appErr := GetAppError(err); appErr != nil {
		return appErr.Message
	}
	return err.Error()
}
