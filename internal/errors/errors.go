package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message
func Newf(code, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an error with additional context. The code of a wrapped
// AppError is kept so callers can still classify the failure.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   err,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    code,
			Message: appErr.Message,
			Cause:   appErr.Cause,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetCode returns the error code of the outermost AppError in the chain,
// otherwise returns "UNKNOWN"
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// HasCode reports whether err carries the given code
func HasCode(err error, code string) bool {
	return err != nil && GetCode(err) == code
}

// Predefined error codes
const (
	CodeConfigInvalid      = "CONFIG_INVALID"
	CodeRunFailure         = "RUN_FAILURE"
	CodeInsufficientGrowth = "INSUFFICIENT_GROWTH"
	CodeNoRootFound        = "NO_ROOT_FOUND"
	CodeInvariantViolation = "INVARIANT_VIOLATION"
	CodeDatabaseError      = "DATABASE_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeInvalidInput       = "INVALID_INPUT"
)

// ConfigInvalid reports an unknown parameter name, an unreadable baseline
// file or an invalid application setting.
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

// RunFailure reports a simulator invocation that exited non-zero or left a
// missing or corrupt artifact behind.
func RunFailure(message string, cause error) *AppError {
	return &AppError{
		Code:    CodeRunFailure,
		Message: message,
		Cause:   cause,
	}
}

func InsufficientGrowth(message string) *AppError {
	return New(CodeInsufficientGrowth, message)
}

func NoRootFound(message string) *AppError {
	return New(CodeNoRootFound, message)
}

// InvariantViolation is the verification failure itself.
func InvariantViolation(message string) *AppError {
	return New(CodeInvariantViolation, message)
}

func DatabaseError(message string) *AppError {
	return New(CodeDatabaseError, message)
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

// IsConfiguration reports whether err is a configuration error
func IsConfiguration(err error) bool { return HasCode(err, CodeConfigInvalid) }

// IsRunFailure reports whether err is a simulator run failure
func IsRunFailure(err error) bool { return HasCode(err, CodeRunFailure) }

// IsInvariantViolation reports whether err is a failed invariant check
func IsInvariantViolation(err error) bool { return HasCode(err, CodeInvariantViolation) }

// IsFatal reports whether err must abort the containing scenario. Invariant
// violations are reported with the outcome instead.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !IsInvariantViolation(err)
}
