package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeMalformedRecord  ErrorType = "MALFORMED_RECORD"
	ErrTypeStoreUnavailable ErrorType = "STORE_UNAVAILABLE"
	ErrTypeRunInProgress    ErrorType = "RUN_ALREADY_IN_PROGRESS"
	ErrTypeNoSuchRun        ErrorType = "NO_SUCH_RUN"
	ErrTypeDivisionByZero   ErrorType = "DIVISION_BY_ZERO_NORMALIZATION"
	ErrTypeValidation       ErrorType = "VALIDATION"
	ErrTypeNotFound         ErrorType = "NOT_FOUND"
	ErrTypeConfig           ErrorType = "CONFIG"
	ErrTypeCancelled        ErrorType = "CANCELLED"
	ErrTypeInternal         ErrorType = "INTERNAL"
)

// Sentinels for errors.Is matching by type
var (
	ErrMalformedRecord      = &AppError{Type: ErrTypeMalformedRecord, Message: "malformed record"}
	ErrStoreUnavailable     = &AppError{Type: ErrTypeStoreUnavailable, Message: "price store unavailable"}
	ErrRunAlreadyInProgress = &AppError{Type: ErrTypeRunInProgress, Message: "an import run is already in progress"}
	ErrNoSuchRun            = &AppError{Type: ErrTypeNoSuchRun, Message: "no import run has been executed"}
	ErrDivisionByZero       = &AppError{Type: ErrTypeDivisionByZero, Message: "cannot normalize with a zero minimum price"}
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches any AppError of the same type
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Type == e.Type
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
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// TypeOf returns the ErrorType of the first AppError in err's chain,
// or ErrTypeInternal if there is none.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrTypeInternal
}

// IsType reports whether err carries an AppError of the given type
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == errType
}

// NewMalformedRecordError creates an error for an unparseable input record
func NewMalformedRecordError(file string, line int, column, message string, cause error) *AppError {
	return NewAppError(ErrTypeMalformedRecord,
		fmt.Sprintf("%s:%d column %q: %s", file, line, column, message), cause).
		WithContext("file", file).
		WithContext("line", line).
		WithContext("column", column)
}

// NewStoreUnavailableError wraps a storage failure
func NewStoreUnavailableError(operation string, cause error) *AppError {
	return NewAppError(ErrTypeStoreUnavailable,
		fmt.Sprintf("price store %s failed", operation), cause).
		WithContext("operation", operation)
}

// NewRunInProgressError reports the identifier of the run that blocks a launch
func NewRunInProgressError(runID int64) *AppError {
	return NewAppError(ErrTypeRunInProgress, ErrRunAlreadyInProgress.Message, nil).
		WithContext("run_id", runID)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}
