package errors

import (
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

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   appErr,
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
	_, ok := err.(*AppError)
	return ok
}

// GetCode returns the error code if it's an AppError, otherwise returns "UNKNOWN"
func GetCode(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Predefined error codes. The first four mirror the engine's error taxonomy:
// insufficient or degenerate data is a non-fatal null result, numeric
// instability is recovered via pseudo-inverse, and enrichment failures are
// isolated per endpoint.
const (
	CodeInsufficientData   = "INSUFFICIENT_DATA"
	CodeDegenerateDesign   = "DEGENERATE_DESIGN"
	CodeNumericInstability = "NUMERIC_INSTABILITY"
	CodeEnrichmentFailure  = "ENRICHMENT_FAILURE"
	CodeConfigInvalid      = "CONFIG_INVALID"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeInternalError      = "INTERNAL_ERROR"
)

// Common error constructors
func InsufficientData(message string) *AppError {
	return New(CodeInsufficientData, message)
}

func DegenerateDesign(message string) *AppError {
	return New(CodeDegenerateDesign, message)
}

func NumericInstability(message string, cause error) *AppError {
	return &AppError{
		Code:    CodeNumericInstability,
		Message: message,
		Cause:   cause,
	}
}

func EnrichmentFailure(endpoint string, cause error) *AppError {
	return &AppError{
		Code:    CodeEnrichmentFailure,
		Message: fmt.Sprintf("enrichment failed for endpoint %s", endpoint),
		Cause:   cause,
	}
}

func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}
