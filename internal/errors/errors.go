package errors

import (
	"fmt"
)

// ScholiaError is the structured error type for Scholia.
// It provides rich context for error handling, logging, and user presentation.
type ScholiaError struct {
	// Code is the unique error code (e.g., "ERR_201_PROVIDER_TIMEOUT").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Provider, Parse, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *ScholiaError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *ScholiaError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with ScholiaError.
func (e *ScholiaError) Is(target error) bool {
	if t, ok := target.(*ScholiaError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *ScholiaError) WithDetail(key, value string) *ScholiaError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *ScholiaError) WithSuggestion(suggestion string) *ScholiaError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ScholiaError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *ScholiaError {
	return &ScholiaError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a ScholiaError from an existing error.
// The error's message becomes the ScholiaError message.
func Wrap(code string, err error) *ScholiaError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
// Config errors are surfaced before any index work is attempted.
func ConfigError(message string, cause error) *ScholiaError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ProviderError creates a provider-related error.
// Provider errors are typically retryable and counted into diagnostics.
func ProviderError(message string, cause error) *ScholiaError {
	return New(ErrCodeProviderUnavailable, message, cause)
}

// ParseError creates a parse-related error.
// Parse errors are recovered locally (e.g., router falls back to rules).
func ParseError(message string, cause error) *ScholiaError {
	return New(ErrCodeMalformedLLMOutput, message, cause)
}

// ConsistencyError creates a cross-index consistency error.
// Consistency errors surface only through diagnostics, never block search.
func ConsistencyError(message string, cause error) *ScholiaError {
	return New(ErrCodeIndexDrift, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *ScholiaError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *ScholiaError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a ScholiaError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*ScholiaError); ok {
		return se.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*ScholiaError); ok {
		return se.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a ScholiaError.
// Returns empty string if not a ScholiaError.
func GetCode(err error) string {
	if se, ok := err.(*ScholiaError); ok {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category from a ScholiaError.
// Returns empty string if not a ScholiaError.
func GetCategory(err error) Category {
	if se, ok := err.(*ScholiaError); ok {
		return se.Category
	}
	return ""
}
