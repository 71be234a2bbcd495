package common

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeConfiguration for configuration-related errors
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeValidation for invalid operator input
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeStorage for storage/persistence errors
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeNetwork for transport failures that are not timeouts
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeTimeout for requests that exceeded their deadline
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeHTTP for non-2xx responses
	ErrorTypeHTTP ErrorType = "http"
	// ErrorTypeStructural for 2xx responses without a recognized record envelope
	ErrorTypeStructural ErrorType = "structural"
	// ErrorTypeAPI for a table whose endpoint shapes were all exhausted
	ErrorTypeAPI ErrorType = "api"
	// ErrorTypeExtraction for DOM scraping errors
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypeExport for workbook export errors
	ErrorTypeExport ErrorType = "export"
	// ErrorTypeInternal for internal system errors
	ErrorTypeInternal ErrorType = "internal"
)

// Sentinels for errors.Is checks. They match any ExtractorError of the same type.
var (
	ErrTimeout    = &ExtractorError{Type: ErrorTypeTimeout}
	ErrHTTP       = &ExtractorError{Type: ErrorTypeHTTP}
	ErrStructural = &ExtractorError{Type: ErrorTypeStructural}
	ErrAPI        = &ExtractorError{Type: ErrorTypeAPI}
	ErrValidation = &ExtractorError{Type: ErrorTypeValidation}
	ErrNoTickets  = &ExtractorError{Type: ErrorTypeExport, Code: "no_tickets"}
)

// maxBodyExcerpt bounds response bodies carried by HTTP errors
const maxBodyExcerpt = 200

// ExtractorError represents a structured error with context
type ExtractorError struct {
	Type      ErrorType              `json:"type"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Cause     error                  `json:"-"`
}

// Error implements the error interface
func (e *ExtractorError) Error() string {
	msg := fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap implements the errors.Unwrap interface
func (e *ExtractorError) Unwrap() error {
	return e.Cause
}

// Is matches another ExtractorError by type, and by code when the target has one
func (e *ExtractorError) Is(target error) bool {
	t, ok := target.(*ExtractorError)
	if !ok {
		return false
	}
	if t.Type != e.Type {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// WithContext adds context to the error
func (e *ExtractorError) WithContext(key string, value interface{}) *ExtractorError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCause sets the underlying cause
func (e *ExtractorError) WithCause(cause error) *ExtractorError {
	e.Cause = cause
	return e
}

// WithDetails sets the details text
func (e *ExtractorError) WithDetails(details string) *ExtractorError {
	e.Details = details
	return e
}

// NewError creates a new ExtractorError
func NewError(errorType ErrorType, code, message string) *ExtractorError {
	return &ExtractorError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(code, message string) *ExtractorError {
	return NewError(ErrorTypeConfiguration, code, message)
}

// NewValidationError creates a validation error
func NewValidationError(code, message string) *ExtractorError {
	return NewError(ErrorTypeValidation, code, message)
}

// NewStorageError creates a storage error
func NewStorageError(code, message string) *ExtractorError {
	return NewError(ErrorTypeStorage, code, message)
}

// NewNetworkError creates a network error
func NewNetworkError(code, message string) *ExtractorError {
	return NewError(ErrorTypeNetwork, code, message)
}

// NewExtractionError creates a DOM extraction error
func NewExtractionError(code, message string) *ExtractorError {
	return NewError(ErrorTypeExtraction, code, message)
}

// NewExportError creates a workbook export error
func NewExportError(code, message string) *ExtractorError {
	return NewError(ErrorTypeExport, code, message)
}

// NewInternalError creates an internal system error
func NewInternalError(code, message string) *ExtractorError {
	return NewError(ErrorTypeInternal, code, message)
}

// NewTimeoutError reports a request abandoned after its deadline
func NewTimeoutError(endpoint string, timeout time.Duration) *ExtractorError {
	return NewError(ErrorTypeTimeout, "request_timeout",
		fmt.Sprintf("request timed out after %s", timeout)).
		WithContext("endpoint", endpoint).
		WithContext("timeout", timeout.String())
}

// NewHTTPError reports a non-2xx response with a truncated body excerpt
func NewHTTPError(status int, body string) *ExtractorError {
	return NewError(ErrorTypeHTTP, "bad_status", fmt.Sprintf("HTTP %d", status)).
		WithDetails(TruncateText(body, maxBodyExcerpt)).
		WithContext("status", status)
}

// NewStructuralError reports a response without a recognized record envelope
func NewStructuralError(message string) *ExtractorError {
	return NewError(ErrorTypeStructural, "unrecognized_envelope", message)
}

// NewAPIError summarizes a table whose endpoint shapes were all exhausted
func NewAPIError(table string, attempts int, last error) *ExtractorError {
	return NewError(ErrorTypeAPI, "attempts_exhausted",
		fmt.Sprintf("all %d API attempts failed for %s", attempts, table)).
		WithContext("table", table).
		WithContext("attempts", attempts).
		WithCause(last)
}

// WrapError wraps an existing error with ExtractorError context
func WrapError(err error, errorType ErrorType, code, message string) *ExtractorError {
	return &ExtractorError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Cause:     err,
	}
}

// HTTPStatus returns the status code carried by an HTTP error in err's chain, or 0
func HTTPStatus(err error) int {
	for err != nil {
		var e *ExtractorError
		if !errors.As(err, &e) {
			return 0
		}
		if e.Type == ErrorTypeHTTP {
			if status, ok := e.Context["status"].(int); ok {
				return status
			}
			return 0
		}
		err = e.Cause
	}
	return 0
}

// TruncateText shortens s to at most n runes, marking the cut
func TruncateText(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
