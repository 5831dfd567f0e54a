package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType is the tag of an AppError
type ErrorType string

const (
	// ErrTypeMissingCredential is a local precondition failure raised before any network activity
	ErrTypeMissingCredential ErrorType = "missing_credential"
	// ErrTypeConfig represents invalid configuration rejected at construction time
	ErrTypeConfig ErrorType = "config"
	// ErrTypeRateLimit means the server answered 429 on the last attempt
	ErrTypeRateLimit ErrorType = "rate_limit"
	// ErrTypeTimeout means the last attempt hit the per-attempt timeout
	ErrTypeTimeout ErrorType = "timeout"
	// ErrTypeObtainFailed is generic exhaustion or a terminal client error
	ErrTypeObtainFailed ErrorType = "obtain_failed"
	// ErrTypeConnection represents transport-level failures
	ErrTypeConnection ErrorType = "connection"
	// ErrTypeValidation represents malformed input or responses
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeStorage represents token persistence failures
	ErrTypeStorage ErrorType = "storage"
	// ErrTypeInternal represents everything else
	ErrTypeInternal ErrorType = "internal"
)

// AppError is the single error shape used across the module. Type selects which of the
// structured fields are meaningful.
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`

	// RetryAfterSeconds is set for ErrTypeRateLimit
	RetryAfterSeconds int `json:"retry_after_seconds,omitempty"`
	// TimeoutSeconds is set for ErrTypeTimeout
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
	// Attempts and LastError are set for ErrTypeObtainFailed
	Attempts  int    `json:"attempts,omitempty"`
	LastError string `json:"last_error,omitempty"`
	// StatusCode is the HTTP status of a terminal client error, if any
	StatusCode int `json:"status_code,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		contextParts := make([]string, 0, len(keys))
		for _, k := range keys {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds a diagnostic key/value to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// MissingCredentialError reports that a required credential is not configured
func MissingCredentialError(name string) *AppError {
	return &AppError{
		Type:    ErrTypeMissingCredential,
		Message: fmt.Sprintf("missing credential %s", name),
	}
}

// ConfigError creates a new configuration error
func ConfigError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeConfig,
		Message: msg,
	}
}

// RateLimitedError reports a 429 that could not be retried
func RateLimitedError(retryAfterSeconds int) *AppError {
	return &AppError{
		Type:              ErrTypeRateLimit,
		Message:           fmt.Sprintf("rate limited: retry after %d seconds", retryAfterSeconds),
		RetryAfterSeconds: retryAfterSeconds,
	}
}

// TimeoutError reports that the final attempt exceeded the per-attempt timeout
func TimeoutError(timeoutSeconds int) *AppError {
	return &AppError{
		Type:           ErrTypeTimeout,
		Message:        fmt.Sprintf("request timeout after %d seconds", timeoutSeconds),
		TimeoutSeconds: timeoutSeconds,
	}
}

// ObtainFailedError reports exhaustion or a terminal client error
func ObtainFailedError(attempts int, lastError string) *AppError {
	return &AppError{
		Type:      ErrTypeObtainFailed,
		Message:   fmt.Sprintf("request failed after %d attempts: %s", attempts, lastError),
		Attempts:  attempts,
		LastError: lastError,
	}
}

// ConnectionError creates a new connection error
func ConnectionError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeConnection,
		Message: msg,
		Cause:   cause,
	}
}

// ValidationError creates a new validation error
func ValidationError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeValidation,
		Message: msg,
	}
}

// StorageError creates a new persistence error
func StorageError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeStorage,
		Message: msg,
		Cause:   cause,
	}
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeInternal,
		Message: msg,
		Cause:   cause,
	}
}

// As returns the first AppError in err's chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr, ok := As(err)
	if !ok {
		return false
	}
	return appErr.Type == errType
}

// GetType returns the error type if it's an AppError, otherwise returns ErrTypeInternal
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	appErr, ok := As(err)
	if !ok {
		return ErrTypeInternal
	}

	return appErr.Type
}

// IsRetryable reports whether a caller may reasonably try the whole operation again later.
func IsRetryable(err error) bool {
	switch GetType(err) {
	case ErrTypeRateLimit, ErrTypeTimeout, ErrTypeConnection:
		return true
	default:
		return false
	}
}

// RetryAfter returns the server-provided wait for rate-limit errors
func RetryAfter(err error) (int, bool) {
	appErr, ok := As(err)
	if !ok || appErr.Type != ErrTypeRateLimit {
		return 0, false
	}
	return appErr.RetryAfterSeconds, true
}

// StatusCode returns the HTTP status carried by a terminal client error, or 0
func StatusCode(err error) int {
	appErr, ok := As(err)
	if !ok {
		return 0
	}
	return appErr.StatusCode
}
