// Package llmerrors provides structured error classification and retry
// configuration for model-completion interactions. The orchestration core
// distinguishes provider unavailability (no credentials, no network; the
// trigger for degraded mock mode) from provider errors (malformed requests,
// surfaced as stage failures) and from transient noise (retried).
package llmerrors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorType represents categories of model-completion errors.
type ErrorType int8

const (
	// Retryable error types.

	// ErrorTypeRateLimit represents rate limiting errors (429, quota exceeded).
	ErrorTypeRateLimit ErrorType = iota
	// ErrorTypeTransient represents transient errors (5xx, EOF, connection reset, timeout).
	ErrorTypeTransient
	// ErrorTypeEmptyResponse represents HTTP 200 but no content errors.
	ErrorTypeEmptyResponse

	// Non-retryable error types.

	// ErrorTypeUnavailable represents provider unavailability: no credentials
	// configured or no reachable endpoint. Triggers degraded mock mode.
	ErrorTypeUnavailable
	// ErrorTypeBadPrompt represents malformed request errors (too long, rejected).
	// Surfaced as a stage-level provider error, never mocked over.
	ErrorTypeBadPrompt
	// ErrorTypeUnknown represents unclassified errors.
	ErrorTypeUnknown
)

// String returns the string representation of the error type.
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeEmptyResponse:
		return "empty_response"
	case ErrorTypeUnavailable:
		return "unavailable"
	case ErrorTypeBadPrompt:
		return "bad_prompt"
	case ErrorTypeUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// RetryConfig defines exponential backoff configuration for an error type.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        bool
}

// DefaultRetryConfigs provides default retry configurations per error type.
//
//nolint:gochecknoglobals // Configuration map - acceptable for package defaults
var DefaultRetryConfigs = map[ErrorType]RetryConfig{
	ErrorTypeRateLimit: {
		MaxRetries:    6,
		InitialDelay:  1 * time.Second,
		MaxDelay:      60 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	},
	ErrorTypeTransient: {
		MaxRetries:    4,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	},
	ErrorTypeEmptyResponse: {
		MaxRetries:    3,
		InitialDelay:  2 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	},
	ErrorTypeUnavailable: {MaxRetries: 0, BackoffFactor: 1.0},
	ErrorTypeBadPrompt:   {MaxRetries: 0, BackoffFactor: 1.0},
	ErrorTypeUnknown: {
		MaxRetries:    1,
		InitialDelay:  1 * time.Second,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	},
}

// Error represents a classified model-completion error with retry metadata.
type Error struct {
	Err        error     // Wrapped underlying error
	Message    string    // Human-readable error message
	Type       ErrorType // Classified error type
	StatusCode int       // HTTP status code if applicable
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("LLM error (%s): %s", e.Type.String(), e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("LLM error (%s): %v", e.Type.String(), e.Err)
	}
	return fmt.Sprintf("LLM error (%s): status %d", e.Type.String(), e.StatusCode)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns whether this error type should be retried.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeUnavailable, ErrorTypeBadPrompt:
		return false
	default:
		return true
	}
}

// GetRetryConfig returns the retry configuration for this error type.
func (e *Error) GetRetryConfig() RetryConfig {
	if config, exists := DefaultRetryConfigs[e.Type]; exists {
		return config
	}
	return DefaultRetryConfigs[ErrorTypeUnknown]
}

// Is checks if an error is of a specific type.
func Is(err error, errorType ErrorType) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == errorType
	}
	return false
}

// TypeOf returns the error type of an error, or ErrorTypeUnknown if not classified.
func TypeOf(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ErrorTypeUnknown
}

// IsUnavailable reports whether the error signals provider unavailability.
func IsUnavailable(err error) bool {
	return Is(err, ErrorTypeUnavailable)
}

// NewError creates a new classified error.
func NewError(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// NewErrorWithStatus creates a new classified error with HTTP status.
func NewErrorWithStatus(errorType ErrorType, statusCode int, message string) *Error {
	return &Error{Type: errorType, StatusCode: statusCode, Message: message}
}

// NewErrorWithCause creates a new classified error wrapping another error.
func NewErrorWithCause(errorType ErrorType, cause error, message string) *Error {
	return &Error{Type: errorType, Err: cause, Message: message}
}

// Classify maps an arbitrary provider SDK error to a classified error, using
// status codes embedded in the message plus common text patterns.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewErrorWithCause(ErrorTypeTransient, err, "request timeout")
	}
	if errors.Is(err, context.Canceled) {
		return NewErrorWithCause(ErrorTypeTransient, err, "request canceled")
	}

	errStr := err.Error()
	switch extractStatusCode(errStr) {
	case 401, 403:
		return NewErrorWithCause(ErrorTypeUnavailable, err, "authentication failed - check API key")
	case 429:
		return NewErrorWithCause(ErrorTypeRateLimit, err, "rate limit exceeded")
	case 400:
		return NewErrorWithCause(ErrorTypeBadPrompt, err, "bad request - check prompt format and parameters")
	case 500, 502, 503, 504:
		return NewErrorWithCause(ErrorTypeTransient, err, "server error")
	}

	lower := strings.ToLower(errStr)
	switch {
	case strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "no such host"),
		strings.Contains(lower, "unauthorized"),
		strings.Contains(lower, "api key"):
		return NewErrorWithCause(ErrorTypeUnavailable, err, "provider unreachable or unauthenticated")
	case strings.Contains(lower, "timeout"),
		strings.Contains(lower, "connection"),
		strings.Contains(lower, "temporary"),
		strings.Contains(lower, "eof"),
		strings.Contains(lower, "reset"):
		return NewErrorWithCause(ErrorTypeTransient, err, "network or connection error")
	case strings.Contains(lower, "rate"), strings.Contains(lower, "quota"):
		return NewErrorWithCause(ErrorTypeRateLimit, err, "rate limiting detected")
	case strings.Contains(lower, "invalid"),
		strings.Contains(lower, "malformed"),
		strings.Contains(lower, "too large"):
		return NewErrorWithCause(ErrorTypeBadPrompt, err, "prompt or request error")
	}

	return NewErrorWithCause(ErrorTypeUnknown, err, "unclassified error")
}

// extractStatusCode attempts to extract an HTTP status code embedded in a
// provider SDK error message.
func extractStatusCode(errStr string) int {
	patterns := []string{"status code: ", "status: ", "http "}
	lower := strings.ToLower(errStr)

	codes := []int{400, 401, 403, 429, 500, 502, 503, 504}
	for _, pattern := range patterns {
		idx := strings.Index(lower, pattern)
		if idx == -1 {
			continue
		}
		rest := lower[idx+len(pattern):]
		for _, code := range codes {
			if strings.HasPrefix(rest, fmt.Sprintf("%d", code)) {
				return code
			}
		}
	}
	return 0
}
