// Package provider turns a review prompt into review text. A Backend is one
// concrete model runtime (a hosted chat API or a local model process); the
// Adapter tries the configured backends in order and always hands back text,
// so callers never have to branch on which runtime answered.
package provider

import (
	"context"
	"fmt"
	"time"
)

// Kind is the class of runtime that produced a review.
type Kind string

const (
	KindHosted Kind = "hosted"
	KindLocal  Kind = "local"
)

// Backend is a single model runtime.
type Backend interface {
	// Kind reports whether the backend is hosted or local.
	Kind() Kind

	// Name is a short identifier for logs, e.g. "openai" or "ollama".
	Name() string

	// Review sends prompt to the model and returns its reply. Errors are
	// *ProviderError values where the cause is known.
	Review(ctx context.Context, prompt string) (string, error)
}

// Validator is implemented by backends that can check their credentials
// without sending a prompt.
type Validator interface {
	Validate(ctx context.Context) error
}

// ---------------------------------------------------------------------------
// Error types
// ---------------------------------------------------------------------------

// ErrorCode classifies backend failures so the caller can decide whether to
// retry or fall back without inspecting backend-specific payloads.
type ErrorCode string

const (
	ErrCodeAuthentication      ErrorCode = "authentication"
	ErrCodeRateLimit           ErrorCode = "rate_limit"
	ErrCodeInvalidRequest      ErrorCode = "invalid_request"
	ErrCodeContextLength       ErrorCode = "context_length"
	ErrCodeProviderUnavailable ErrorCode = "provider_unavailable"
	ErrCodeTimeout             ErrorCode = "timeout"
	ErrCodeUnknown             ErrorCode = "unknown"
)

// ProviderError carries a normalized code plus the backend-specific details.
type ProviderError struct {
	Code       ErrorCode
	Message    string
	Provider   string
	StatusCode int
	Cause      error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", e.Provider, e.Code, e.Message)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Sentinel errors for use with errors.Is().
var (
	ErrAuthentication      = &ProviderError{Code: ErrCodeAuthentication}
	ErrRateLimit           = &ProviderError{Code: ErrCodeRateLimit}
	ErrInvalidRequest      = &ProviderError{Code: ErrCodeInvalidRequest}
	ErrContextLength       = &ProviderError{Code: ErrCodeContextLength}
	ErrProviderUnavailable = &ProviderError{Code: ErrCodeProviderUnavailable}
	ErrTimeout             = &ProviderError{Code: ErrCodeTimeout}
)

// Is allows errors.Is to match ProviderErrors by code.
func (e *ProviderError) Is(target error) bool {
	t, ok := target.(*ProviderError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// ---------------------------------------------------------------------------
// Retry configuration
// ---------------------------------------------------------------------------

// RetryConfig controls exponential-backoff retry behaviour. The zero value
// disables retries.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (0 = no retries).
	MaxRetries int

	// InitialInterval is the delay before the first retry.
	InitialInterval time.Duration

	// MaxInterval caps the delay between retries.
	MaxInterval time.Duration

	// Multiplier scales the interval after each attempt.
	Multiplier float64
}

// NewRetryConfig returns a backoff starting at 1s, capped at 30s, doubling,
// with the given number of retries.
func NewRetryConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:      maxRetries,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
	}
}
