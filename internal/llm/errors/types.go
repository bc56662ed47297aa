// Package errors defines the failure taxonomy of the invocation core and the
// classification logic that maps arbitrary errors onto it. Kinds split into
// retryable (timeout, server error, rate limit) and terminal (authentication,
// quota, unsupported region, malformed request, unknown); the retry
// orchestrator absorbs the former up to its attempt ceiling and propagates
// the latter on first occurrence.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrorKind categorizes invocation failures for retry classification.
type ErrorKind string

const (
	// KindTimeout indicates a request timeout or exceeded deadline (retryable).
	KindTimeout ErrorKind = "timeout"

	// KindServerError indicates a 5xx or otherwise server-side failure (retryable).
	KindServerError ErrorKind = "server_error"

	// KindRateLimited indicates the provider rejected the call for rate
	// reasons, e.g. HTTP 429 (retryable).
	KindRateLimited ErrorKind = "rate_limited"

	// KindAuthFailure indicates failed authentication or authorization (terminal).
	KindAuthFailure ErrorKind = "auth_failure"

	// KindQuotaExhausted indicates the account quota or credit is spent (terminal).
	KindQuotaExhausted ErrorKind = "quota_exhausted"

	// KindUnsupportedRegion indicates the model or feature is unavailable in
	// the caller's region (terminal).
	KindUnsupportedRegion ErrorKind = "unsupported_region"

	// KindMalformedRequest indicates the provider rejected the request body (terminal).
	KindMalformedRequest ErrorKind = "malformed_request"

	// KindUnknown indicates an unclassified failure (terminal by policy:
	// unknown errors are not retried to avoid retry loops).
	KindUnknown ErrorKind = "unknown"
)

// Retryable reports whether failures of this kind may be retried.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindTimeout, KindServerError, KindRateLimited:
		return true
	default:
		return false
	}
}

// Common sentinel errors for consistent handling across the core.
var (
	// ErrRateLimitExceeded indicates a provider-side rate limit rejection.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrProviderUnavailable indicates the provider service is down or unreachable.
	ErrProviderUnavailable = errors.New("provider service unavailable")

	// ErrQuotaExhausted indicates the account has no remaining credit.
	ErrQuotaExhausted = errors.New("account quota exhausted")

	// ErrMaxAttemptsExceeded indicates the retry ceiling was hit.
	ErrMaxAttemptsExceeded = errors.New("maximum attempts exceeded")

	// Usage normalization errors.
	ErrNegativePromptTokens     = errors.New("negative prompt tokens")
	ErrNegativeCompletionTokens = errors.New("negative completion tokens")
	ErrNegativeTotalTokens      = errors.New("negative total tokens")
	ErrInconsistentTokenCounts  = errors.New("inconsistent token counts")
)

// RetryAfterProvider is implemented by error types that carry explicit
// provider guidance on when to retry.
type RetryAfterProvider interface {
	// GetRetryAfter returns the recommended wait before the next attempt,
	// or zero when no guidance is available.
	GetRetryAfter() time.Duration
}

// ProviderError captures a structured error response from an LLM provider.
// The wire error code drives kind classification when the kind is unset,
// with the HTTP status code as the fallback.
type ProviderError struct {
	Provider   string    `json:"provider"`
	StatusCode int       `json:"status_code"`
	Message    string    `json:"message"`
	Code       string    `json:"code"`
	Kind       ErrorKind `json:"kind"`
	RetryAfter int       `json:"retry_after"` // Retry-After guidance in seconds
}

// Error returns the provider failure with status code context.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// ErrorKind returns the classified kind. When the provider adapter did not
// set one, the wire error code is consulted before the HTTP status code:
// providers reject exhausted billing quotas with 429 and only the code
// (e.g. "insufficient_quota") distinguishes them from transient throttling.
func (e *ProviderError) ErrorKind() ErrorKind {
	if e.Kind != "" {
		return e.Kind
	}
	if kind := KindFromCode(e.Code); kind != "" {
		return kind
	}
	return KindFromStatus(e.StatusCode)
}

// IsRetryable reports whether this provider error warrants another attempt.
func (e *ProviderError) IsRetryable() bool { return e.ErrorKind().Retryable() }

// GetRetryAfter implements RetryAfterProvider.
func (e *ProviderError) GetRetryAfter() time.Duration {
	if e.RetryAfter > 0 {
		return time.Duration(e.RetryAfter) * time.Second
	}
	return 0
}

// RateLimitError carries rate-limit context from a provider rejection,
// including explicit retry timing when the provider supplies it.
type RateLimitError struct {
	Provider   string `json:"provider"`
	RetryAfter int    `json:"retry_after"` // Seconds to wait before retrying
	Limit      int    `json:"limit"`
	Remaining  int    `json:"remaining"`
}

// Error returns the rate-limit failure with retry guidance when present.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limit exceeded for %s, retry after %d seconds", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded for %s", e.Provider)
}

// GetRetryAfter implements RetryAfterProvider.
func (e *RateLimitError) GetRetryAfter() time.Duration {
	if e.RetryAfter > 0 {
		return time.Duration(e.RetryAfter) * time.Second
	}
	return 0
}

// PricingError indicates cost attribution failed for a provider/model pair.
// It surfaces only in fail-closed pricing mode.
type PricingError struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Reason   string `json:"reason"`
}

// Error returns the pricing failure with provider and model context.
func (e *PricingError) Error() string {
	return fmt.Sprintf("pricing error for %s/%s: %s", e.Provider, e.Model, e.Reason)
}

// InvocationError is the structured failure returned by the coordinator.
// It pairs the classified kind with the underlying cause; the coordinator's
// Result carries the full attempt history alongside it.
type InvocationError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error returns the classified failure message.
func (e *InvocationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invocation failed (%s): %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("invocation failed (%s): %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *InvocationError) Unwrap() error { return e.Cause }

// Retryable reports whether the failure kind is transient.
func (e *InvocationError) Retryable() bool { return e.Kind.Retryable() }

// KindFromStatus maps an HTTP status code onto an ErrorKind.
// KindFromCode maps a provider wire error code onto an ErrorKind, returning
// the empty kind when the code carries no classification signal. Quota codes
// are matched before rate codes so that exhausted-credit rejections, which
// often arrive with HTTP 429, classify as terminal.
func KindFromCode(code string) ErrorKind {
	c := strings.ToLower(code)
	switch {
	case c == "":
		return ""
	case strings.Contains(c, "quota") || strings.Contains(c, "billing"):
		return KindQuotaExhausted
	case strings.Contains(c, "rate") || strings.Contains(c, "limit"):
		return KindRateLimited
	case strings.Contains(c, "timeout"):
		return KindTimeout
	case strings.Contains(c, "auth") || strings.Contains(c, "unauthorized"),
		strings.Contains(c, "permission") || strings.Contains(c, "forbidden"):
		return KindAuthFailure
	case strings.Contains(c, "region") || strings.Contains(c, "unsupported_country"):
		return KindUnsupportedRegion
	default:
		return ""
	}
}

func KindFromStatus(code int) ErrorKind {
	switch {
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return KindTimeout
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuthFailure
	case code == http.StatusPaymentRequired:
		return KindQuotaExhausted
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return KindMalformedRequest
	case code >= 500:
		return KindServerError
	default:
		return KindUnknown
	}
}
