package errors

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"
)

// Classify maps an arbitrary error onto an ErrorKind. Strongly typed errors
// take precedence, then sentinels, then context errors and network errors,
// with string pattern matching as the last resort for untyped failures.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return KindRateLimited
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.ErrorKind()
	}

	var invErr *InvocationError
	if errors.As(err, &invErr) {
		return invErr.Kind
	}

	var pricingErr *PricingError
	if errors.As(err, &pricingErr) {
		return KindUnknown
	}

	switch {
	case errors.Is(err, ErrRateLimitExceeded):
		return KindRateLimited
	case errors.Is(err, ErrProviderUnavailable):
		return KindServerError
	case errors.Is(err, ErrQuotaExhausted):
		return KindQuotaExhausted
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}

	if isNetworkError(err) {
		return KindServerError
	}

	return classifyByMessage(err)
}

// IsRetryable reports whether the error warrants another attempt.
// Unknown errors are conservatively treated as terminal.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return Classify(err).Retryable()
}

// RetryAfter extracts explicit provider retry guidance from the error chain,
// or zero when none is present.
func RetryAfter(err error) time.Duration {
	var provider RetryAfterProvider
	if errors.As(err, &provider) {
		return provider.GetRetryAfter()
	}
	return 0
}

// isNetworkError detects connectivity failures using type assertions first
// and string patterns as a fallback for errors that lost their type.
func isNetworkError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		var netErr net.Error
		if errors.As(urlErr.Err, &netErr) {
			return netErr.Timeout()
		}
		return matchesNetworkIndicator(urlErr.Err.Error())
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return matchesNetworkIndicator(err.Error())
}

func matchesNetworkIndicator(msg string) bool {
	lowered := strings.ToLower(msg)
	for _, indicator := range networkErrorIndicators {
		if strings.Contains(lowered, indicator) {
			return true
		}
	}
	return false
}

// networkErrorIndicators are pre-lowercased substrings of common transport
// failures that arrive as plain errors.
var networkErrorIndicators = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"network is unreachable",
	"i/o timeout",
	"eof",
}

// classifyByMessage pattern-matches untyped error text. Ordering matters:
// quota before rate limit, since quota messages often mention limits too.
func classifyByMessage(err error) ErrorKind {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "insufficient_quota") || strings.Contains(msg, "quota"):
		return KindQuotaExhausted
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests"):
		return KindRateLimited
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return KindTimeout
	case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "authentication") ||
		strings.Contains(msg, "invalid api key") || strings.Contains(msg, "forbidden"):
		return KindAuthFailure
	case strings.Contains(msg, "not available in your region") || strings.Contains(msg, "unsupported region"):
		return KindUnsupportedRegion
	case strings.Contains(msg, "malformed") || strings.Contains(msg, "invalid request"):
		return KindMalformedRequest
	case strings.Contains(msg, "internal server error") || strings.Contains(msg, "service unavailable") ||
		strings.Contains(msg, "bad gateway"):
		return KindServerError
	default:
		return KindUnknown
	}
}
