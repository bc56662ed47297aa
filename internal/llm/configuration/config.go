// Package configuration holds the tunable surface of the admission-control
// and resilience core: sliding-window limits, retry policy, concurrency caps,
// spike arrest, pricing, and observability switches.
//
// The package only defines types and defaults. Each consuming component
// validates the slice of configuration it owns (the recorder validates
// LimitsConfig, the retry orchestrator validates RetryConfig, and so on),
// and runtime reconfiguration happens through setter methods on the live
// components rather than by rebuilding them.
package configuration

import (
	"time"

	"github.com/facebookgo/clock"
)

// Config is the complete configuration for one rate-limit scope.
// A scope owns one recorder, one RPM gate, one TPM gate, and one retry
// orchestrator; independent scopes may coexist in a single process.
type Config struct {
	// Limits controls the sliding-window admission budget.
	Limits LimitsConfig `json:"limits"`

	// Retry controls the per-call retry orchestration.
	Retry RetryConfig `json:"retry"`

	// SpikeArrest optionally smooths sub-second bursts ahead of the
	// minute-scale sliding-window gates.
	SpikeArrest SpikeArrestConfig `json:"spike_arrest"`

	// MaxConcurrency caps the number of invocations simultaneously past
	// the gates. Zero selects DefaultMaxConcurrency.
	MaxConcurrency int64 `json:"max_concurrency"`

	// Pricing controls cost attribution for completed invocations.
	Pricing PricingConfig `json:"pricing"`

	// Observability controls the request logging middleware.
	Observability ObservabilityConfig `json:"observability"`

	// Providers holds per-provider endpoints and credentials for callers
	// that use the built-in HTTP adapters, keyed by provider name.
	Providers map[string]ProviderConfig `json:"providers,omitempty"`

	// Clock supplies time to every component. Nil selects the wall clock;
	// tests inject a mock.
	Clock clock.Clock `json:"-"`
}

// LimitsConfig bounds request and token throughput over a sliding window.
// A zero cap disables the corresponding dimension.
type LimitsConfig struct {
	// MaxRPM is the requests-per-minute ceiling (0 = unlimited).
	MaxRPM float64 `json:"max_rpm"`

	// MaxTPM is the tokens-per-minute ceiling (0 = unlimited).
	MaxTPM float64 `json:"max_tpm"`

	// WindowSeconds is the sliding-window length. RPM and TPM are scaled
	// to per-minute figures regardless of the window size.
	WindowSeconds float64 `json:"window_seconds"`
}

// Window returns the sliding-window length as a duration.
func (c LimitsConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds * float64(time.Second))
}

// RetryConfig controls retry behavior for failed invocations.
// Delays grow exponentially per attempt and are bounded by MaxInterval;
// full jitter draws each delay from [InitialInterval, computed backoff].
type RetryConfig struct {
	MaxAttempts     int           `json:"max_attempts"`     // Total attempts including the first
	InitialInterval time.Duration `json:"initial_interval"` // Starting backoff duration
	MaxInterval     time.Duration `json:"max_interval"`     // Backoff ceiling
	Multiplier      float64       `json:"multiplier"`       // Exponential growth factor
	UseJitter       bool          `json:"use_jitter"`       // Randomize delays to avoid retry storms
}

// SpikeArrestConfig configures the optional token-bucket burst smoother
// applied before the sliding-window gates.
type SpikeArrestConfig struct {
	Enabled           bool    `json:"enabled"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	Burst             int     `json:"burst"`
}

// PricingConfig controls cost attribution for completed invocations.
// When FailClosed is set, a missing pricing entry fails the invocation
// instead of recording it at zero cost.
type PricingConfig struct {
	Enabled    bool `json:"enabled"`
	FailClosed bool `json:"fail_closed"`
}

// ProviderConfig holds one provider's endpoint and authentication.
type ProviderConfig struct {
	// Endpoint overrides the provider's production API base URL.
	Endpoint string `json:"endpoint,omitempty"`

	// APIKey authenticates requests to the provider.
	APIKey string `json:"api_key"`

	// Headers are added to every request, e.g. organization tags.
	Headers map[string]string `json:"headers,omitempty"`
}

// ObservabilityConfig controls the request logging middleware.
type ObservabilityConfig struct {
	// LogRequests wraps the injected handler with per-attempt logging.
	LogRequests bool `json:"log_requests"`

	// RedactPayloads suppresses prompt content in logs.
	RedactPayloads bool `json:"redact_payloads"`
}
