package configuration

import "time"

// Sliding-window and concurrency constants.
const (
	DefaultWindowSeconds  = 60.0
	DefaultMaxRPM         = 60
	DefaultMaxConcurrency = 5
)

// Retry constants.
const (
	DefaultMaxAttempts       = 3
	DefaultInitialInterval   = 1 * time.Second
	DefaultMaxInterval       = 60 * time.Second
	DefaultBackoffMultiplier = 2.0
)

// Spike-arrest constants.
const (
	DefaultSpikeRequestsPerSecond = 10
	DefaultSpikeBurst             = 20
)

// DefaultConfig returns a production-ready configuration with sensible
// defaults: a 60-second window capped at 60 requests per minute, three
// attempts with jittered exponential backoff between one second and one
// minute, and five concurrent invocations.
func DefaultConfig() Config {
	return Config{
		Limits: LimitsConfig{
			MaxRPM:        DefaultMaxRPM,
			MaxTPM:        0, // unlimited unless the provider plan caps tokens
			WindowSeconds: DefaultWindowSeconds,
		},
		Retry: RetryConfig{
			MaxAttempts:     DefaultMaxAttempts,
			InitialInterval: DefaultInitialInterval,
			MaxInterval:     DefaultMaxInterval,
			Multiplier:      DefaultBackoffMultiplier,
			UseJitter:       true,
		},
		SpikeArrest: SpikeArrestConfig{
			Enabled:           false,
			RequestsPerSecond: DefaultSpikeRequestsPerSecond,
			Burst:             DefaultSpikeBurst,
		},
		MaxConcurrency: DefaultMaxConcurrency,
		Pricing: PricingConfig{
			Enabled:    true,
			FailClosed: false,
		},
		Observability: ObservabilityConfig{
			LogRequests:    true,
			RedactPayloads: true,
		},
	}
}
