package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mkarasu/go-pacer/internal/llm/configuration"
)

func TestNextDelayWithoutJitter(t *testing.T) {
	cfg := &configuration.RetryConfig{
		MaxAttempts:     10,
		InitialInterval: time.Second,
		MaxInterval:     60 * time.Second,
		Multiplier:      2,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 1, want: time.Second},
		{attempt: 2, want: 2 * time.Second},
		{attempt: 3, want: 4 * time.Second},
		{attempt: 6, want: 32 * time.Second},
		{attempt: 7, want: 60 * time.Second}, // capped
		{attempt: 20, want: 60 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, nextDelay(cfg, tt.attempt, 0), "attempt %d", tt.attempt)
	}
}

func TestNextDelayJitterBounds(t *testing.T) {
	cfg := &configuration.RetryConfig{
		MaxAttempts:     10,
		InitialInterval: time.Second,
		MaxInterval:     60 * time.Second,
		Multiplier:      2,
		UseJitter:       true,
	}

	for attempt := 1; attempt <= 8; attempt++ {
		ceiling := time.Second << (attempt - 1)
		if ceiling > cfg.MaxInterval {
			ceiling = cfg.MaxInterval
		}
		for i := 0; i < 200; i++ {
			d := nextDelay(cfg, attempt, 0)
			assert.GreaterOrEqual(t, d, cfg.InitialInterval, "attempt %d", attempt)
			assert.LessOrEqual(t, d, ceiling, "attempt %d", attempt)
		}
	}
}

func TestNextDelayRetryAfterOverride(t *testing.T) {
	cfg := &configuration.RetryConfig{
		MaxAttempts:     10,
		InitialInterval: time.Second,
		MaxInterval:     60 * time.Second,
		Multiplier:      2,
		UseJitter:       true,
	}

	// The provider hint wins over any computed backoff.
	assert.Equal(t, 17*time.Second, nextDelay(cfg, 1, 17*time.Second))

	// But never beyond the policy ceiling.
	assert.Equal(t, 60*time.Second, nextDelay(cfg, 1, 5*time.Minute))
}
