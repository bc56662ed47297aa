package configuration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.InDelta(t, DefaultWindowSeconds, cfg.Limits.WindowSeconds, 0.0001)
	assert.InDelta(t, float64(DefaultMaxRPM), cfg.Limits.MaxRPM, 0.0001)
	assert.Zero(t, cfg.Limits.MaxTPM, "tokens-per-minute is uncapped by default")

	assert.Equal(t, DefaultMaxAttempts, cfg.Retry.MaxAttempts)
	assert.Equal(t, DefaultInitialInterval, cfg.Retry.InitialInterval)
	assert.Equal(t, DefaultMaxInterval, cfg.Retry.MaxInterval)
	assert.InDelta(t, DefaultBackoffMultiplier, cfg.Retry.Multiplier, 0.0001)
	assert.True(t, cfg.Retry.UseJitter)

	assert.Equal(t, int64(DefaultMaxConcurrency), cfg.MaxConcurrency)
	assert.False(t, cfg.SpikeArrest.Enabled)
	assert.True(t, cfg.Pricing.Enabled)
	assert.True(t, cfg.Observability.RedactPayloads)
}

func TestLimitsConfigWindow(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
		want    time.Duration
	}{
		{name: "default minute window", seconds: 60, want: time.Minute},
		{name: "sub-second window", seconds: 0.5, want: 500 * time.Millisecond},
		{name: "ten second window", seconds: 10, want: 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LimitsConfig{WindowSeconds: tt.seconds}
			assert.Equal(t, tt.want, cfg.Window())
		})
	}
}
