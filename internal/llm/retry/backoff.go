package retry

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/mkarasu/go-pacer/internal/llm/configuration"
)

// nextDelay computes the pause before attempt+1. An explicit provider
// Retry-After hint overrides the computed backoff; otherwise the delay grows
// exponentially with randomized jitter so synchronized failures fan out
// instead of retrying in lockstep.
func nextDelay(cfg *configuration.RetryConfig, attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		// Honor the provider's hint, bounded by the policy ceiling.
		if retryAfter > cfg.MaxInterval {
			return cfg.MaxInterval
		}
		return retryAfter
	}

	ceiling := float64(cfg.InitialInterval) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if ceiling > float64(cfg.MaxInterval) {
		ceiling = float64(cfg.MaxInterval)
	}

	floor := float64(cfg.InitialInterval)
	if !cfg.UseJitter || ceiling <= floor {
		return time.Duration(ceiling)
	}

	// Uniform in [InitialInterval, ceiling].
	return time.Duration(floor + rand.Float64()*(ceiling-floor))
}
