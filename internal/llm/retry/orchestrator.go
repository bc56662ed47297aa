// Package retry drives classified retry around a single logical invocation.
// Transient failures are retried with jittered exponential backoff up to a
// configured attempt ceiling; terminal failures abort immediately. The
// orchestrator runs inside the admission boundary: attempts it spawns are
// one logical request to the rate accounting above it.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/facebookgo/clock"

	"github.com/mkarasu/go-pacer/internal/llm/configuration"
	llmerrors "github.com/mkarasu/go-pacer/internal/llm/errors"
	"github.com/mkarasu/go-pacer/internal/llm/transport"
)

var (
	errMaxAttemptsInvalid = errors.New("max attempts must be at least 1")
	errInitialInvalid     = errors.New("initial interval must be greater than 0")
	errMaxIntervalInvalid = errors.New("max interval cannot be below initial interval")
	errMultiplierInvalid  = errors.New("backoff multiplier must be at least 1")
)

// AttemptRecord captures one attempt's outcome for the invocation history.
type AttemptRecord struct {
	Attempt   int                 `json:"attempt"`
	StartedAt time.Time           `json:"started_at"`
	EndedAt   time.Time           `json:"ended_at"`
	Succeeded bool                `json:"succeeded"`
	Kind      llmerrors.ErrorKind `json:"kind,omitempty"`
}

// Orchestrator executes a handler with retry. The retry policy is swappable
// at runtime; in-flight executions keep the policy they started with.
type Orchestrator struct {
	cfg    atomic.Pointer[configuration.RetryConfig]
	clk    clock.Clock
	logger *slog.Logger
	stats  retryStats
}

// NewOrchestrator validates the policy and builds an orchestrator. A nil
// clock selects the wall clock; a nil logger selects slog.Default.
func NewOrchestrator(cfg configuration.RetryConfig, clk clock.Clock, logger *slog.Logger) (*Orchestrator, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		clk:    clk,
		logger: logger.With("component", "retry"),
	}
	o.cfg.Store(&cfg)
	return o, nil
}

func validateConfig(cfg configuration.RetryConfig) error {
	if cfg.MaxAttempts < 1 {
		return fmt.Errorf("%w, got %d", errMaxAttemptsInvalid, cfg.MaxAttempts)
	}
	if cfg.InitialInterval <= 0 {
		return fmt.Errorf("%w, got %s", errInitialInvalid, cfg.InitialInterval)
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		return fmt.Errorf("%w, got %s < %s", errMaxIntervalInvalid, cfg.MaxInterval, cfg.InitialInterval)
	}
	if cfg.Multiplier < 1 {
		return fmt.Errorf("%w, got %f", errMultiplierInvalid, cfg.Multiplier)
	}
	return nil
}

// SetConfig swaps the retry policy. Executions already in flight finish
// under the policy they loaded at start.
func (o *Orchestrator) SetConfig(cfg configuration.RetryConfig) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}
	o.cfg.Store(&cfg)
	return nil
}

// Config returns the currently active retry policy.
func (o *Orchestrator) Config() configuration.RetryConfig { return *o.cfg.Load() }

// Stats returns a point-in-time view of the orchestrator's counters.
func (o *Orchestrator) Stats() Stats { return o.stats.snapshot() }

// Execute runs handler until it succeeds, fails terminally, exhausts the
// attempt budget, or ctx ends. It always returns the attempt history, even
// alongside an error, so callers can surface what was tried.
func (o *Orchestrator) Execute(
	ctx context.Context,
	handler transport.Handler,
	req *transport.Request,
) (*transport.Response, []AttemptRecord, error) {
	cfg := o.cfg.Load()
	attempts := make([]AttemptRecord, 0, cfg.MaxAttempts)

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, attempts, err
		}

		rec := AttemptRecord{Attempt: attempt, StartedAt: o.clk.Now()}
		resp, err := handler.Handle(ctx, req)
		rec.EndedAt = o.clk.Now()

		if err == nil {
			rec.Succeeded = true
			attempts = append(attempts, rec)
			o.stats.recordSuccess(attempt > 1)
			return resp, attempts, nil
		}

		kind := llmerrors.Classify(err)
		rec.Kind = kind
		attempts = append(attempts, rec)
		lastErr = err

		if !kind.Retryable() {
			o.stats.terminal.Add(1)
			o.logger.Debug("terminal failure, not retrying",
				"request_id", req.ID,
				"kind", kind,
				"attempt", attempt,
				"error", err)
			return nil, attempts, err
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		delay := nextDelay(cfg, attempt, llmerrors.RetryAfter(err))
		o.stats.retries.Add(1)
		o.logger.Warn("transient failure, backing off",
			"request_id", req.ID,
			"kind", kind,
			"attempt", attempt,
			"delay", delay,
			"error", err)

		if err := o.sleep(ctx, delay); err != nil {
			return nil, attempts, err
		}
	}

	o.stats.exhausted.Add(1)
	return nil, attempts, fmt.Errorf("%w after %d attempts: %w",
		llmerrors.ErrMaxAttemptsExceeded, cfg.MaxAttempts, lastErr)
}

func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := o.clk.Timer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
