// Package llm is the admission-control and resilience core that client code
// drives. A Client stacks concurrency capping, optional spike arrest,
// sliding-window RPM/TPM gating, and classified retry around an injected
// transport.Handler, and keeps the window accounting honest with
// compensating rollback when an invocation dies on any path.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/facebookgo/clock"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/mkarasu/go-pacer/internal/llm/business"
	"github.com/mkarasu/go-pacer/internal/llm/configuration"
	llmerrors "github.com/mkarasu/go-pacer/internal/llm/errors"
	"github.com/mkarasu/go-pacer/internal/llm/gate"
	"github.com/mkarasu/go-pacer/internal/llm/metrics"
	"github.com/mkarasu/go-pacer/internal/llm/retry"
	"github.com/mkarasu/go-pacer/internal/llm/transport"
)

var (
	errNilHandler             = errors.New("handler must not be nil")
	errNilRequest             = errors.New("request must not be nil")
	errMaxConcurrencyInvalid  = errors.New("max concurrency must not be negative")
	errSpikeRateInvalid       = errors.New("spike arrest requests per second must be greater than 0")
	errSpikeBurstInvalid      = errors.New("spike arrest burst must be at least 1")
	errMissingProviderOrModel = errors.New("request requires provider and model")
)

// Result is the full outcome of one logical invocation: the response when
// one was obtained, the per-attempt history either way, and the attributed
// cost. On failure Response is nil and the returned error classifies why.
type Result struct {
	Response       *transport.Response   `json:"response,omitempty"`
	Attempts       []retry.AttemptRecord `json:"attempts"`
	CostMilliCents int64                 `json:"cost_milli_cents"`
	RequestID      transport.RequestID   `json:"request_id"`
}

// Client coordinates admission and resilience for LLM invocations.
// Construct with New; safe for concurrent use.
type Client struct {
	cfg     configuration.Config
	handler transport.Handler
	rec     *metrics.Recorder
	rpmGate *gate.Gate
	tpmGate *gate.Gate
	orch    *retry.Orchestrator
	pricing business.PricingRegistry
	sem     *semaphore.Weighted
	spike   *rate.Limiter
	logger  *slog.Logger
}

// Option customizes a Client beyond its configuration.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	pricing business.PricingRegistry
}

// WithLogger sets the logger for the client and every stage it builds.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithPricing replaces the built-in pricing registry, e.g. with one backed
// by live provider rates.
func WithPricing(reg business.PricingRegistry) Option {
	return func(o *options) { o.pricing = reg }
}

// New builds a Client around the injected handler, which performs the actual
// provider call. The handler sees one Handle call per attempt and must
// return normalized usage on success.
func New(cfg configuration.Config, handler transport.Handler, opts ...Option) (*Client, error) {
	if handler == nil {
		return nil, errNilHandler
	}
	if cfg.MaxConcurrency == 0 {
		cfg.MaxConcurrency = configuration.DefaultMaxConcurrency
	}
	if cfg.MaxConcurrency < 1 {
		return nil, fmt.Errorf("%w, got %d", errMaxConcurrencyInvalid, cfg.MaxConcurrency)
	}
	if cfg.SpikeArrest.Enabled {
		if cfg.SpikeArrest.RequestsPerSecond <= 0 {
			return nil, fmt.Errorf("%w, got %f", errSpikeRateInvalid, cfg.SpikeArrest.RequestsPerSecond)
		}
		if cfg.SpikeArrest.Burst < 1 {
			return nil, fmt.Errorf("%w, got %d", errSpikeBurstInvalid, cfg.SpikeArrest.Burst)
		}
	}

	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.With("component", "llm")

	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	rec, err := metrics.NewRecorder(cfg.Limits, clk)
	if err != nil {
		return nil, fmt.Errorf("recorder: %w", err)
	}

	rpmGate, err := gate.New("rpm", rec.RPMRelief, clk, logger)
	if err != nil {
		return nil, fmt.Errorf("rpm gate: %w", err)
	}
	tpmGate, err := gate.New("tpm", rec.TPMRelief, clk, logger)
	if err != nil {
		return nil, fmt.Errorf("tpm gate: %w", err)
	}

	orch, err := retry.NewOrchestrator(cfg.Retry, clk, logger)
	if err != nil {
		return nil, fmt.Errorf("retry: %w", err)
	}

	pricing := o.pricing
	if pricing == nil && cfg.Pricing.Enabled {
		pricing = business.NewInMemoryPricingRegistry(cfg.Pricing)
	}

	var spike *rate.Limiter
	if cfg.SpikeArrest.Enabled {
		spike = rate.NewLimiter(rate.Limit(cfg.SpikeArrest.RequestsPerSecond), cfg.SpikeArrest.Burst)
	}

	if cfg.Observability.LogRequests {
		handler = requestLogging(logger, cfg.Observability)(handler)
	}

	return &Client{
		cfg:     cfg,
		handler: handler,
		rec:     rec,
		rpmGate: rpmGate,
		tpmGate: tpmGate,
		orch:    orch,
		pricing: pricing,
		sem:     semaphore.NewWeighted(cfg.MaxConcurrency),
		spike:   spike,
		logger:  logger,
	}, nil
}

// Do runs one logical invocation through the full admission pipeline:
// spike arrest, the RPM gate, the TPM gate, the concurrency cap, then the
// retry orchestrator around the handler. Rate waits happen before the
// concurrency slot is taken, so a caller parked at a gate never pins a slot
// that an admitted invocation could use. An invocation counts against the
// rate window once, no matter how many attempts it takes; an invocation
// that fails or is cancelled after dispatch is rolled back so it never
// occupies budget it did not use.
//
// Do always returns a non-nil Result; on failure it carries whatever
// attempt history exists. The error, when non-nil, is a
// *errors.InvocationError wrapping the underlying cause.
func (c *Client) Do(ctx context.Context, req *transport.Request) (*Result, error) {
	if req == nil {
		return &Result{}, errNilRequest
	}
	if req.Provider == "" || req.Model == "" {
		return &Result{}, fmt.Errorf("%w, got %q/%q", errMissingProviderOrModel, req.Provider, req.Model)
	}
	if req.ID == "" {
		req.ID = transport.NewRequestID()
	}
	res := &Result{RequestID: req.ID}

	if c.spike != nil {
		if err := c.spike.Wait(ctx); err != nil {
			return res, c.failure("spike arrest interrupted", err)
		}
	}

	if err := c.rpmGate.Wait(ctx); err != nil {
		return res, c.failure("rpm admission interrupted", err)
	}
	if err := c.tpmGate.Wait(ctx); err != nil {
		return res, c.failure("tpm admission interrupted", err)
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return res, c.failure("concurrency slot unavailable", err)
	}
	defer c.sem.Release(1)

	// The send is recorded once for the logical invocation; retries below
	// this point are invisible to the rate window. Every recorded send must
	// resolve exactly once: MarkReceived on success, rollback otherwise.
	c.rec.MarkSent(req.ID)
	resolved := false
	defer func() {
		if !resolved {
			c.rec.UnmarkSent(req.ID)
		}
	}()

	resp, attempts, err := c.orch.Execute(ctx, c.handler, req)
	res.Attempts = attempts
	if err != nil {
		return res, c.failure("invocation failed", err)
	}

	var costMC int64
	if c.pricing != nil {
		costMC, err = c.pricing.Cost(req.Provider, req.Model, resp.Usage)
		if err != nil {
			// Fail-closed pricing: the provider call happened and consumed
			// tokens, so the window keeps the traffic; only the cost is
			// unattributed.
			c.rec.MarkReceived(req.ID, resp.Usage.TotalTokens, 0)
			resolved = true
			res.Response = resp
			return res, c.failure("cost attribution failed", err)
		}
	}

	c.rec.MarkReceived(req.ID, resp.Usage.TotalTokens, float64(costMC)/business.MilliCentsPerDollar)
	resolved = true

	resp.EstimatedCostMilliCents = costMC
	res.Response = resp
	res.CostMilliCents = costMC
	return res, nil
}

// failure wraps err as the coordinator's structured error, preserving an
// existing classification when one is already attached.
func (c *Client) failure(msg string, err error) error {
	var inv *llmerrors.InvocationError
	if errors.As(err, &inv) {
		return err
	}
	return &llmerrors.InvocationError{
		Kind:    llmerrors.Classify(err),
		Message: msg,
		Cause:   err,
	}
}

// Snapshot returns the current window figures and cumulative totals.
func (c *Client) Snapshot() metrics.Snapshot { return c.rec.Snapshot() }

// SetLimits changes the RPM/TPM ceilings at runtime (0 disables a
// dimension). Blocked callers observe the new limits on their next probe.
func (c *Client) SetLimits(maxRPM, maxTPM float64) { c.rec.SetLimits(maxRPM, maxTPM) }

// SetRetryConfig swaps the retry policy for future invocations.
func (c *Client) SetRetryConfig(cfg configuration.RetryConfig) error {
	return c.orch.SetConfig(cfg)
}

// ResetMetrics clears the rate window and cumulative totals.
func (c *Client) ResetMetrics() { c.rec.Reset() }

// GateStats returns the RPM and TPM gate counters.
func (c *Client) GateStats() (rpm, tpm gate.Stats) {
	return c.rpmGate.Stats(), c.tpmGate.Stats()
}

// RetryStats returns the retry orchestrator's counters.
func (c *Client) RetryStats() retry.Stats { return c.orch.Stats() }
