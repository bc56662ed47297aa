// Package gate provides cooperative blocking admission for rate-limited
// dimensions. A Gate owns no budget of its own: it polls a Probe for the
// current verdict and the earliest moment relief is possible, sleeps until
// then, and re-checks. Wakers race for the freed budget; there is no
// fairness ordering among waiters.
package gate

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/facebookgo/clock"
)

// warnThreshold filters noise out of the exhaustion warning: rounds whose
// computed relief never reaches it close before anyone would act on a log
// line, so they stay silent.
const warnThreshold = 100 * time.Millisecond

// Probe reports whether the guarded dimension is at its ceiling and, when
// limited, how long until the budget can next free up. Probes must be fast
// and safe for concurrent use; the recorder's relief methods satisfy this.
type Probe func() (limited bool, wait time.Duration)

var errNilProbe = errors.New("gate probe must not be nil")

// Gate blocks callers while its probe reports the dimension limited.
//
// A contiguous stretch of limited verdicts is one round: the round opens on
// the first limited probe after an open one and closes when any caller sees
// the budget open again. Each round is logged at most once, by whichever
// waiter first observes relief above warnThreshold.
type Gate struct {
	name   string
	probe  Probe
	clk    clock.Clock
	logger *slog.Logger
	stats  gateStats

	mu            sync.Mutex
	limited       bool
	round         uint64
	reportedRound uint64
}

// New builds a gate for one rate dimension. A nil clock selects the wall
// clock; a nil logger selects slog.Default.
func New(name string, probe Probe, clk clock.Clock, logger *slog.Logger) (*Gate, error) {
	if probe == nil {
		return nil, errNilProbe
	}
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Gate{
		name:   name,
		probe:  probe,
		clk:    clk,
		logger: logger.With("component", "gate", "gate", name),
	}, nil
}

// Wait blocks until the probe reports the dimension open or ctx is done.
// It returns nil on admission and ctx.Err() on cancellation. Admission is
// advisory: the caller consumes budget after Wait returns, so concurrent
// wakers may briefly overshoot the ceiling by the number of racers.
func (g *Gate) Wait(ctx context.Context) error {
	blocked := false
	started := g.clk.Now()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		limited, wait := g.probe()
		if !limited {
			if g.noteOpen() {
				g.logger.Info("rate budget reopened")
			}
			if blocked {
				g.stats.recordWait(g.clk.Now().Sub(started))
			}
			return nil
		}

		if !blocked {
			blocked = true
			g.stats.waits.Add(1)
		}

		if round, report := g.noteLimited(wait); report {
			g.logger.Warn("rate budget exhausted, pausing",
				"round", round,
				"wait", wait,
				"waiters", g.Waiters()+1)
		}

		if err := g.pause(ctx, wait); err != nil {
			g.stats.recordWait(g.clk.Now().Sub(started))
			return err
		}
	}
}

// noteLimited registers a limited verdict, opening a new round on the first
// one after the budget was open. It reports true at most once per round, and
// only when the computed relief is long enough to be worth a log line.
func (g *Gate) noteLimited(wait time.Duration) (round uint64, report bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.limited {
		g.limited = true
		g.round++
	}
	if wait >= warnThreshold && g.reportedRound != g.round {
		g.reportedRound = g.round
		return g.round, true
	}
	return g.round, false
}

// noteOpen closes the current round. It reports true only when the round
// was warned about, so the reopen line pairs with the exhaustion line and
// silent rounds stay silent end to end.
func (g *Gate) noteOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.limited {
		return false
	}
	g.limited = false
	return g.reportedRound == g.round
}

// pause sleeps for d or until cancellation, counting the caller as a waiter
// for the duration. Zero relief yields the processor instead of sleeping so
// racing wakers cannot monopolize it.
func (g *Gate) pause(ctx context.Context, d time.Duration) error {
	g.stats.waiters.Add(1)
	defer g.stats.waiters.Add(-1)

	if d <= 0 {
		runtime.Gosched()
		return ctx.Err()
	}

	t := g.clk.Timer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Waiters returns the number of callers currently paused inside Wait.
func (g *Gate) Waiters() int64 { return g.stats.waiters.Load() }

// Name returns the gate's dimension label.
func (g *Gate) Name() string { return g.name }

// Stats returns a point-in-time view of the gate's counters.
func (g *Gate) Stats() Stats {
	s := g.stats.snapshot()
	g.mu.Lock()
	s.Rounds = g.round
	g.mu.Unlock()
	return s
}
