// Package metrics implements the sliding-window throughput accounting for the
// invocation core. A Recorder keeps mutation-ordered records of "sent" and
// "received" events over a fixed time window, computes live RPM/TPM/cost
// figures from them, and supports compensating rollback of individual events
// so aborted invocations never distort the budget.
//
// One mutex serializes every mutation and computed read. Hold times are
// bounded by window occupancy (lazy head trimming); no I/O or suspension
// happens under the lock, so gates and observers may poll at any rate.
package metrics

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/facebookgo/clock"

	"github.com/mkarasu/go-pacer/internal/llm/configuration"
	"github.com/mkarasu/go-pacer/internal/llm/transport"
)

const secondsPerMinute = 60.0

var (
	errWindowInvalid = errors.New("window seconds must be greater than 0")
	errMaxRPMInvalid = errors.New("max RPM cannot be negative")
	errMaxTPMInvalid = errors.New("max TPM cannot be negative")
)

// event is one record in a window sequence. Sent events carry zero tokens
// and cost; received events carry the usage that backs TPM and cost totals.
type event struct {
	id     transport.RequestID
	at     time.Time
	tokens int64
	cost   float64
}

// Recorder tracks request and token throughput in a sliding time window.
// All methods are safe for concurrent use. The zero value is not usable;
// construct with NewRecorder.
type Recorder struct {
	clk    clock.Clock
	window time.Duration

	mu            sync.Mutex
	maxRPM        float64 // 0 = unlimited
	maxTPM        float64 // 0 = unlimited
	sent          []event
	received      []event
	totalSent     uint64
	totalReceived uint64
	totalCost     float64
}

// NewRecorder builds a Recorder for one rate-limit scope. A nil clock
// selects the wall clock.
func NewRecorder(cfg configuration.LimitsConfig, clk clock.Clock) (*Recorder, error) {
	if cfg.WindowSeconds <= 0 {
		return nil, fmt.Errorf("%w, got %f", errWindowInvalid, cfg.WindowSeconds)
	}
	if cfg.MaxRPM < 0 {
		return nil, fmt.Errorf("%w, got %f", errMaxRPMInvalid, cfg.MaxRPM)
	}
	if cfg.MaxTPM < 0 {
		return nil, fmt.Errorf("%w, got %f", errMaxTPMInvalid, cfg.MaxTPM)
	}
	if clk == nil {
		clk = clock.New()
	}

	return &Recorder{
		clk:    clk,
		window: cfg.Window(),
		maxRPM: cfg.MaxRPM,
		maxTPM: cfg.MaxTPM,
	}, nil
}

// Window returns the sliding-window length.
func (r *Recorder) Window() time.Duration { return r.window }

// SetLimits reconfigures the RPM/TPM ceilings at runtime. Zero disables a
// dimension. The new limits take effect on the next gate check.
func (r *Recorder) SetLimits(maxRPM, maxTPM float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if maxRPM >= 0 {
		r.maxRPM = maxRPM
	}
	if maxTPM >= 0 {
		r.maxTPM = maxTPM
	}
}

// Limits returns the current RPM and TPM ceilings (0 = unlimited).
func (r *Recorder) Limits() (maxRPM, maxTPM float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxRPM, r.maxTPM
}

// MarkSent records a request dispatch at the current instant.
// Call immediately before handing the request to the remote provider.
func (r *Recorder) MarkSent(id transport.RequestID) {
	now := r.clk.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.totalSent++
	r.sent = append(r.sent, event{id: id, at: now})
	trim(&r.sent, now.Add(-r.window))
}

// MarkReceived records a completed response with its token usage and cost.
// A zero-token response still counts toward TotalReceived and RePM; it just
// contributes nothing to TPM.
func (r *Recorder) MarkReceived(id transport.RequestID, tokens int64, cost float64) {
	now := r.clk.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.totalReceived++
	r.totalCost += cost
	r.received = append(r.received, event{id: id, at: now, tokens: tokens, cost: cost})
	trim(&r.received, now.Add(-r.window))
}

// UnmarkSent removes the sent record for id wherever it sits in the window,
// reversing its RPM and TotalSent contribution. It reports whether a record
// was found; records that already aged out of the window return false.
//
// Failures resolve out of FIFO order, so removal is by ID. Non-tail removal
// rebuilds the tail of the sequence; the cost is O(window occupancy) and is
// the accepted price of out-of-order compensation.
func (r *Recorder) UnmarkSent(id transport.RequestID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := indexOf(r.sent, id)
	if !ok {
		return false
	}
	r.sent = append(r.sent[:i], r.sent[i+1:]...)
	r.totalSent--
	return true
}

// UnmarkReceived is the symmetric rollback for a received record, reversing
// its TPM, cost, and TotalReceived contributions.
func (r *Recorder) UnmarkReceived(id transport.RequestID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := indexOf(r.received, id)
	if !ok {
		return false
	}
	r.totalCost -= r.received[i].cost
	r.received = append(r.received[:i], r.received[i+1:]...)
	r.totalReceived--
	return true
}

// RPM returns the live requests-per-minute figure: sends still inside the
// window, scaled to a per-minute rate regardless of window length.
func (r *Recorder) RPM() float64 {
	now := r.clk.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rpmLocked(now)
}

// RePM returns the live responses-per-minute figure over the same window.
func (r *Recorder) RePM() float64 {
	now := r.clk.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.repmLocked(now)
}

// TPM returns the live tokens-per-minute figure: tokens of responses still
// inside the window, scaled to a per-minute rate.
func (r *Recorder) TPM() float64 {
	now := r.clk.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tpmLocked(now)
}

// IsRPMLimited reports whether the live RPM has reached the configured
// ceiling. Always false when no ceiling is set.
func (r *Recorder) IsRPMLimited() bool {
	limited, _ := r.RPMRelief()
	return limited
}

// IsTPMLimited reports whether the live TPM has reached the configured
// ceiling. Always false when no ceiling is set.
func (r *Recorder) IsTPMLimited() bool {
	limited, _ := r.TPMRelief()
	return limited
}

// RPMRelief reports whether the RPM budget is exhausted and, if so, how long
// until the oldest sent record ages out of the window. It is the probe the
// RPM gate polls between sleeps.
func (r *Recorder) RPMRelief() (limited bool, wait time.Duration) {
	now := r.clk.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxRPM <= 0 || r.rpmLocked(now) < r.maxRPM {
		return false, 0
	}
	return true, r.reliefLocked(r.sent, now)
}

// TPMRelief is the TPM counterpart of RPMRelief, keyed on the oldest
// received record.
func (r *Recorder) TPMRelief() (limited bool, wait time.Duration) {
	now := r.clk.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxTPM <= 0 || r.tpmLocked(now) < r.maxTPM {
		return false, 0
	}
	return true, r.reliefLocked(r.received, now)
}

// Reset clears every window sequence and cumulative total, preserving the
// configured limits.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent = nil
	r.received = nil
	r.totalSent = 0
	r.totalReceived = 0
	r.totalCost = 0
}

// rpmLocked, repmLocked, and tpmLocked trim and compute under the held lock.

func (r *Recorder) rpmLocked(now time.Time) float64 {
	trim(&r.sent, now.Add(-r.window))
	return float64(len(r.sent)) * secondsPerMinute / r.window.Seconds()
}

func (r *Recorder) repmLocked(now time.Time) float64 {
	trim(&r.received, now.Add(-r.window))
	return float64(len(r.received)) * secondsPerMinute / r.window.Seconds()
}

func (r *Recorder) tpmLocked(now time.Time) float64 {
	trim(&r.received, now.Add(-r.window))
	var total int64
	for _, e := range r.received {
		total += e.tokens
	}
	return float64(total) * secondsPerMinute / r.window.Seconds()
}

// reliefLocked computes the time until the oldest record of a just-trimmed
// sequence leaves the window. The sequence is non-empty whenever the caller
// observed a non-zero rate.
func (r *Recorder) reliefLocked(q []event, now time.Time) time.Duration {
	if len(q) == 0 {
		return 0
	}
	wait := r.window - now.Sub(q[0].at)
	if wait < 0 {
		return 0
	}
	return wait
}

// trim drops records that left the window, oldest first. A record expires
// the instant its age reaches the full window, so the live count covers the
// half-open interval (now-window, now].
func trim(q *[]event, cutoff time.Time) {
	s := *q
	i := 0
	for i < len(s) && !s[i].at.After(cutoff) {
		i++
	}
	if i > 0 {
		*q = s[i:]
	}
}

// indexOf locates a record by ID, scanning oldest-first since rollbacks
// usually target older entries.
func indexOf(q []event, id transport.RequestID) (int, bool) {
	for i := range q {
		if q[i].id == id {
			return i, true
		}
	}
	return -1, false
}
