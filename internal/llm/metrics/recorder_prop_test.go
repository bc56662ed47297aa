package metrics

import (
	"testing"
	"testing/quick"
	"time"

	"github.com/facebookgo/clock"

	"github.com/mkarasu/go-pacer/internal/llm/configuration"
	"github.com/mkarasu/go-pacer/internal/llm/transport"
)

// Property: every send that is rolled back leaves no trace: after N sends
// and K rollbacks of distinct recorded IDs, the window holds exactly N-K
// records and TotalSent matches.
func TestRecorderRollbackConservation(t *testing.T) {
	f := func(sends uint8, rollbacks uint8) bool {
		n := int(sends%64) + 1
		k := int(rollbacks) % (n + 1)

		rec, err := NewRecorder(configuration.LimitsConfig{WindowSeconds: 60}, clock.NewMock())
		if err != nil {
			return false
		}

		ids := make([]transport.RequestID, n)
		for i := range ids {
			ids[i] = transport.NewRequestID()
			rec.MarkSent(ids[i])
		}
		for i := 0; i < k; i++ {
			if !rec.UnmarkSent(ids[i]) {
				return false
			}
		}

		want := float64(n - k)
		return rec.RPM() == want && rec.Snapshot().TotalSent == uint64(n-k)
	}

	if err := quick.Check(f, &quick.Config{MaxCount: 200}); err != nil {
		t.Error(err)
	}
}

// Property: TPM equals the token sum of in-window responses scaled to a
// per-minute rate, for arbitrary token amounts and spacing within the window.
func TestRecorderTPMMatchesTokenSum(t *testing.T) {
	f := func(amounts []uint16, gapsSec []uint8) bool {
		clk := clock.NewMock()
		rec, err := NewRecorder(configuration.LimitsConfig{WindowSeconds: 3600}, clk)
		if err != nil {
			return false
		}

		if len(amounts) > 32 {
			amounts = amounts[:32]
		}
		var sum int64
		for i, a := range amounts {
			if i < len(gapsSec) {
				clk.Add(time.Duration(gapsSec[i]%30) * time.Second)
			}
			rec.MarkReceived(transport.NewRequestID(), int64(a), 0)
			sum += int64(a)
		}

		want := float64(sum) * 60 / 3600
		got := rec.TPM()
		diff := got - want
		if diff < 0 {
			diff = -diff
		}
		return diff < 1e-6
	}

	if err := quick.Check(f, &quick.Config{MaxCount: 100}); err != nil {
		t.Error(err)
	}
}

// Property: relief is never negative and never exceeds the window, and a
// limited recorder becomes unlimited once relief elapses.
func TestRecorderReliefBounds(t *testing.T) {
	f := func(spreadSec uint8) bool {
		clk := clock.NewMock()
		rec, err := NewRecorder(configuration.LimitsConfig{MaxRPM: 2, WindowSeconds: 60}, clk)
		if err != nil {
			return false
		}

		rec.MarkSent(transport.NewRequestID())
		clk.Add(time.Duration(spreadSec%59) * time.Second)
		rec.MarkSent(transport.NewRequestID())

		limited, wait := rec.RPMRelief()
		if !limited || wait < 0 || wait > rec.Window() {
			return false
		}

		clk.Add(wait)
		limited, _ = rec.RPMRelief()
		return !limited
	}

	if err := quick.Check(f, &quick.Config{MaxCount: 200}); err != nil {
		t.Error(err)
	}
}
