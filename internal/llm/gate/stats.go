package gate

import (
	"sync/atomic"
	"time"
)

// gateStats tracks gate activity with atomic counters so hot-path updates
// never contend with readers.
type gateStats struct {
	waiters       atomic.Int64
	waits         atomic.Uint64
	totalWaitNano atomic.Int64
}

func (s *gateStats) recordWait(d time.Duration) {
	if d > 0 {
		s.totalWaitNano.Add(int64(d))
	}
}

func (s *gateStats) snapshot() Stats {
	return Stats{
		Waiters:   s.waiters.Load(),
		Waits:     s.waits.Load(),
		TotalWait: time.Duration(s.totalWaitNano.Load()),
	}
}

// Stats is a point-in-time view of a gate's activity.
type Stats struct {
	// Waiters is the number of callers currently blocked.
	Waiters int64 `json:"waiters"`
	// Waits counts Wait calls that blocked at least once.
	Waits uint64 `json:"waits"`
	// Rounds counts contiguous limited stretches observed by waiters.
	Rounds uint64 `json:"rounds"`
	// TotalWait is the cumulative time callers spent blocked.
	TotalWait time.Duration `json:"total_wait"`
}
