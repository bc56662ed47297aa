package retry

import "sync/atomic"

// retryStats tracks execution outcomes with atomic counters.
type retryStats struct {
	successes  atomic.Uint64
	recoveries atomic.Uint64
	retries    atomic.Uint64
	terminal   atomic.Uint64
	exhausted  atomic.Uint64
}

func (s *retryStats) recordSuccess(recovered bool) {
	s.successes.Add(1)
	if recovered {
		s.recoveries.Add(1)
	}
}

func (s *retryStats) snapshot() Stats {
	return Stats{
		Successes:  s.successes.Load(),
		Recoveries: s.recoveries.Load(),
		Retries:    s.retries.Load(),
		Terminal:   s.terminal.Load(),
		Exhausted:  s.exhausted.Load(),
	}
}

// Stats is a point-in-time view of retry activity.
type Stats struct {
	// Successes counts executions that returned a response.
	Successes uint64 `json:"successes"`
	// Recoveries counts successes that needed more than one attempt.
	Recoveries uint64 `json:"recoveries"`
	// Retries counts individual backoff pauses taken.
	Retries uint64 `json:"retries"`
	// Terminal counts executions aborted on a non-retryable failure.
	Terminal uint64 `json:"terminal"`
	// Exhausted counts executions that ran out of attempts.
	Exhausted uint64 `json:"exhausted"`
}
