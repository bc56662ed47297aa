package metrics

import "time"

// Snapshot is an immutable, mutually consistent view of the recorder taken
// under a single critical section. Safe to hand to any number of observers.
type Snapshot struct {
	RPM           float64   `json:"rpm"`
	RePM          float64   `json:"repm"`
	TPM           float64   `json:"tpm"`
	TotalSent     uint64    `json:"total_sent"`
	TotalReceived uint64    `json:"total_received"`
	TotalCost     float64   `json:"total_cost"` // cumulative USD
	TakenAt       time.Time `json:"taken_at"`
}

// Snapshot returns the current throughput figures and cumulative totals,
// all computed at one instant.
func (r *Recorder) Snapshot() Snapshot {
	now := r.clk.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	return Snapshot{
		RPM:           r.rpmLocked(now),
		RePM:          r.repmLocked(now),
		TPM:           r.tpmLocked(now),
		TotalSent:     r.totalSent,
		TotalReceived: r.totalReceived,
		TotalCost:     r.totalCost,
		TakenAt:       now,
	}
}
