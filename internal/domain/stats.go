package domain

import (
	"math/big"
	"sync"
	"time"
)

// RunStats aggregates counters across one engine run. Raw counters are
// monotonically non-decreasing; only the derived net profit may be negative.
// It is written by the execution controller and the search loop and read by
// periodic reporting and the status server, so all access is mutex-guarded.
type RunStats struct {
	mu sync.Mutex

	totalTrades      int64
	successfulTrades int64
	failedTrades     int64
	oppsChecked      int64
	profitableFound  int64

	totalVolumeWei *big.Int
	totalProfitWei *big.Int
	gasSpentWei    *big.Int

	startTime time.Time
}

// StatsSnapshot is an immutable copy of RunStats counters plus derived
// figures, safe to serialize.
type StatsSnapshot struct {
	TotalTrades          int64     `json:"total_trades"`
	SuccessfulTrades     int64     `json:"successful_trades"`
	FailedTrades         int64     `json:"failed_trades"`
	OpportunitiesChecked int64     `json:"opportunities_checked"`
	ProfitableFound      int64     `json:"profitable_found"`
	TotalVolumeWei       *big.Int  `json:"total_volume_wei"`
	TotalProfitWei       *big.Int  `json:"total_profit_wei"`
	GasSpentWei          *big.Int  `json:"gas_spent_wei"`
	NetProfitWei         *big.Int  `json:"net_profit_wei"`
	SuccessRate          float64   `json:"success_rate"`
	StartTime            time.Time `json:"start_time"`
	UptimeHours          float64   `json:"uptime_hours"`
}

// NewRunStats creates a RunStats anchored at now.
func NewRunStats(now time.Time) *RunStats {
	return &RunStats{
		totalVolumeWei: new(big.Int),
		totalProfitWei: new(big.Int),
		gasSpentWei:    new(big.Int),
		startTime:      now,
	}
}

// RecordChecked adds n to the opportunities-checked counter.
func (s *RunStats) RecordChecked(n int64) {
	s.mu.Lock()
	s.oppsChecked += n
	s.mu.Unlock()
}

// RecordProfitable adds n to the profitable-opportunities counter.
func (s *RunStats) RecordProfitable(n int64) {
	s.mu.Lock()
	s.profitableFound += n
	s.mu.Unlock()
}

// RecordAttempt increments the total-trades counter.
func (s *RunStats) RecordAttempt() {
	s.mu.Lock()
	s.totalTrades++
	s.mu.Unlock()
}

// RecordSuccess records a confirmed trade: round-trip volume, realized
// profit, and the gas spent on the settlement transaction.
func (s *RunStats) RecordSuccess(volumeWei, profitWei, gasCostWei *big.Int) {
	s.mu.Lock()
	s.successfulTrades++
	s.totalVolumeWei.Add(s.totalVolumeWei, volumeWei)
	s.totalProfitWei.Add(s.totalProfitWei, profitWei)
	s.gasSpentWei.Add(s.gasSpentWei, gasCostWei)
	s.mu.Unlock()
}

// RecordFailure records a failed or timed-out attempt.
func (s *RunStats) RecordFailure() {
	s.mu.Lock()
	s.failedTrades++
	s.mu.Unlock()
}

// Checked returns the opportunities-checked counter.
func (s *RunStats) Checked() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.oppsChecked
}

// Snapshot returns a copy of all counters with derived figures computed
// relative to now.
func (s *RunStats) Snapshot(now time.Time) StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		TotalTrades:          s.totalTrades,
		SuccessfulTrades:     s.successfulTrades,
		FailedTrades:         s.failedTrades,
		OpportunitiesChecked: s.oppsChecked,
		ProfitableFound:      s.profitableFound,
		TotalVolumeWei:       new(big.Int).Set(s.totalVolumeWei),
		TotalProfitWei:       new(big.Int).Set(s.totalProfitWei),
		GasSpentWei:          new(big.Int).Set(s.gasSpentWei),
		NetProfitWei:         new(big.Int).Sub(s.totalProfitWei, s.gasSpentWei),
		StartTime:            s.startTime,
		UptimeHours:          now.Sub(s.startTime).Hours(),
	}
	if done := s.successfulTrades + s.failedTrades; done > 0 {
		snap.SuccessRate = float64(s.successfulTrades) / float64(done) * 100
	}
	return snap
}
