package domain

import (
	"math/big"
	"testing"
	"time"
)

func TestRunStatsSnapshot(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	stats := NewRunStats(start)

	stats.RecordChecked(16)
	stats.RecordProfitable(3)

	stats.RecordAttempt()
	stats.RecordSuccess(big.NewInt(2_000), big.NewInt(100), big.NewInt(30))
	stats.RecordAttempt()
	stats.RecordFailure()

	snap := stats.Snapshot(start.Add(2 * time.Hour))

	if snap.OpportunitiesChecked != 16 {
		t.Errorf("checked = %d, want 16", snap.OpportunitiesChecked)
	}
	if snap.ProfitableFound != 3 {
		t.Errorf("profitable = %d, want 3", snap.ProfitableFound)
	}
	if snap.TotalTrades != 2 || snap.SuccessfulTrades != 1 || snap.FailedTrades != 1 {
		t.Errorf("trades = %d/%d/%d, want 2/1/1",
			snap.TotalTrades, snap.SuccessfulTrades, snap.FailedTrades)
	}
	if snap.SuccessRate != 50 {
		t.Errorf("success rate = %f, want 50", snap.SuccessRate)
	}
	if snap.NetProfitWei.Cmp(big.NewInt(70)) != 0 {
		t.Errorf("net profit = %s, want 70", snap.NetProfitWei)
	}
	if snap.UptimeHours != 2 {
		t.Errorf("uptime = %f, want 2", snap.UptimeHours)
	}
}

func TestRunStatsNetProfitCanGoNegative(t *testing.T) {
	stats := NewRunStats(time.Now())
	stats.RecordAttempt()
	stats.RecordSuccess(big.NewInt(100), big.NewInt(10), big.NewInt(40))

	snap := stats.Snapshot(time.Now())
	if snap.NetProfitWei.Cmp(big.NewInt(-30)) != 0 {
		t.Errorf("net profit = %s, want -30", snap.NetProfitWei)
	}
}

func TestRunStatsSnapshotIsolation(t *testing.T) {
	stats := NewRunStats(time.Now())
	stats.RecordAttempt()
	stats.RecordSuccess(big.NewInt(100), big.NewInt(10), big.NewInt(1))

	snap := stats.Snapshot(time.Now())
	snap.TotalProfitWei.SetInt64(999)

	if got := stats.Snapshot(time.Now()).TotalProfitWei; got.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("mutating a snapshot leaked into the counters: %s", got)
	}
}
