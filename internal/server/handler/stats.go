package handler

import (
	"net/http"
	"time"

	"github.com/0xlarry/basearb/internal/domain"
)

// StatsHandler exposes the run statistics counters.
type StatsHandler struct {
	stats *domain.RunStats
}

// NewStatsHandler creates a StatsHandler over the shared counters.
func NewStatsHandler(stats *domain.RunStats) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// GetStats responds with a snapshot of the session counters.
// GET /api/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	snap := h.stats.Snapshot(time.Now())
	writeJSON(w, http.StatusOK, map[string]any{
		"total_trades":          snap.TotalTrades,
		"successful_trades":     snap.SuccessfulTrades,
		"failed_trades":         snap.FailedTrades,
		"opportunities_checked": snap.OpportunitiesChecked,
		"profitable_found":      snap.ProfitableFound,
		"total_volume_wei":      snap.TotalVolumeWei.String(),
		"total_profit_wei":      snap.TotalProfitWei.String(),
		"gas_spent_wei":         snap.GasSpentWei.String(),
		"net_profit_wei":        snap.NetProfitWei.String(),
		"success_rate":          snap.SuccessRate,
		"uptime_hours":          snap.UptimeHours,
	})
}
