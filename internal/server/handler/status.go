package handler

import (
	"net/http"
	"time"
)

// StatusHandler serves runtime metadata about the engine instance.
type StatusHandler struct {
	Mode      string
	Account   string
	ChainID   int64
	StartedAt time.Time
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(mode, account string, chainID int64, startedAt time.Time) *StatusHandler {
	return &StatusHandler{Mode: mode, Account: account, ChainID: chainID, StartedAt: startedAt}
}

// GetStatus responds with the engine mode, account, and uptime.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.Mode,
		"account":        h.Account,
		"chain_id":       h.ChainID,
		"started_at":     h.StartedAt.UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.StartedAt).Seconds()),
	})
}
