package handler

import (
	"net/http"
	"time"

	"github.com/0xlarry/basearb/internal/domain"
)

// AttemptsHandler serves the execution attempt journal.
type AttemptsHandler struct {
	store domain.AttemptStore // nil when no journal is configured
}

// NewAttemptsHandler creates an AttemptsHandler. store may be nil.
func NewAttemptsHandler(store domain.AttemptStore) *AttemptsHandler {
	return &AttemptsHandler{store: store}
}

// ListRecent responds with the most recent execution attempts, newest first.
// GET /api/attempts/recent
func (h *AttemptsHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "attempt journal not configured")
		return
	}

	recs, err := h.store.ListRecent(r.Context(), parseLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing attempts failed")
		return
	}

	out := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		out = append(out, map[string]any{
			"id":              rec.ID,
			"direction":       string(rec.Direction),
			"amount_wei":      rec.AmountWei.String(),
			"expected_profit": rec.ExpectedProfit.String(),
			"tx_hash":         rec.TxHash,
			"gas_used":        rec.GasUsed,
			"gas_price_wei":   rec.GasPriceWei.String(),
			"success":         rec.Success,
			"failure_reason":  rec.FailureReason,
			"created_at":      rec.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"attempts": out})
}
