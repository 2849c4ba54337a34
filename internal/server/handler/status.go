package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/lpwatch/rangekeeper/internal/domain"
)

// RangeStatusProvider reports the live range status of every position. The
// monitor satisfies it.
type RangeStatusProvider interface {
	Status(ctx context.Context) ([]domain.PositionRangeView, error)
}

// StatusHandler serves the runtime status: mode, uptime, and the live range
// view of every watched position.
type StatusHandler struct {
	mode      string
	provider  RangeStatusProvider
	startedAt time.Time
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(mode string, provider RangeStatusProvider, startedAt time.Time) *StatusHandler {
	return &StatusHandler{mode: mode, provider: provider, startedAt: startedAt}
}

// GetStatus responds with the current mode and per-position range status.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	positions, err := h.provider.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "pool query failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"mode":       h.mode,
		"started_at": h.startedAt.UTC().Format(time.RFC3339),
		"positions":  positions,
	})
}
