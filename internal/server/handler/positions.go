package handler

import (
	"net/http"
)

// PositionHandler serves the live position range view.
type PositionHandler struct {
	provider RangeStatusProvider
}

// NewPositionHandler creates a PositionHandler.
func NewPositionHandler(provider RangeStatusProvider) *PositionHandler {
	return &PositionHandler{provider: provider}
}

// ListPositions responds with every watched position and its range status.
// GET /api/positions
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.provider.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "pool query failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, positions)
}
