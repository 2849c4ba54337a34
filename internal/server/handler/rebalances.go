package handler

import (
	"net/http"

	"github.com/lpwatch/rangekeeper/internal/domain"
)

// RebalanceHandler serves rebalance history from the store.
type RebalanceHandler struct {
	store domain.RebalanceStore
}

// NewRebalanceHandler creates a RebalanceHandler.
func NewRebalanceHandler(store domain.RebalanceStore) *RebalanceHandler {
	return &RebalanceHandler{store: store}
}

// ListRebalances responds with recorded rebalance runs, newest first.
// GET /api/rebalances?limit=&offset=&since=&until=
func (h *RebalanceHandler) ListRebalances(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotImplemented, "rebalance history requires postgres")
		return
	}

	records, err := h.store.List(r.Context(), parseListOpts(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []domain.Rebalance{}
	}
	writeJSON(w, http.StatusOK, records)
}
