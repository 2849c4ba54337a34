package handler

import (
	"net/http"

	"github.com/lpwatch/rangekeeper/internal/domain"
)

// AlertHandler serves the alert audit trail from the store.
type AlertHandler struct {
	store domain.AlertStore
}

// NewAlertHandler creates an AlertHandler.
func NewAlertHandler(store domain.AlertStore) *AlertHandler {
	return &AlertHandler{store: store}
}

// ListAlerts responds with recorded alerts, newest first.
// GET /api/alerts?limit=&offset=&since=&until=
func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotImplemented, "alert history requires postgres")
		return
	}

	records, err := h.store.List(r.Context(), parseListOpts(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []domain.Alert{}
	}
	writeJSON(w, http.StatusOK, records)
}
