package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ayusman/handsoff/internal/store"
)

const (
	defaultAlertLimit = 50
	maxAlertLimit     = 1000
)

// AlertsHandler serves the alert history.
type AlertsHandler struct {
	store *store.Store
}

// NewAlertsHandler creates an AlertsHandler.
func NewAlertsHandler(s *store.Store) *AlertsHandler {
	return &AlertsHandler{store: s}
}

type alertResponse struct {
	ID         string  `json:"id"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	CreatedAt  string  `json:"created_at"`
}

type listAlertsResponse struct {
	Alerts []alertResponse `json:"alerts"`
	Today  int             `json:"today"`
}

// List handles GET /api/alerts?limit=N, newest first.
func (h *AlertsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultAlertLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxAlertLimit)
	}

	alerts, err := h.store.Alerts().List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}

	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today, err := h.store.Alerts().Count(r.Context(), midnight)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count alerts")
		return
	}

	resp := listAlertsResponse{Alerts: make([]alertResponse, len(alerts)), Today: today}
	for i, a := range alerts {
		resp.Alerts[i] = alertResponse{
			ID:         a.ID,
			Label:      a.Label,
			Confidence: a.Confidence,
			CreatedAt:  a.CreatedAt.Format(time.RFC3339),
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Delete handles DELETE /api/alerts.
func (h *AlertsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Alerts().DeleteAll(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete alerts")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
