package alert

import (
	"context"

	"github.com/ayusman/handsoff/internal/store"
)

// StoreRecorder appends fired alerts to the store's alert log.
type StoreRecorder struct {
	alerts *store.AlertRepository
}

// NewStoreRecorder creates a recorder backed by s.
func NewStoreRecorder(s *store.Store) *StoreRecorder {
	return &StoreRecorder{alerts: s.Alerts()}
}

// Record inserts one alert row.
func (r *StoreRecorder) Record(ctx context.Context, label string, confidence float64) error {
	return r.alerts.Create(ctx, &store.Alert{Label: label, Confidence: confidence})
}
