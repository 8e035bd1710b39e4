package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/handsoff/internal/app"
	"github.com/ayusman/handsoff/internal/training"
)

// Controller is the part of the application the control endpoints drive.
type Controller interface {
	Status() app.Status
	Train(ctx context.Context, label string) (training.Result, error)
	Run() error
	StopRun() error
	Clear(ctx context.Context) error
}

// ControlHandler serves status, training and run control.
type ControlHandler struct {
	ctl Controller
}

// NewControlHandler creates a ControlHandler.
func NewControlHandler(ctl Controller) *ControlHandler {
	return &ControlHandler{ctl: ctl}
}

// Status handles GET /api/status.
func (h *ControlHandler) Status(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.ctl.Status())
}

type trainResponse struct {
	training.Result
	Status app.Status `json:"status"`
}

// Train handles POST /api/train/{label}. It returns when the session ends;
// progress is published on /api/events. Disconnecting cancels the session.
func (h *ControlHandler) Train(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")

	res, err := h.ctl.Train(r.Context(), label)
	if err != nil {
		writeAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, trainResponse{Result: res, Status: h.ctl.Status()})
}

// Run handles POST /api/run.
func (h *ControlHandler) Run(w http.ResponseWriter, r *http.Request) {
	if err := h.ctl.Run(); err != nil {
		writeAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, h.ctl.Status())
}

// Stop handles POST /api/stop.
func (h *ControlHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.ctl.StopRun(); err != nil {
		writeAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, h.ctl.Status())
}

// Clear handles POST /api/clear.
func (h *ControlHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.ctl.Clear(r.Context()); err != nil {
		writeAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, h.ctl.Status())
}
