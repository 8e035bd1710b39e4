// Package api provides the HTTP handlers behind the /api routes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/handsoff/internal/app"
	"github.com/ayusman/handsoff/internal/capture"
	"github.com/ayusman/handsoff/internal/persist"
	"github.com/ayusman/handsoff/internal/state"
	"github.com/ayusman/handsoff/internal/training"
)

type errorResponse struct {
	Error string `json:"error"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, errorResponse{Error: message})
}

// writeAppError maps a domain error to its HTTP status.
func writeAppError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, training.ErrInvalidLabel):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrBusy), errors.Is(err, state.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, app.ErrNotEnoughData), errors.Is(err, training.ErrNoFace),
		errors.Is(err, persist.ErrCorruptDataset):
		return http.StatusUnprocessableEntity
	case errors.Is(err, capture.ErrCameraNotOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
