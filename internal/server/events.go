package server

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/handsoff/internal/app"
	"github.com/ayusman/handsoff/internal/state"
)

const eventsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// StatusSource is what the events socket reports on.
type StatusSource interface {
	Status() app.Status
	State() *state.Machine
}

// EventsHandler pushes a Status message to the client on every state change.
type EventsHandler struct {
	source StatusSource
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(source StatusSource) *EventsHandler {
	return &EventsHandler{source: source}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.source.State().Subscribe()
	defer cancel()

	// The read loop only notices the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// The first update is the current state.
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if err := h.send(conn, snap); err != nil {
				return
			}
		}
	}
}

// send writes the full status, pinned to the snapshot that triggered it so
// intermediate training progress is not lost.
func (h *EventsHandler) send(conn *websocket.Conn, snap state.Snapshot) error {
	status := h.source.Status()
	status.Snapshot = snap
	conn.SetWriteDeadline(time.Now().Add(eventsWriteTimeout))
	return conn.WriteJSON(status)
}
