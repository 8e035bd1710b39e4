// Package server provides the HTTP server for the handsoff control panel.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ayusman/handsoff/internal/app"
	"github.com/ayusman/handsoff/internal/server/api"
	"github.com/ayusman/handsoff/internal/store"
)

// Config holds the server configuration.
type Config struct {
	Addr      string
	StaticDir string
	App       *app.App
	Store     *store.Store
}

// Server represents the HTTP server for the handsoff application.
type Server struct {
	config     Config
	router     *chi.Mux
	httpServer *http.Server
	start      time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		router: chi.NewRouter(),
		start:  time.Now(),
	}

	// No middleware.Timeout: training, the stream and the event socket are long-lived.
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Get("/api/health", s.handleHealth)

	if s.config.App != nil {
		control := api.NewControlHandler(s.config.App)
		s.router.Get("/api/status", control.Status)
		s.router.Post("/api/train/{label}", control.Train)
		s.router.Post("/api/run", control.Run)
		s.router.Post("/api/stop", control.Stop)
		s.router.Post("/api/clear", control.Clear)

		s.router.Method(http.MethodGet, "/api/stream", NewStreamHandler(s.config.App.Camera()))
		s.router.Method(http.MethodGet, "/api/events", NewEventsHandler(s.config.App))
	}

	if s.config.Store != nil {
		alerts := api.NewAlertsHandler(s.config.Store)
		s.router.Get("/api/alerts", alerts.List)
		s.router.Delete("/api/alerts", alerts.Delete)
	}

	if s.config.StaticDir != "" {
		s.router.Handle("/*", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router returns the chi router.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).Round(time.Second).String(),
	})
}

// Start listens on the configured address and blocks until the server stops.
func (s *Server) Start() error {
	log.Printf("Starting server on http://%s", s.config.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
