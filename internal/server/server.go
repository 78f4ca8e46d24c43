// Package server provides the HTTP and WebSocket surface of the presenter.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/karanbalaji/spatial-presenter/internal/app"
	"github.com/karanbalaji/spatial-presenter/internal/deck"
	"github.com/karanbalaji/spatial-presenter/internal/server/api"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Deck      *deck.Deck
	App       *app.App
	// Frames, if set, backs the MJPEG preview at /api/stream.
	Frames FrameSource
	Logger *slog.Logger
}

// Server routes the REST API, the event socket, metrics and the static view.
type Server struct {
	config Config
	mux    *http.ServeMux
	hub    *Hub
	log    *slog.Logger
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		log:    config.Logger,
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.Handler())

	if s.config.Deck != nil {
		slides := api.NewSlidesHandler(s.config.Deck, s.log)
		s.mux.Handle("/api/slides", slides)
		s.mux.Handle("/api/slides/", slides)
	}

	if s.config.App != nil {
		s.mux.HandleFunc("/api/status", s.handleStatus)
		s.mux.Handle("/api/input/", api.NewInputHandler(s.config.App))

		s.hub = NewHub(s.config.App, s.config.Deck, s.log)
		s.mux.Handle("/api/events", s.hub)

		if s.config.Deck != nil {
			navigation := api.NewNavigationHandler(s.config.App, s.config.Deck)
			s.mux.Handle("/api/navigation", navigation)
			s.mux.Handle("/api/navigation/", navigation)
		}
	}

	if s.config.Frames != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Frames))
	}

	if s.config.StaticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close disconnects every event socket client.
func (s *Server) Close() {
	if s.hub != nil {
		s.hub.Close()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).Round(time.Second).String(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.config.App.Status())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
