package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/hivekit/internal/core/connection"
	"github.com/vietddude/hivekit/internal/core/domain"
)

// StateSource is the view of the store the server needs. *store.Store implements it.
type StateSource interface {
	GetState() domain.ConnectionState
	History() []connection.Transition
	RefreshEndpoints(ctx context.Context) error
}

// Server provides HTTP endpoints for health monitoring.
type Server struct {
	source StateSource
	server *http.Server
	log    *slog.Logger
}

// NewServer creates a new health server.
func NewServer(source StateSource, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		source: source,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
		log: slog.Default().With("component", "health-server"),
	}

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/endpoints", s.handleEndpoints)
	mux.HandleFunc("GET /health/history", s.handleHistory)
	mux.HandleFunc("POST /health/refresh", s.handleRefresh)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server. It returns nil after Stop.
func (s *Server) Start() error {
	s.log.Info("Health server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := s.source.GetState()
	report := Evaluate(state)

	code := http.StatusOK
	if !state.IsConnected() {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, report)
}

func (s *Server) handleEndpoints(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.source.GetState())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.source.History())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.source.RefreshEndpoints(r.Context()); err != nil {
		s.log.Warn("Manual refresh failed", "error", err)
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, Evaluate(s.source.GetState()))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
