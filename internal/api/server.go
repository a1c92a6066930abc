// Package api exposes review sessions over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/catalog-mapper/internal/engine"
)

// SourceFactory picks the offer source for a start request. An empty
// feedURL means the configured local feed.
type SourceFactory func(feedURL string) (engine.OfferSource, error)

// Server serves the session control surface.
type Server struct {
	manager  *engine.Manager
	sources  SourceFactory
	logger   *slog.Logger
	server   *http.Server
	listener net.Listener
	mux      *http.ServeMux
}

// NewServer wires the routes. A nil logger uses slog.Default().
func NewServer(manager *engine.Manager, sources SourceFactory, logger *slog.Logger) (*Server, error) {
	if manager == nil {
		return nil, errors.New("session manager is required")
	}
	if sources == nil {
		return nil, errors.New("source factory is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		manager: manager,
		sources: sources,
		logger:  logger.With("component", "api-server"),
		mux:     http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	s.mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	s.mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	s.mux.HandleFunc("POST /api/sessions/{id}/start", s.handleStart)
	s.mux.HandleFunc("GET /api/sessions/{id}/status", s.handleStatus)
	s.mux.HandleFunc("POST /api/sessions/{id}/reset", s.handleReset)
	s.mux.HandleFunc("POST /api/sessions/{id}/decisions/{decision}/resolve", s.handleResolve)
	s.mux.HandleFunc("POST /api/sessions/{id}/decisions/{decision}/skip", s.handleSkip)
	s.mux.HandleFunc("POST /api/sessions/{id}/submit", s.handleSubmit)
	s.mux.HandleFunc("GET /api/sessions/{id}/tasks/{task}", s.handleTaskInfo)

	s.server = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Submissions pace chunks, so writes may take minutes.
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start listens on addr and serves until ctx is done.
func (s *Server) Start(ctx context.Context, addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return errors.New("listen address is required")
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", "address", listener.Addr().String())
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, waiting briefly for in-flight requests.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
