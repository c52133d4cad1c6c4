package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"tripmind/internal/api/health"
	"tripmind/internal/api/ws"
	"tripmind/internal/metrics"
	"tripmind/pkg/errors"
	"tripmind/pkg/logger"
)

// ServerConfig contains configuration for HTTP server
type ServerConfig struct {
	Addr        string
	ServiceName string
	Version     string
}

// SessionAdmin exposes operator endpoints over the session store
type SessionAdmin interface {
	Clear(ctx context.Context, sessionID string) error
	ListSessions(ctx context.Context) ([]string, error)
}

// Server wraps HTTP server with lifecycle management
type Server struct {
	httpServer *http.Server
	websocket  *ws.Handler
	log        *logger.Logger
}

// NewServer creates and configures HTTP server with all routes
func NewServer(cfg ServerConfig, healthHandler *health.Handler, wsHandler *ws.Handler, turns TurnHandler, sessions SessionAdmin, log *logger.Logger) *Server {
	log = log.With("component", "http_server")
	mux := http.NewServeMux()

	// Health check endpoints (Kubernetes probes)
	mux.HandleFunc("GET /health", healthHandler.HandleHealth)
	mux.HandleFunc("GET /ready", healthHandler.HandleReadiness)
	mux.HandleFunc("GET /live", healthHandler.HandleLiveness)

	mux.Handle("GET /metrics", metrics.Handler())

	mux.Handle("GET /ws/{session_id}", wsHandler)
	mux.HandleFunc("POST /chat", chatHandler(turns, log))

	mux.HandleFunc("GET /sessions", func(w http.ResponseWriter, r *http.Request) {
		ids, err := sessions.ListSessions(r.Context())
		if err != nil {
			log.Warnw("Failed to list sessions", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list sessions"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions": ids, "count": len(ids)})
	})

	mux.HandleFunc("DELETE /sessions/{session_id}", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.PathValue("session_id"))
		if err := sessions.Clear(r.Context(), id); err != nil {
			if errors.Is(err, errors.ErrInvalidInput) {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			log.Warnw("Failed to clear session", "session_id", id, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to clear session"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	// Root endpoint (service info)
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"service": cfg.ServiceName,
			"version": cfg.Version,
			"status":  "running",
		})
	})

	addr := cfg.Addr
	if addr == "" {
		addr = ":8000"
	}

	log.Infof("HTTP server configured on %s", addr)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		websocket: wsHandler,
		log:       log,
	}
}

// Handler exposes the router (tests)
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests
// Blocks until server is stopped or encounters an error
func (s *Server) Start() error {
	s.log.Infof("Starting HTTP server on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "http server failed")
	}

	return nil
}

// Shutdown stops accepting requests and closes open websockets.
// Hijacked websocket connections are not tracked by http.Server, so they are
// closed through the websocket handler.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Stopping HTTP server...")

	s.websocket.Close()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "http server shutdown failed")
	}

	s.log.Info("✓ HTTP server stopped")
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
