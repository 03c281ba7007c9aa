// Package server exposes the lifecycle orchestrator over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/provisio/provisio/internal/orchestrator"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "provisio"

// Lifecycle is the orchestrator surface the HTTP layer drives.
type Lifecycle interface {
	Deploy(ctx context.Context, projectID, userID string) (orchestrator.DeployOutcome, error)
	Destroy(ctx context.Context, projectID, userID string) (orchestrator.DestroyOutcome, error)
	Outputs(ctx context.Context, projectID string) (map[string]any, error)
	State(ctx context.Context, projectID string) (json.RawMessage, error)
}

// Server is the HTTP front of the orchestrator.
type Server struct {
	lifecycle Lifecycle
	logger    zerolog.Logger
	server    *http.Server
	addr      string
}

// New creates a server listening on addr.
func New(addr string, lifecycle Lifecycle, logger zerolog.Logger) *Server {
	return &Server{
		lifecycle: lifecycle,
		logger:    logger.With().Str("component", "server").Logger(),
		addr:      addr,
	}
}

// Start runs the server until ctx is cancelled (blocking).
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.Routes(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info().Str("addr", s.addr).Msg("server starting")

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info().Msg("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Routes builds the HTTP router.
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/deploy", s.handleDeploy)
	r.Post("/destroy", s.handleDestroy)
	r.Post("/outputs", s.handleOutputs)
	r.Post("/state", s.handleState)

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
