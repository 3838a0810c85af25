// Package api exposes the panel HTTP surface: rendered view markup, record
// snapshots, command submission, and a live event stream. All state changes
// go through the dispatcher; the API itself holds nothing durable.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"log/slog"

	"github.com/mlindqvist/groundwork/internal/events"
	"github.com/mlindqvist/groundwork/internal/log"
	"github.com/mlindqvist/groundwork/internal/provision"
)

// CommandDispatcher is the slice of the dispatcher the API needs.
type CommandDispatcher interface {
	Validate(name string, payload json.RawMessage) error
	Dispatch(ctx context.Context, name string, payload json.RawMessage) error
	Controller(ctx context.Context, project string) (*provision.Controller, error)
}

// Config holds API server configuration.
type Config struct {
	Listen string
	// APIKey is the bearer token required on every endpoint except /healthz.
	APIKey string
}

// Server is the panel HTTP server.
type Server struct {
	config     Config
	dispatcher CommandDispatcher
	hub        *events.Hub
	render     func(provision.Snapshot) string
	logger     *slog.Logger
	server     *http.Server
	startedAt  time.Time
}

// New creates a panel API server. render may be nil, in which case the view
// endpoint returns snapshots without markup.
func New(config Config, dispatcher CommandDispatcher, hub *events.Hub, render func(provision.Snapshot) string) *Server {
	return &Server{
		config:     config,
		dispatcher: dispatcher,
		hub:        hub,
		render:     render,
		logger:     log.WithComponent("api"),
		startedAt:  time.Now(),
	}
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Minute, // SSE connections stay open
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("panel API starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("panel API shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Routes builds the HTTP router. Exported for handler tests.
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoint.
	r.Get("/healthz", s.handleHealthz)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/v1/view", s.handleView)
		r.Get("/v1/record", s.handleRecord)
		r.Post("/v1/commands", s.handleCommand)
		r.Get("/v1/events", s.handleEvents)
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
