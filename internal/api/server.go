// Package api exposes action submission, job status, playbook options and
// the event stream over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mattjoyce/ansible-actions/internal/auth"
	"github.com/mattjoyce/ansible-actions/internal/config"
	"github.com/mattjoyce/ansible-actions/internal/events"
	"github.com/mattjoyce/ansible-actions/internal/inventory"
	"github.com/mattjoyce/ansible-actions/internal/playbook"
	"github.com/mattjoyce/ansible-actions/internal/progress"
	"github.com/mattjoyce/ansible-actions/internal/queue"
)

// JobQueuer defines the interface for job queue operations
type JobQueuer interface {
	Enqueue(ctx context.Context, req queue.EnqueueRequest) (string, error)
	GetJobByID(ctx context.Context, jobID string) (*queue.Job, error)
	Depth(ctx context.Context) (int, error)
}

// ServerLookup checks that submitted server IDs exist.
type ServerLookup interface {
	Server(ctx context.Context, id int64) (*inventory.Server, error)
}

// ProgressLister returns stored progress lines for a job.
type ProgressLister interface {
	List(ctx context.Context, jobID string) ([]progress.Entry, error)
}

// PlaybookOptioner computes playbook choices for a selection.
type PlaybookOptioner interface {
	OptionsForPlaybookPath(ctx context.Context, sel playbook.Selection) ([]playbook.Choice, error)
}

// Config holds API server configuration
type Config struct {
	Listen string
	// APIKey is the single admin bearer token (scope "*").
	APIKey string
	// Tokens is an optional list of scoped bearer tokens.
	Tokens []auth.TokenConfig
	// Actions supplies parameter defaults used to validate submissions.
	Actions config.ActionsConfig
	// CORSOrigins lists browser origins allowed to call the API. Empty
	// disables CORS handling.
	CORSOrigins []string
}

// Server represents the HTTP API server
type Server struct {
	config    Config
	queue     JobQueuer
	servers   ServerLookup
	progress  ProgressLister
	playbooks PlaybookOptioner
	events    *events.Hub
	keys      *auth.Keyring
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a new API server instance
func New(config Config, q JobQueuer, servers ServerLookup, prog ProgressLister, playbooks PlaybookOptioner, hub *events.Hub, logger *slog.Logger) *Server {
	if hub == nil {
		hub = events.NewHub(256)
	}
	return &Server{
		config:    config,
		queue:     q,
		servers:   servers,
		progress:  prog,
		playbooks: playbooks,
		events:    hub,
		keys:      auth.NewKeyring(config.APIKey, config.Tokens),
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Start starts the HTTP server (blocking)
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:        s.config.Listen,
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
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

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	if len(s.config.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.config.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "Last-Event-ID"},
			MaxAge:         600,
		}))
	}

	// Unauthenticated ops endpoints.
	r.Get("/healthz", s.handleHealthz)
	r.Get("/openapi.json", s.handleOpenAPI)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.With(s.requireScopes(auth.ScopeJobsWrite)).Post("/actions/{action}", s.handleSubmit)
		r.With(s.requireScopes(auth.ScopeJobsRead)).Get("/jobs/{jobID}", s.handleGetJob)
		r.With(s.requireScopes(auth.ScopeInventoryRead)).Get("/playbooks/options", s.handlePlaybookOptions)
		r.With(s.requireScopes(auth.ScopeEventsRead)).Get("/events", s.handleEvents)
	})

	return r
}

// loggingMiddleware logs HTTP requests
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
