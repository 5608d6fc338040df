package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/ansible-actions/internal/events"
	"github.com/mattjoyce/ansible-actions/internal/inventory"
	"github.com/mattjoyce/ansible-actions/internal/queue"
)

// Server is the webhook HTTP server.
type Server struct {
	config  Config
	queue   JobQueuer
	servers ServerLookup
	events  events.Publisher
	logger  *slog.Logger
	server  *http.Server

	endpoints map[string]*EndpointConfig
}

// New creates a webhook server. pub may be nil.
func New(config Config, q JobQueuer, servers ServerLookup, pub events.Publisher, logger *slog.Logger) *Server {
	endpoints := make(map[string]*EndpointConfig, len(config.Endpoints))
	for i := range config.Endpoints {
		ep := &config.Endpoints[i]
		if ep.MaxBodySize <= 0 {
			ep.MaxBodySize = defaultMaxBodySize
		}
		endpoints[ep.Path] = ep
	}
	return &Server{
		config:    config,
		queue:     q,
		servers:   servers,
		events:    pub,
		logger:    logger,
		endpoints: endpoints,
	}
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("webhook server starting", "listen", s.config.Listen, "endpoints", len(s.endpoints))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("webhook server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("webhook server error: %w", err)
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	for path := range s.endpoints {
		r.Post(path, s.handleWebhook)
	}
	return r
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ep, ok := s.endpoints[r.URL.Path]
	if !ok {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	logger := s.logger.With("path", ep.Path, "request_id", middleware.GetReqID(r.Context()))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, ep.MaxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Warn("webhook body too large", "limit", ep.MaxBodySize)
			s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	if err := verifySignature(body, r.Header.Get(ep.SignatureHeader), ep.Secret); err != nil {
		logger.Warn("webhook signature rejected", "remote_addr", r.RemoteAddr)
		s.writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	serverIDs := make([]int64, 0, len(ep.Servers))
	for _, hostname := range ep.Servers {
		srv, err := s.servers.ServerByHostname(r.Context(), hostname)
		if err != nil {
			if errors.Is(err, inventory.ErrNotFound) {
				logger.Error("webhook references unknown server", "hostname", hostname)
				s.writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("unknown server %q", hostname))
				return
			}
			logger.Error("failed to look up server", "hostname", hostname, "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to look up server")
			return
		}
		serverIDs = append(serverIDs, srv.ID)
	}

	jobID, err := s.queue.Enqueue(r.Context(), queue.EnqueueRequest{
		Action:      ep.Action,
		Params:      ep.Params,
		ServerIDs:   serverIDs,
		SubmittedBy: "webhook:" + ep.Path,
	})
	if err != nil {
		logger.Error("failed to enqueue webhook job", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to enqueue job")
		return
	}

	if s.events != nil {
		s.events.Publish(events.TypeJobQueued, events.JobPayload{JobID: jobID, Action: ep.Action, Status: string(queue.StatusQueued)})
	}
	logger.Info("job enqueued via webhook", "job_id", jobID, "action", ep.Action, "servers", len(serverIDs))

	respondJSON(w, http.StatusAccepted, TriggerResponse{
		JobID:  jobID,
		Status: string(queue.StatusQueued),
		Action: ep.Action,
	})
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
