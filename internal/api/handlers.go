package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/ansible-actions/internal/auth"
	"github.com/mattjoyce/ansible-actions/internal/dispatch"
	"github.com/mattjoyce/ansible-actions/internal/events"
	"github.com/mattjoyce/ansible-actions/internal/inventory"
	"github.com/mattjoyce/ansible-actions/internal/playbook"
	"github.com/mattjoyce/ansible-actions/internal/queue"
)

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	depth, err := s.queue.Depth(r.Context())
	if err != nil {
		s.logger.Error("failed to compute queue depth", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to compute queue depth")
		return
	}

	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		QueueDepth:    depth,
	})
}

// handleSubmit handles POST /actions/{action}.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")

	var req SubmitRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	var err error
	switch action {
	case dispatch.ActionRunAdhocCommand:
		_, err = dispatch.DecodeAdhocParams(req.Params, s.config.Actions.Adhoc)
	case dispatch.ActionRunPlaybook:
		_, err = dispatch.DecodePlaybookParams(req.Params, s.config.Actions.Playbook)
	default:
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown action %q", action))
		return
	}
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	seen := make(map[int64]struct{}, len(req.ServerIDs))
	for _, id := range req.ServerIDs {
		if _, dup := seen[id]; dup {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("duplicate server id %d", id))
			return
		}
		seen[id] = struct{}{}
		if _, err := s.servers.Server(r.Context(), id); err != nil {
			if errors.Is(err, inventory.ErrNotFound) {
				s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown server id %d", id))
				return
			}
			s.logger.Error("failed to look up server", "server_id", id, "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to look up server")
			return
		}
	}

	submitter := "api"
	if p, ok := auth.PrincipalFromContext(r.Context()); ok {
		submitter += ":" + p.Name
	}
	jobID, err := s.queue.Enqueue(r.Context(), queue.EnqueueRequest{
		Action:      action,
		Params:      req.Params,
		ServerIDs:   req.ServerIDs,
		SubmittedBy: submitter,
	})
	if err != nil {
		s.logger.Error("failed to enqueue job", "action", action, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to enqueue job")
		return
	}

	s.events.Publish(events.TypeJobQueued, events.JobPayload{JobID: jobID, Action: action, Status: string(queue.StatusQueued)})
	s.logger.Info("job enqueued via API", "job_id", jobID, "action", action, "servers", len(req.ServerIDs))

	respondJSON(w, http.StatusAccepted, SubmitResponse{
		JobID:  jobID,
		Status: string(queue.StatusQueued),
		Action: action,
	})
}

// handleGetJob handles GET /jobs/{jobID}
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, err := s.queue.GetJobByID(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			s.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.logger.Error("failed to retrieve job", "job_id", jobID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to retrieve job")
		return
	}

	lines, err := s.progress.List(r.Context(), jobID)
	if err != nil {
		s.logger.Error("failed to retrieve progress", "job_id", jobID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to retrieve progress")
		return
	}

	respondJSON(w, http.StatusOK, JobStatusResponse{
		JobID:         job.ID,
		Action:        job.Action,
		Status:        string(job.Status),
		ServerIDs:     job.ServerIDs,
		Params:        job.Params,
		ResultStatus:  job.ResultStatus,
		ResultMessage: job.ResultMessage,
		LastError:     job.LastError,
		CreatedAt:     job.CreatedAt,
		StartedAt:     job.StartedAt,
		CompletedAt:   job.CompletedAt,
		Progress:      lines,
	})
}

// handlePlaybookOptions handles GET /playbooks/options.
// server_id may repeat; inventory_group_id applies only without servers.
func (s *Server) handlePlaybookOptions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var sel playbook.Selection
	ids := make([]int64, 0, len(q["server_id"]))
	for _, v := range q["server_id"] {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid server_id %q", v))
			return
		}
		ids = append(ids, id)
	}
	switch len(ids) {
	case 0:
	case 1:
		sel.ServerID = ids[0]
	default:
		sel.ServerIDs = ids
	}
	if v := q.Get("inventory_group_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid inventory_group_id %q", v))
			return
		}
		sel.GroupID = id
	}

	choices, err := s.playbooks.OptionsForPlaybookPath(r.Context(), sel)
	if err != nil {
		s.logger.Error("failed to compute playbook options", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to compute playbook options")
		return
	}
	respondJSON(w, http.StatusOK, PlaybookOptionsResponse{Choices: choices})
}

// respondJSON is a helper to write JSON responses
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
