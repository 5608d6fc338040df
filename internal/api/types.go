package api

import (
	"encoding/json"
	"time"

	"github.com/mattjoyce/ansible-actions/internal/playbook"
	"github.com/mattjoyce/ansible-actions/internal/progress"
)

// SubmitRequest is the JSON body for POST /actions/{action}.
type SubmitRequest struct {
	ServerIDs []int64         `json:"server_ids,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// SubmitResponse is returned once the job is queued.
type SubmitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
	Action string `json:"action"`
}

// JobStatusResponse is returned by GET /jobs/{jobID}.
type JobStatusResponse struct {
	JobID         string           `json:"job_id"`
	Action        string           `json:"action"`
	Status        string           `json:"status"`
	ServerIDs     []int64          `json:"server_ids"`
	Params        json.RawMessage  `json:"params,omitempty"`
	ResultStatus  *string          `json:"result_status,omitempty"`
	ResultMessage *string          `json:"result_message,omitempty"`
	LastError     *string          `json:"last_error,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	StartedAt     *time.Time       `json:"started_at,omitempty"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
	Progress      []progress.Entry `json:"progress"`
}

// PlaybookOptionsResponse is returned by GET /playbooks/options.
type PlaybookOptionsResponse struct {
	Choices []playbook.Choice `json:"choices"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	QueueDepth    int    `json:"queue_depth"`
}
