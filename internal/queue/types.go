package queue

import (
	"encoding/json"
	"errors"
	"time"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

type Job struct {
	ID            string          `json:"job_id"`
	Action        string          `json:"action"`
	Params        json.RawMessage `json:"params,omitempty"`
	Status        Status          `json:"status"`
	SubmittedBy   string          `json:"submitted_by"`
	ClaimedBy     string          `json:"claimed_by,omitempty"`
	ServerIDs     []int64         `json:"server_ids"`
	CreatedAt     time.Time       `json:"created_at"`
	StartedAt     *time.Time      `json:"started_at,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	ResultStatus  *string         `json:"result_status,omitempty"`
	ResultMessage *string         `json:"result_message,omitempty"`
	LastError     *string         `json:"last_error,omitempty"`
}

// EnqueueRequest submits one action run. ServerIDs are attached in order.
type EnqueueRequest struct {
	Action      string
	Params      json.RawMessage
	ServerIDs   []int64
	SubmittedBy string
}

// Outcome is what Complete records. ResultStatus and ResultMessage carry the
// action's result; LastError is set when the action returned an error.
type Outcome struct {
	Status        Status
	ResultStatus  string
	ResultMessage string
	LastError     string
}

var ErrJobNotFound = errors.New("job not found")
