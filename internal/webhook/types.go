package webhook

import (
	"context"
	"encoding/json"

	"github.com/mattjoyce/ansible-actions/internal/inventory"
	"github.com/mattjoyce/ansible-actions/internal/queue"
)

// Config is the resolved webhook listener configuration.
type Config struct {
	Listen    string
	Endpoints []EndpointConfig
}

// EndpointConfig is one validated webhook endpoint.
type EndpointConfig struct {
	Path            string
	Action          string
	Params          json.RawMessage
	Servers         []string
	Secret          string
	SignatureHeader string
	MaxBodySize     int64
}

// JobQueuer is the queue surface the webhook server needs.
type JobQueuer interface {
	Enqueue(ctx context.Context, req queue.EnqueueRequest) (string, error)
}

// ServerLookup resolves endpoint hostnames against the inventory.
type ServerLookup interface {
	ServerByHostname(ctx context.Context, hostname string) (*inventory.Server, error)
}

// TriggerResponse is returned for an accepted webhook.
type TriggerResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
	Action string `json:"action"`
}

// ErrorResponse is a generic error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
