package events

// Event types published by the service.
const (
	TypeJobQueued         = "job.queued"
	TypeJobStarted        = "job.started"
	TypeJobProgress       = "job.progress"
	TypeJobCompleted      = "job.completed"
	TypeInventoryImported = "inventory.imported"
)

// JobPayload is the data of every job.* event. Fields not relevant to the
// event type are omitted.
type JobPayload struct {
	JobID        string `json:"job_id"`
	Action       string `json:"action,omitempty"`
	Status       string `json:"status,omitempty"`
	Message      string `json:"message,omitempty"`
	ResultStatus string `json:"result_status,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Publisher is the producer side of Hub.
type Publisher interface {
	Publish(eventType string, data any)
}
