// Package inspect assembles a job report: the job row, its target servers
// by name, its decoded params and every progress line.
package inspect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattjoyce/ansible-actions/internal/inventory"
	"github.com/mattjoyce/ansible-actions/internal/progress"
	"github.com/mattjoyce/ansible-actions/internal/queue"
)

// Sources are the stores a report reads from.
type Sources struct {
	Jobs interface {
		GetJobByID(ctx context.Context, jobID string) (*queue.Job, error)
	}
	Progress interface {
		List(ctx context.Context, jobID string) ([]progress.Entry, error)
	}
	Servers interface {
		Server(ctx context.Context, id int64) (*inventory.Server, error)
	}
}

// Report is the structured form of a job report.
type Report struct {
	JobID         string           `json:"job_id"`
	Action        string           `json:"action"`
	Status        string           `json:"status"`
	SubmittedBy   string           `json:"submitted_by"`
	ClaimedBy     string           `json:"claimed_by,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	StartedAt     *time.Time       `json:"started_at,omitempty"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
	Servers       []string         `json:"servers"`
	Params        json.RawMessage  `json:"params,omitempty"`
	ResultStatus  string           `json:"result_status,omitempty"`
	ResultMessage string           `json:"result_message,omitempty"`
	LastError     string           `json:"last_error,omitempty"`
	Progress      []progress.Entry `json:"progress"`
}

// BuildReport gathers the report for jobID. Servers deleted from the
// inventory since the job ran are shown by id.
func BuildReport(ctx context.Context, src Sources, jobID string) (*Report, error) {
	job, err := src.Jobs.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	lines, err := src.Progress.List(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}

	r := &Report{
		JobID:         job.ID,
		Action:        job.Action,
		Status:        string(job.Status),
		SubmittedBy:   job.SubmittedBy,
		ClaimedBy:     job.ClaimedBy,
		CreatedAt:     job.CreatedAt,
		StartedAt:     job.StartedAt,
		CompletedAt:   job.CompletedAt,
		Servers:       make([]string, 0, len(job.ServerIDs)),
		Params:        job.Params,
		ResultStatus:  deref(job.ResultStatus),
		ResultMessage: deref(job.ResultMessage),
		LastError:     deref(job.LastError),
		Progress:      lines,
	}
	for _, id := range job.ServerIDs {
		s, err := src.Servers.Server(ctx, id)
		switch {
		case errors.Is(err, inventory.ErrNotFound):
			r.Servers = append(r.Servers, fmt.Sprintf("#%d (removed)", id))
		case err != nil:
			return nil, fmt.Errorf("server %d: %w", id, err)
		default:
			r.Servers = append(r.Servers, s.Hostname)
		}
	}
	return r, nil
}

// Render formats a report for the terminal.
func Render(r *Report) string {
	var out strings.Builder
	fmt.Fprintf(&out, "Job         : %s\n", r.JobID)
	fmt.Fprintf(&out, "Action      : %s\n", r.Action)
	fmt.Fprintf(&out, "Status      : %s\n", r.Status)
	fmt.Fprintf(&out, "Submitted   : %s by %s\n", r.CreatedAt.Format(time.DateTime), renderUnset(r.SubmittedBy, "<unknown>"))
	if r.ClaimedBy != "" {
		fmt.Fprintf(&out, "Worker      : %s\n", r.ClaimedBy)
	}
	if r.StartedAt != nil && r.CompletedAt != nil {
		fmt.Fprintf(&out, "Duration    : %s\n", r.CompletedAt.Sub(*r.StartedAt).Round(time.Millisecond))
	}
	if len(r.Servers) == 0 {
		fmt.Fprintf(&out, "Servers     : <explicit scope>\n")
	} else {
		fmt.Fprintf(&out, "Servers     : %s\n", strings.Join(r.Servers, ", "))
	}
	if r.ResultStatus != "" {
		fmt.Fprintf(&out, "Result      : %s\n", r.ResultStatus)
	}
	if r.ResultMessage != "" {
		fmt.Fprintf(&out, "Message     : %s\n", r.ResultMessage)
	}
	if r.LastError != "" {
		fmt.Fprintf(&out, "Error       : %s\n", r.LastError)
	}

	fmt.Fprintf(&out, "Params      :\n")
	for _, line := range strings.Split(strings.TrimSpace(prettyJSON(r.Params)), "\n") {
		fmt.Fprintf(&out, "  %s\n", line)
	}

	if len(r.Progress) > 0 {
		fmt.Fprintf(&out, "Progress    :\n")
		for _, p := range r.Progress {
			msg := strings.TrimRight(p.Message, "\n")
			fmt.Fprintf(&out, "  [%s] %s\n", p.CreatedAt.Format(time.TimeOnly), strings.ReplaceAll(msg, "\n", "\n             "))
		}
	}
	return out.String()
}

func prettyJSON(raw json.RawMessage) string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func renderUnset(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
