// Package progress records job progress lines and announces them on the
// event hub.
package progress

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattjoyce/ansible-actions/internal/events"
	"github.com/mattjoyce/ansible-actions/internal/log"
)

// Entry is one stored progress line.
type Entry struct {
	ID        int64     `json:"id"`
	JobID     string    `json:"job_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Recorder persists progress to job_progress and publishes job.progress
// events. Either side may be nil.
type Recorder struct {
	db     *sql.DB
	pub    events.Publisher
	logger *slog.Logger
}

func NewRecorder(db *sql.DB, pub events.Publisher) *Recorder {
	return &Recorder{db: db, pub: pub, logger: log.WithComponent("progress")}
}

// SetProgress records message for jobID. Failures are logged, never returned.
func (r *Recorder) SetProgress(ctx context.Context, jobID, message string) {
	if r.db != nil {
		if _, err := r.db.ExecContext(ctx, `
INSERT INTO job_progress(job_id, message, created_at) VALUES(?, ?, ?);
`, jobID, message, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
			r.logger.Warn("failed to store progress", "job_id", jobID, "error", err)
		}
	}
	if r.pub != nil {
		r.pub.Publish(events.TypeJobProgress, events.JobPayload{JobID: jobID, Message: message})
	}
	r.logger.Debug("progress", "job_id", jobID, "message", message)
}

// List returns a job's progress lines oldest-first.
func (r *Recorder) List(ctx context.Context, jobID string) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, job_id, message, created_at FROM job_progress WHERE job_id = ? ORDER BY id ASC;
`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var (
			e  Entry
			at string
		)
		if err := rows.Scan(&e.ID, &e.JobID, &e.Message, &at); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, at); err == nil {
			e.CreatedAt = t
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress: %w", err)
	}
	return out, nil
}
