package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxMessageBytes caps stored result messages and errors.
const maxMessageBytes = 64 * 1024

type Queue struct {
	db    *sql.DB
	owner string
}

// New returns a queue whose claims are recorded as owned by this process.
func New(db *sql.DB) *Queue {
	return &Queue{db: db, owner: ownerPrefix + strconv.Itoa(os.Getpid())}
}

const ownerPrefix = "pid:"

func (q *Queue) Enqueue(ctx context.Context, req EnqueueRequest) (string, error) {
	if req.Action == "" {
		return "", fmt.Errorf("action is empty")
	}
	if req.SubmittedBy == "" {
		return "", fmt.Errorf("submitted_by is empty")
	}
	seen := make(map[int64]bool, len(req.ServerIDs))
	for _, sid := range req.ServerIDs {
		if seen[sid] {
			return "", fmt.Errorf("server %d attached more than once", sid)
		}
		seen[sid] = true
	}

	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	var params any
	if len(req.Params) > 0 {
		params = string(req.Params)
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO jobs(id, action, params, status, submitted_by, created_at)
VALUES(?, ?, ?, ?, ?, ?);
`, id, req.Action, params, StatusQueued, req.SubmittedBy, now); err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	for pos, sid := range req.ServerIDs {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO job_servers(job_id, server_id, position) VALUES(?, ?, ?);
`, id, sid, pos); err != nil {
			return "", fmt.Errorf("attach server %d: %w", sid, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit tx: %w", err)
	}
	return id, nil
}

// Dequeue claims the oldest queued job and marks it running. Returns (nil, nil)
// if the queue is empty.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	nowS := time.Now().UTC().Format(time.RFC3339Nano)

	row := q.db.QueryRowContext(ctx, `
WITH next AS (
  SELECT id
  FROM jobs
  WHERE status = ?
  ORDER BY created_at ASC, rowid ASC
  LIMIT 1
)
UPDATE jobs
SET status = ?, started_at = ?, claimed_by = ?
WHERE id IN (SELECT id FROM next)
RETURNING `+jobColumns+`;
`, StatusQueued, StatusRunning, nowS, q.owner)

	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue job: %w", err)
	}
	if j.ServerIDs, err = q.serverIDs(ctx, j.ID); err != nil {
		return nil, err
	}
	return j, nil
}

// Claim marks one specific queued job running. It returns ErrJobNotFound if
// the job does not exist or was already claimed.
func (q *Queue) Claim(ctx context.Context, jobID string) (*Job, error) {
	nowS := time.Now().UTC().Format(time.RFC3339Nano)

	row := q.db.QueryRowContext(ctx, `
UPDATE jobs
SET status = ?, started_at = ?, claimed_by = ?
WHERE id = ? AND status = ?
RETURNING `+jobColumns+`;
`, StatusRunning, nowS, q.owner, jobID, StatusQueued)

	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	if j.ServerIDs, err = q.serverIDs(ctx, j.ID); err != nil {
		return nil, err
	}
	return j, nil
}

// Complete marks a running or queued job terminal.
func (q *Queue) Complete(ctx context.Context, jobID string, out Outcome) error {
	if jobID == "" {
		return fmt.Errorf("jobID is empty")
	}
	if !out.Status.Terminal() {
		return fmt.Errorf("invalid terminal status: %q", out.Status)
	}

	completedAt := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := q.db.ExecContext(ctx, `
UPDATE jobs
SET status = ?, completed_at = ?, result_status = ?, result_message = ?, last_error = ?
WHERE id = ?;
`, out.Status, completedAt, out.ResultStatus, nullIfEmpty(truncate(out.ResultMessage)), nullIfEmpty(truncate(out.LastError)), jobID)
	if err != nil {
		return fmt.Errorf("update job completion: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job completion: %w", err)
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// RecoverInterrupted fails running jobs whose claiming process is gone.
// alive reports whether a PID is still running; claims held by this process
// are never touched. Interrupted jobs are not re-queued because an ansible
// run may have partially applied. It returns the IDs it failed.
func (q *Queue) RecoverInterrupted(ctx context.Context, alive func(pid int) bool) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, COALESCE(claimed_by, '') FROM jobs WHERE status = ?;`, StatusRunning)
	if err != nil {
		return nil, fmt.Errorf("find running jobs: %w", err)
	}
	type claim struct{ id, owner string }
	var running []claim
	for rows.Next() {
		var c claim
		if err := rows.Scan(&c.id, &c.owner); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan running job: %w", err)
		}
		running = append(running, c)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	var failed []string
	for _, c := range running {
		if c.owner == q.owner {
			continue
		}
		if pid, err := strconv.Atoi(strings.TrimPrefix(c.owner, ownerPrefix)); err == nil && alive(pid) {
			continue
		}
		msg := fmt.Sprintf("interrupted: process %s exited while the job was running", c.owner)
		if c.owner == "" {
			msg = "interrupted: job was running with no recorded owner"
		}
		if err := q.Complete(ctx, c.id, Outcome{Status: StatusFailed, ResultStatus: "FAILURE", ResultMessage: msg, LastError: msg}); err != nil {
			return failed, fmt.Errorf("recover job %s: %w", c.id, err)
		}
		failed = append(failed, c.id)
	}
	return failed, nil
}

// GetJobByID returns a job with its attached server IDs.
func (q *Queue) GetJobByID(ctx context.Context, jobID string) (*Job, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?;`, jobID)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if j.ServerIDs, err = q.serverIDs(ctx, j.ID); err != nil {
		return nil, err
	}
	return j, nil
}

// Depth returns the number of queued jobs.
func (q *Queue) Depth(ctx context.Context) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE status = ?;`, StatusQueued).Scan(&n); err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return n, nil
}

const jobColumns = `id, action, params, status, submitted_by, claimed_by, created_at, started_at, completed_at,
  result_status, result_message, last_error`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		j             Job
		params        sql.NullString
		statusS       string
		claimedBy     sql.NullString
		createdAtS    string
		startedAtS    sql.NullString
		completedAtS  sql.NullString
		resultStatus  sql.NullString
		resultMessage sql.NullString
		lastError     sql.NullString
	)
	if err := row.Scan(&j.ID, &j.Action, &params, &statusS, &j.SubmittedBy, &claimedBy, &createdAtS, &startedAtS, &completedAtS,
		&resultStatus, &resultMessage, &lastError); err != nil {
		return nil, err
	}

	j.Status = Status(statusS)
	j.ClaimedBy = claimedBy.String
	if params.Valid {
		j.Params = []byte(params.String)
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAtS); err == nil {
		j.CreatedAt = t
	}
	j.StartedAt = parseTime(startedAtS)
	j.CompletedAt = parseTime(completedAtS)
	if resultStatus.Valid {
		j.ResultStatus = &resultStatus.String
	}
	if resultMessage.Valid {
		j.ResultMessage = &resultMessage.String
	}
	if lastError.Valid {
		j.LastError = &lastError.String
	}
	return &j, nil
}

func (q *Queue) serverIDs(ctx context.Context, jobID string) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT server_id FROM job_servers WHERE job_id = ? ORDER BY position ASC;`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query job servers: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan job server: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func parseTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func truncate(s string) string {
	if len(s) > maxMessageBytes {
		return s[:maxMessageBytes]
	}
	return s
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
