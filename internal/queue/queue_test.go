package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mattjoyce/ansible-actions/internal/storage"
)

func openQueue(t *testing.T) (*Queue, *sql.DB) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "state.db")
	db, err := storage.OpenSQLite(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db), db
}

func addServer(t *testing.T, db *sql.DB, hostname string) int64 {
	t.Helper()

	if _, err := db.Exec(`INSERT OR IGNORE INTO environments(name) VALUES('test');`); err != nil {
		t.Fatalf("insert environment: %v", err)
	}
	res, err := db.Exec(`INSERT INTO servers(hostname, ip, environment_id) SELECT ?, '10.0.0.1', id FROM environments WHERE name = 'test';`, hostname)
	if err != nil {
		t.Fatalf("insert server: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("LastInsertId: %v", err)
	}
	return id
}

func TestQueueEnqueueDequeueFIFO(t *testing.T) {
	t.Parallel()

	q, _ := openQueue(t)
	ctx := context.Background()

	id1, err := q.Enqueue(ctx, EnqueueRequest{Action: "run_adhoc_command", SubmittedBy: "cli"})
	if err != nil {
		t.Fatalf("Enqueue 1: %v", err)
	}
	id2, err := q.Enqueue(ctx, EnqueueRequest{Action: "run_playbook", SubmittedBy: "cli"})
	if err != nil {
		t.Fatalf("Enqueue 2: %v", err)
	}

	if depth, err := q.Depth(ctx); err != nil || depth != 2 {
		t.Fatalf("Depth = %d, %v; want 2", depth, err)
	}

	j1, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue 1: %v", err)
	}
	if j1 == nil || j1.ID != id1 || j1.Status != StatusRunning || j1.StartedAt == nil {
		t.Fatalf("unexpected job1: %#v", j1)
	}

	j2, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue 2: %v", err)
	}
	if j2 == nil || j2.ID != id2 || j2.Action != "run_playbook" {
		t.Fatalf("unexpected job2: %#v", j2)
	}

	j3, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue 3: %v", err)
	}
	if j3 != nil {
		t.Fatalf("expected empty queue, got %#v", j3)
	}
}

func TestQueueEnqueueAttachesServersInOrder(t *testing.T) {
	t.Parallel()

	q, db := openQueue(t)
	ctx := context.Background()
	a := addServer(t, db, "a")
	b := addServer(t, db, "b")

	params := json.RawMessage(`{"module":"ping"}`)
	id, err := q.Enqueue(ctx, EnqueueRequest{Action: "run_adhoc_command", Params: params, ServerIDs: []int64{b, a}, SubmittedBy: "api"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	job, err := q.GetJobByID(ctx, id)
	if err != nil {
		t.Fatalf("GetJobByID: %v", err)
	}
	if len(job.ServerIDs) != 2 || job.ServerIDs[0] != b || job.ServerIDs[1] != a {
		t.Fatalf("unexpected server order: %v", job.ServerIDs)
	}
	if string(job.Params) != string(params) {
		t.Fatalf("params = %s, want %s", job.Params, params)
	}
	if job.Status != StatusQueued {
		t.Fatalf("status = %q, want queued", job.Status)
	}
}

func TestQueueEnqueueRejectsBadRequests(t *testing.T) {
	t.Parallel()

	q, db := openQueue(t)
	ctx := context.Background()
	a := addServer(t, db, "a")

	cases := []EnqueueRequest{
		{SubmittedBy: "cli"},
		{Action: "run_playbook"},
		{Action: "run_playbook", SubmittedBy: "cli", ServerIDs: []int64{a, a}},
		{Action: "run_playbook", SubmittedBy: "cli", ServerIDs: []int64{9999}},
	}
	for i, req := range cases {
		if _, err := q.Enqueue(ctx, req); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM jobs;`).Scan(&count); err != nil {
		t.Fatalf("count jobs: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no jobs after rejected enqueues, got %d", count)
	}
}

func TestQueueCompleteRecordsOutcome(t *testing.T) {
	t.Parallel()

	q, _ := openQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, EnqueueRequest{Action: "run_playbook", SubmittedBy: "cli"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := q.Dequeue(ctx); err != nil {
		t.Fatalf("Dequeue: %v", err)
	}

	if err := q.Complete(ctx, id, Outcome{Status: StatusFailed, ResultStatus: "FAILURE", ResultMessage: "no connector"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	job, err := q.GetJobByID(ctx, id)
	if err != nil {
		t.Fatalf("GetJobByID: %v", err)
	}
	if job.Status != StatusFailed || job.CompletedAt == nil {
		t.Fatalf("unexpected job: %#v", job)
	}
	if job.ResultStatus == nil || *job.ResultStatus != "FAILURE" {
		t.Fatalf("result_status = %v", job.ResultStatus)
	}
	if job.ResultMessage == nil || *job.ResultMessage != "no connector" {
		t.Fatalf("result_message = %v", job.ResultMessage)
	}
	if job.LastError != nil {
		t.Fatalf("last_error = %q, want nil", *job.LastError)
	}
}

func TestQueueCompleteErrors(t *testing.T) {
	t.Parallel()

	q, _ := openQueue(t)
	ctx := context.Background()

	if err := q.Complete(ctx, "missing", Outcome{Status: StatusSucceeded}); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("Complete missing = %v, want ErrJobNotFound", err)
	}
	if err := q.Complete(ctx, "x", Outcome{Status: StatusRunning}); err == nil {
		t.Fatalf("expected error for non-terminal status")
	}
	if _, err := q.GetJobByID(ctx, "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("GetJobByID missing = %v, want ErrJobNotFound", err)
	}
}

func TestQueueClaimSpecificJob(t *testing.T) {
	t.Parallel()

	q, db := openQueue(t)
	ctx := context.Background()
	sid := addServer(t, db, "web1")

	older, err := q.Enqueue(ctx, EnqueueRequest{Action: "run_playbook", SubmittedBy: "api"})
	if err != nil {
		t.Fatalf("Enqueue older: %v", err)
	}
	mine, err := q.Enqueue(ctx, EnqueueRequest{Action: "run_adhoc_command", SubmittedBy: "cli", ServerIDs: []int64{sid}})
	if err != nil {
		t.Fatalf("Enqueue mine: %v", err)
	}

	j, err := q.Claim(ctx, mine)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if j.ID != mine || j.Status != StatusRunning || len(j.ServerIDs) != 1 || j.ServerIDs[0] != sid {
		t.Fatalf("unexpected claimed job: %#v", j)
	}

	if _, err := q.Claim(ctx, mine); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("second Claim err = %v, want ErrJobNotFound", err)
	}
	if _, err := q.Claim(ctx, "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("Claim missing err = %v, want ErrJobNotFound", err)
	}

	next, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if next == nil || next.ID != older {
		t.Fatalf("Dequeue = %#v, want older job", next)
	}
}

func TestQueueRecoverInterrupted(t *testing.T) {
	t.Parallel()

	q, db := openQueue(t)
	ctx := context.Background()

	enqueueClaimed := func(owner string) string {
		t.Helper()
		id, err := q.Enqueue(ctx, EnqueueRequest{Action: "run_playbook", SubmittedBy: "api"})
		if err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		if _, err := db.Exec(`UPDATE jobs SET status = ?, claimed_by = NULLIF(?, '') WHERE id = ?;`, StatusRunning, owner, id); err != nil {
			t.Fatalf("mark running: %v", err)
		}
		return id
	}

	dead := enqueueClaimed("pid:111")
	live := enqueueClaimed("pid:222")
	unowned := enqueueClaimed("")
	own := enqueueClaimed(q.owner)
	queued, err := q.Enqueue(ctx, EnqueueRequest{Action: "run_playbook", SubmittedBy: "api"})
	if err != nil {
		t.Fatalf("Enqueue queued: %v", err)
	}

	failed, err := q.RecoverInterrupted(ctx, func(pid int) bool { return pid == 222 })
	if err != nil {
		t.Fatalf("RecoverInterrupted: %v", err)
	}
	if len(failed) != 2 {
		t.Fatalf("failed = %v, want the dead and unowned jobs", failed)
	}

	want := map[string]Status{dead: StatusFailed, unowned: StatusFailed, live: StatusRunning, own: StatusRunning, queued: StatusQueued}
	for id, status := range want {
		j, err := q.GetJobByID(ctx, id)
		if err != nil {
			t.Fatalf("GetJobByID(%s): %v", id, err)
		}
		if j.Status != status {
			t.Fatalf("job %s status = %s, want %s", id, j.Status, status)
		}
	}

	j, _ := q.GetJobByID(ctx, dead)
	if j.LastError == nil || *j.LastError != "interrupted: process pid:111 exited while the job was running" {
		t.Fatalf("last_error = %v", j.LastError)
	}
	if j.ClaimedBy != "pid:111" {
		t.Fatalf("claimed_by = %q", j.ClaimedBy)
	}
}
