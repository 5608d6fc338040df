package inspect

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mattjoyce/ansible-actions/internal/inventory"
	"github.com/mattjoyce/ansible-actions/internal/progress"
	"github.com/mattjoyce/ansible-actions/internal/queue"
	"github.com/mattjoyce/ansible-actions/internal/storage"
)

func TestBuildReportResolvesServersAndProgress(t *testing.T) {
	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.Exec(`INSERT INTO environments(name) VALUES('prod');`); err != nil {
		t.Fatalf("insert environment: %v", err)
	}
	res, err := db.Exec(`INSERT INTO servers(hostname, ip, environment_id) SELECT 'web1', '10.0.0.1', id FROM environments;`)
	if err != nil {
		t.Fatalf("insert server: %v", err)
	}
	sid, _ := res.LastInsertId()

	q := queue.New(db)
	rec := progress.NewRecorder(db, nil)
	jobID, err := q.Enqueue(ctx, queue.EnqueueRequest{
		Action:      "run_adhoc_command",
		Params:      json.RawMessage(`{"module":"ping"}`),
		ServerIDs:   []int64{sid},
		SubmittedBy: "cli",
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	rec.SetProgress(ctx, jobID, "Running command 'ping' on server 'web1'")
	rec.SetProgress(ctx, jobID, "web1 | SUCCESS\n")
	if err := q.Complete(ctx, jobID, queue.Outcome{Status: queue.StatusSucceeded}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	report, err := BuildReport(ctx, Sources{Jobs: q, Progress: rec, Servers: inventory.NewStore(db)}, jobID)
	if err != nil {
		t.Fatalf("BuildReport: %v", err)
	}
	if report.Status != "succeeded" || len(report.Servers) != 1 || report.Servers[0] != "web1" || len(report.Progress) != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}

	text := Render(report)
	for _, want := range []string{
		"Job         : " + jobID,
		"Servers     : web1",
		`"module": "ping"`,
		"web1 | SUCCESS",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("rendered report missing %q:\n%s", want, text)
		}
	}
}

func TestBuildReportMissingJob(t *testing.T) {
	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	_, err = BuildReport(ctx, Sources{Jobs: queue.New(db), Progress: progress.NewRecorder(db, nil), Servers: inventory.NewStore(db)}, "nope")
	if !errors.Is(err, queue.ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
}

func TestRenderExplicitScopeAndFailure(t *testing.T) {
	msg := "Can't run this action without an Ansible configuration manager!"
	text := Render(&Report{JobID: "j", Action: "run_playbook", Status: "failed", ResultStatus: "FAILURE", ResultMessage: msg})
	for _, want := range []string{"<explicit scope>", "Result      : FAILURE", msg, "Submitted   : ", "<unknown>", "{}"} {
		if !strings.Contains(text, want) {
			t.Fatalf("missing %q:\n%s", want, text)
		}
	}
}
