package progress

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/ansible-actions/internal/events"
	"github.com/mattjoyce/ansible-actions/internal/queue"
	"github.com/mattjoyce/ansible-actions/internal/storage"
)

func TestRecorder_StoresAndPublishes(t *testing.T) {
	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	jobID, err := queue.New(db).Enqueue(ctx, queue.EnqueueRequest{Action: "run_playbook", SubmittedBy: "test"})
	require.NoError(t, err)

	hub := events.NewHub(10)
	rec := NewRecorder(db, hub)

	rec.SetProgress(ctx, jobID, "Running playbook 'site.yml' on 'all' servers")
	rec.SetProgress(ctx, jobID, "ok=3 changed=1")

	entries, err := rec.List(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Running playbook 'site.yml' on 'all' servers", entries[0].Message)
	assert.Equal(t, "ok=3 changed=1", entries[1].Message)
	assert.False(t, entries[0].CreatedAt.IsZero())

	snap := hub.Since(0, events.Filter{})
	require.Len(t, snap, 2)
	assert.Equal(t, events.TypeJobProgress, snap[1].Type)
	var p events.JobPayload
	require.NoError(t, json.Unmarshal(snap[1].Data, &p))
	assert.Equal(t, jobID, p.JobID)
	assert.Equal(t, "ok=3 changed=1", p.Message)
}

func TestRecorder_StoreFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	hub := events.NewHub(10)
	rec := NewRecorder(db, hub)

	// No such job: the foreign key rejects the insert but the event still goes out.
	rec.SetProgress(ctx, "ghost", "hello")

	entries, err := rec.List(ctx, "ghost")
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Len(t, hub.Since(0, events.Filter{}), 1)
}

func TestRecorder_NilSinks(t *testing.T) {
	rec := NewRecorder(nil, nil)
	assert.NotPanics(t, func() { rec.SetProgress(context.Background(), "j", "m") })
}
