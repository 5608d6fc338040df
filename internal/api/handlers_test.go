package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/ansible-actions/internal/auth"
	"github.com/mattjoyce/ansible-actions/internal/config"
	"github.com/mattjoyce/ansible-actions/internal/events"
	"github.com/mattjoyce/ansible-actions/internal/inventory"
	"github.com/mattjoyce/ansible-actions/internal/playbook"
	"github.com/mattjoyce/ansible-actions/internal/progress"
	"github.com/mattjoyce/ansible-actions/internal/queue"
	"github.com/mattjoyce/ansible-actions/internal/storage"
)

const testSeed = `
connectors:
  - name: local
environments:
  - name: prod
    connectors: [local]
applications: [web]
servers:
  - {hostname: web1, ip: 10.0.0.1, environment: prod, applications: [web]}
playbooks:
  - {name: Deploy, path: deploy.yml}
inventory_groups:
  - {name: webservers, connector: local, applications: [web], playbooks: [deploy.yml]}
`

type testEnv struct {
	srv   *Server
	queue *queue.Queue
	store *inventory.Store
	rec   *progress.Recorder
	hub   *events.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	seedPath := filepath.Join(t.TempDir(), "inventory.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte(testSeed), 0o644))
	store := inventory.NewStore(db)
	_, err = store.Import(ctx, seedPath, false)
	require.NoError(t, err)

	hub := events.NewHub(32)
	q := queue.New(db)
	rec := progress.NewRecorder(db, hub)
	cfg := Config{
		Listen: "127.0.0.1:0",
		APIKey: "admin-key",
		Tokens: []auth.TokenConfig{
			{Name: "reader", Token: "reader", Scopes: []string{auth.ScopeJobsRead}},
			{Name: "submitter", Token: "submitter", Scopes: []string{auth.ScopeJobsWrite}},
			{Name: "forms", Token: "forms", Scopes: []string{auth.ScopeInventoryRead}},
		},
		Actions: config.Defaults().Actions,
	}
	srv := New(cfg, q, store, rec, playbook.NewResolver(store), hub, slog.Default())
	return &testEnv{srv: srv, queue: q, store: store, rec: rec, hub: hub}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHealthz_NoAuth(t *testing.T) {
	e := newTestEnv(t)
	rr := e.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp HealthzResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.QueueDepth)
}

func TestCORS_Preflight(t *testing.T) {
	e := newTestEnv(t)
	e.srv.config.CORSOrigins = []string{"https://forms.example"}

	req := httptest.NewRequest(http.MethodOptions, "/playbooks/options", nil)
	req.Header.Set("Origin", "https://forms.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rr := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rr, req)
	assert.Equal(t, "https://forms.example", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestOpenAPI_ListsActions(t *testing.T) {
	e := newTestEnv(t)
	rr := e.do(t, http.MethodGet, "/openapi.json", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "/actions/run_adhoc_command")
	assert.Contains(t, rr.Body.String(), "/actions/run_playbook")
}

func TestSubmit_AuthAndScopes(t *testing.T) {
	e := newTestEnv(t)
	body := SubmitRequest{Params: json.RawMessage(`{"module":"ping","ansibleconf_id":1}`)}

	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodPost, "/actions/run_adhoc_command", "", body).Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodPost, "/actions/run_adhoc_command", "bogus", body).Code)
	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodPost, "/actions/run_adhoc_command", "reader", body).Code)
	assert.Equal(t, http.StatusAccepted, e.do(t, http.MethodPost, "/actions/run_adhoc_command", "submitter", body).Code)
	assert.Equal(t, http.StatusAccepted, e.do(t, http.MethodPost, "/actions/run_adhoc_command", "admin-key", body).Code)
}

func TestSubmit_EnqueuesWithServers(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	web1, err := e.store.ServerByHostname(ctx, "web1")
	require.NoError(t, err)

	rr := e.do(t, http.MethodPost, "/actions/run_playbook", "submitter", SubmitRequest{
		ServerIDs: []int64{web1.ID},
		Params:    json.RawMessage(`{"playbook_path":"deploy.yml","timeout":"30"}`),
	})
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	var resp SubmitResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "queued", resp.Status)
	assert.Equal(t, "run_playbook", resp.Action)

	job, err := e.queue.GetJobByID(ctx, resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, []int64{web1.ID}, job.ServerIDs)
	assert.Equal(t, "api:submitter", job.SubmittedBy)

	snap := e.hub.Since(0, events.Filter{})
	require.NotEmpty(t, snap)
	assert.Equal(t, events.TypeJobQueued, snap[len(snap)-1].Type)
}

func TestSubmit_Rejections(t *testing.T) {
	e := newTestEnv(t)
	web1, err := e.store.ServerByHostname(context.Background(), "web1")
	require.NoError(t, err)
	web1ID := strconv.FormatInt(web1.ID, 10)

	cases := []struct {
		name   string
		path   string
		body   any
		status int
		want   string
	}{
		{"unknown action", "/actions/reboot", SubmitRequest{}, http.StatusNotFound, "unknown action"},
		{"missing playbook", "/actions/run_playbook", SubmitRequest{Params: json.RawMessage(`{"limit":"all"}`)}, http.StatusBadRequest, "playbook_path is required"},
		{"bad params", "/actions/run_adhoc_command", SubmitRequest{Params: json.RawMessage(`{"timeout":true}`)}, http.StatusBadRequest, "decode"},
		{"unknown server", "/actions/run_adhoc_command", SubmitRequest{ServerIDs: []int64{999}, Params: json.RawMessage(`{"module":"ping"}`)}, http.StatusBadRequest, "unknown server id 999"},
		{"duplicate server", "/actions/run_adhoc_command", SubmitRequest{ServerIDs: []int64{web1.ID, web1.ID}, Params: json.RawMessage(`{"module":"ping"}`)}, http.StatusBadRequest, "duplicate server id " + web1ID},
		{"bad json", "/actions/run_adhoc_command", "not-an-object", http.StatusBadRequest, "invalid JSON body"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := e.do(t, http.MethodPost, tc.path, "admin-key", tc.body)
			assert.Equal(t, tc.status, rr.Code)
			assert.Contains(t, rr.Body.String(), tc.want)
		})
	}

	depth, err := e.queue.Depth(context.Background())
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestGetJob_WithProgress(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	id, err := e.queue.Enqueue(ctx, queue.EnqueueRequest{Action: "run_adhoc_command", SubmittedBy: "cli"})
	require.NoError(t, err)
	e.rec.SetProgress(ctx, id, "Running command 'ping' on 'all' servers")
	require.NoError(t, e.queue.Complete(ctx, id, queue.Outcome{Status: queue.StatusSucceeded}))

	rr := e.do(t, http.MethodGet, "/jobs/"+id, "reader", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp JobStatusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.JobID)
	assert.Equal(t, "succeeded", resp.Status)
	require.Len(t, resp.Progress, 1)
	assert.Equal(t, "Running command 'ping' on 'all' servers", resp.Progress[0].Message)

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/jobs/nope", "reader", nil).Code)
	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodGet, "/jobs/"+id, "forms", nil).Code)
}

func TestPlaybookOptions(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	web1, err := e.store.ServerByHostname(ctx, "web1")
	require.NoError(t, err)

	decode := func(rr *httptest.ResponseRecorder) []playbook.Choice {
		t.Helper()
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var resp PlaybookOptionsResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		return resp.Choices
	}

	got := decode(e.do(t, http.MethodGet, "/playbooks/options", "forms", nil))
	assert.Equal(t, []playbook.Choice{{Value: playbook.NoneValue, Label: playbook.NoneLabel}}, got)

	got = decode(e.do(t, http.MethodGet, "/playbooks/options?server_id="+itoa(web1.ID), "forms", nil))
	assert.Equal(t, []playbook.Choice{{Value: "deploy.yml", Label: "Deploy"}}, got)

	got = decode(e.do(t, http.MethodGet, "/playbooks/options?server_id="+itoa(web1.ID)+"&server_id=999", "forms", nil))
	assert.Equal(t, playbook.NoneValue, got[0].Value)

	g, err := e.store.GroupByName(ctx, "webservers")
	require.NoError(t, err)
	got = decode(e.do(t, http.MethodGet, "/playbooks/options?inventory_group_id="+itoa(g.ID), "forms", nil))
	assert.Equal(t, "deploy.yml", got[0].Value)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/playbooks/options?server_id=abc", "forms", nil).Code)
	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodGet, "/playbooks/options", "reader", nil).Code)
}

func TestEvents_StreamFiltersByJob(t *testing.T) {
	e := newTestEnv(t)
	ts := httptest.NewServer(e.srv.Handler())
	defer ts.Close()

	e.hub.Publish(events.TypeJobProgress, events.JobPayload{JobID: "other", Message: "skip me"})
	e.hub.Publish(events.TypeJobProgress, events.JobPayload{JobID: "mine", Message: "hello"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events?job_id=mine", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer admin-key")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	go func() {
		time.Sleep(50 * time.Millisecond)
		e.hub.Publish(events.TypeJobCompleted, events.JobPayload{JobID: "mine", Status: "succeeded"})
	}()

	var eventTypes []string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if strings.Contains(line, "skip me") {
			t.Fatalf("received event for another job: %s", line)
		}
		if v, ok := strings.CutPrefix(line, "event: "); ok {
			eventTypes = append(eventTypes, v)
			if v == events.TypeJobCompleted {
				break
			}
		}
	}
	assert.Equal(t, []string{events.TypeJobProgress, events.TypeJobCompleted}, eventTypes)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
