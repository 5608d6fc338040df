package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/mattjoyce/ansible-actions/internal/events"
	"github.com/mattjoyce/ansible-actions/internal/inventory"
	"github.com/mattjoyce/ansible-actions/internal/queue"
)

type mockQueue struct {
	enqueueFn func(ctx context.Context, req queue.EnqueueRequest) (string, error)
}

func (m *mockQueue) Enqueue(ctx context.Context, req queue.EnqueueRequest) (string, error) {
	return m.enqueueFn(ctx, req)
}

type mapServers map[string]int64

func (m mapServers) ServerByHostname(_ context.Context, hostname string) (*inventory.Server, error) {
	id, ok := m[hostname]
	if !ok {
		return nil, inventory.ErrNotFound
	}
	return &inventory.Server{ID: id, Hostname: hostname}, nil
}

type recordingPublisher struct {
	mu    sync.Mutex
	types []string
}

func (p *recordingPublisher) Publish(eventType string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, eventType)
}

const testSecret = "test-secret"

func testConfig() Config {
	return Config{
		Listen: "127.0.0.1:0",
		Endpoints: []EndpointConfig{
			{
				Path:            "/hooks/deploy",
				Action:          "run_playbook",
				Params:          json.RawMessage(`{"playbook_path":"/srv/deploy.yml"}`),
				Servers:         []string{"web1", "web2"},
				Secret:          testSecret,
				SignatureHeader: "X-Hub-Signature-256",
			},
		},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func signedRequest(path string, body []byte) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", SignatureHeaderValue(body, testSecret))
	return req
}

func TestHandleWebhook_Success(t *testing.T) {
	var got queue.EnqueueRequest
	mq := &mockQueue{enqueueFn: func(_ context.Context, req queue.EnqueueRequest) (string, error) {
		got = req
		return "job-123", nil
	}}
	pub := &recordingPublisher{}
	server := New(testConfig(), mq, mapServers{"web1": 1, "web2": 2}, pub, quietLogger())

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, signedRequest("/hooks/deploy", []byte(`{"ref":"main"}`)))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	var resp TriggerResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.JobID != "job-123" || resp.Action != "run_playbook" || resp.Status != "queued" {
		t.Fatalf("response = %+v", resp)
	}

	if got.Action != "run_playbook" || got.SubmittedBy != "webhook:/hooks/deploy" {
		t.Fatalf("enqueued = %+v", got)
	}
	if string(got.Params) != `{"playbook_path":"/srv/deploy.yml"}` {
		t.Fatalf("params = %s, the request body must not leak into params", got.Params)
	}
	if len(got.ServerIDs) != 2 || got.ServerIDs[0] != 1 || got.ServerIDs[1] != 2 {
		t.Fatalf("server ids = %v", got.ServerIDs)
	}
	if len(pub.types) != 1 || pub.types[0] != events.TypeJobQueued {
		t.Fatalf("published = %v", pub.types)
	}
}

func TestHandleWebhook_Rejections(t *testing.T) {
	body := []byte(`{"ref":"main"}`)
	tests := []struct {
		name    string
		req     func() *http.Request
		servers mapServers
		want    int
		wantErr string
	}{
		{
			name: "invalid signature",
			req: func() *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/hooks/deploy", bytes.NewReader(body))
				req.Header.Set("X-Hub-Signature-256", SignatureHeaderValue(body, "wrong"))
				return req
			},
			servers: mapServers{"web1": 1, "web2": 2},
			want:    http.StatusForbidden,
			wantErr: "forbidden",
		},
		{
			name: "missing signature",
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/hooks/deploy", bytes.NewReader(body))
			},
			servers: mapServers{"web1": 1, "web2": 2},
			want:    http.StatusForbidden,
			wantErr: "forbidden",
		},
		{
			name:    "unknown server",
			req:     func() *http.Request { return signedRequest("/hooks/deploy", body) },
			servers: mapServers{"web1": 1},
			want:    http.StatusUnprocessableEntity,
			wantErr: `unknown server "web2"`,
		},
		{
			name:    "unknown path",
			req:     func() *http.Request { return signedRequest("/hooks/other", body) },
			servers: mapServers{"web1": 1, "web2": 2},
			want:    http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mq := &mockQueue{enqueueFn: func(context.Context, queue.EnqueueRequest) (string, error) {
				t.Fatal("Enqueue must not be called")
				return "", nil
			}}
			server := New(testConfig(), mq, tt.servers, nil, quietLogger())

			rec := httptest.NewRecorder()
			server.Handler().ServeHTTP(rec, tt.req())
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.wantErr == "" {
				return
			}
			var resp ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Error != tt.wantErr {
				t.Fatalf("error = %q, want %q", resp.Error, tt.wantErr)
			}
		})
	}
}

func TestHandleWebhook_BodyTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Endpoints[0].MaxBodySize = 8
	mq := &mockQueue{enqueueFn: func(context.Context, queue.EnqueueRequest) (string, error) {
		t.Fatal("Enqueue must not be called")
		return "", nil
	}}
	server := New(cfg, mq, mapServers{}, nil, quietLogger())

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, signedRequest("/hooks/deploy", []byte(`{"ref":"a-long-branch-name"}`)))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
}

func TestHandleWebhook_EnqueueFailure(t *testing.T) {
	mq := &mockQueue{enqueueFn: func(context.Context, queue.EnqueueRequest) (string, error) {
		return "", errors.New("database is locked")
	}}
	pub := &recordingPublisher{}
	server := New(testConfig(), mq, mapServers{"web1": 1, "web2": 2}, pub, quietLogger())

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, signedRequest("/hooks/deploy", []byte(`{}`)))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if len(pub.types) != 0 {
		t.Fatalf("published %v for a failed enqueue", pub.types)
	}
}
