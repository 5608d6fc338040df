package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/ansible-actions/internal/api"
	"github.com/mattjoyce/ansible-actions/internal/events"
)

type (
	eventMsg           events.Event
	healthMsg          api.HealthzResponse
	jobMsg             api.JobStatusResponse
	tickMsg            time.Time
	errMsg             error
	sseDisconnectedMsg struct{}
	reconnectMsg       struct{}
)

// lookupTimeout bounds the short JSON calls. The event stream has no
// deadline and ends only when the server closes it.
const lookupTimeout = 2 * time.Second

// apiClient talks to one ansible-actions API with one bearer token.
type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	return &apiClient{
		base:  strings.TrimRight(baseURL, "/"),
		token: token,
		http:  &http.Client{},
	}
}

func (c *apiClient) request(ctx context.Context, path string, query url.Values) (*http.Request, error) {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *apiClient) getJSON(path string, out any) error {
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	req, err := c.request(ctx, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// stream follows /events, optionally for a single job, resuming after
// lastID. Decoded events go to sink; the command yields
// sseDisconnectedMsg once the connection drops.
func (c *apiClient) stream(jobID string, lastID int64, sink chan<- events.Event) tea.Cmd {
	return func() tea.Msg {
		var q url.Values
		if jobID != "" {
			q = url.Values{"job_id": {jobID}}
		}
		req, err := c.request(context.Background(), "/events", q)
		if err != nil {
			return errMsg(err)
		}
		if lastID > 0 {
			req.Header.Set("Last-Event-ID", strconv.FormatInt(lastID, 10))
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return sseDisconnectedMsg{}
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return errMsg(fmt.Errorf("events: %s", resp.Status))
		}

		_ = events.ReadSSE(resp.Body, func(ev events.Event) { sink <- ev })
		return sseDisconnectedMsg{}
	}
}

func (c *apiClient) health() tea.Msg {
	var h api.HealthzResponse
	if err := c.getJSON("/healthz", &h); err != nil {
		return errMsg(err)
	}
	return healthMsg(h)
}

// job loads a job with its stored progress so a late watcher sees history.
func (c *apiClient) job(id string) tea.Cmd {
	return func() tea.Msg {
		var j api.JobStatusResponse
		if err := c.getJSON("/jobs/"+url.PathEscape(id), &j); err != nil {
			return errMsg(err)
		}
		return jobMsg(j)
	}
}

func nextEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg { return eventMsg(<-ch) }
}
