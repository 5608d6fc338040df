package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/mattjoyce/ansible-actions/internal/events"
)

const sseKeepAlive = 15 * time.Second

// handleEvents streams GET /events. ?job_id= narrows the stream to one job;
// Last-Event-ID replays remembered events newer than that ID first.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	filter := events.Filter{JobID: r.URL.Query().Get("job_id")}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// Subscribe before replaying so nothing published in between is lost;
	// lastID then drops the overlap.
	sub := s.events.Subscribe(filter)
	defer func() {
		sub.Close()
		if n := sub.Dropped(); n > 0 {
			s.logger.Warn("event stream client fell behind", "dropped", n, "job_id", filter.JobID)
		}
	}()

	lastID := lastEventID(r)
	for _, ev := range s.events.Since(lastID, filter) {
		if events.WriteSSE(w, ev) != nil {
			return
		}
		lastID = ev.ID
	}
	flusher.Flush()

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			if ev.ID <= lastID {
				continue
			}
			if events.WriteSSE(w, ev) != nil {
				return
			}
			lastID = ev.ID
			flusher.Flush()
		case <-ticker.C:
			if events.WriteKeepAlive(w) != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func lastEventID(r *http.Request) int64 {
	n, err := strconv.ParseInt(r.Header.Get("Last-Event-ID"), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
