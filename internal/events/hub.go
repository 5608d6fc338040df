// Package events fans job and inventory events out to SSE clients and keeps a
// short history so late or reconnecting clients can catch up.
package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Event is one published event. JobID is extracted from job payloads at
// publish time so filtering never re-decodes Data.
type Event struct {
	ID    int64           `json:"id"`
	Type  string          `json:"type"`
	At    time.Time       `json:"at"`
	JobID string          `json:"-"`
	Data  json.RawMessage `json:"data"`
}

// Filter narrows a subscription or history query. The zero Filter matches
// everything.
type Filter struct {
	JobID string
}

func (f Filter) matches(ev Event) bool {
	return f.JobID == "" || ev.JobID == f.JobID
}

const subscriberBuffer = 128

// Hub is an in-memory pub/sub. Publishing never blocks: a subscriber whose
// buffer is full misses the event and its Dropped count grows.
type Hub struct {
	nextID atomic.Int64

	mu      sync.Mutex
	limit   int
	history []Event
	subs    map[*Subscription]struct{}
}

// NewHub returns a hub that remembers the last limit events.
func NewHub(limit int) *Hub {
	if limit <= 0 {
		limit = 100
	}
	return &Hub{
		limit:   limit,
		history: make([]Event, 0, limit),
		subs:    make(map[*Subscription]struct{}),
	}
}

// Publish records an event and delivers it to matching subscribers.
func (h *Hub) Publish(eventType string, data any) {
	ev := Event{
		ID:   h.nextID.Add(1),
		Type: eventType,
		At:   time.Now().UTC(),
		Data: json.RawMessage("{}"),
	}
	if p, ok := data.(JobPayload); ok {
		ev.JobID = p.JobID
	}
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			ev.Data = b
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.history) == h.limit {
		copy(h.history, h.history[1:])
		h.history = h.history[:h.limit-1]
	}
	h.history = append(h.history, ev)

	for sub := range h.subs {
		if !sub.filter.matches(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			sub.dropped.Add(1)
		}
	}
}

// Since returns remembered events newer than lastID that match f, oldest
// first.
func (h *Hub) Since(lastID int64, f Filter) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Event, 0, len(h.history))
	for _, ev := range h.history {
		if ev.ID > lastID && f.matches(ev) {
			out = append(out, ev)
		}
	}
	return out
}

// Subscribe registers a subscriber for events matching f.
func (h *Hub) Subscribe(f Filter) *Subscription {
	sub := &Subscription{hub: h, filter: f, ch: make(chan Event, subscriberBuffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Subscription receives events from a Hub until Close is called.
type Subscription struct {
	hub     *Hub
	filter  Filter
	ch      chan Event
	dropped atomic.Uint64
}

// C delivers events. It is closed by Close.
func (s *Subscription) C() <-chan Event { return s.ch }

// Dropped counts events lost because the subscriber fell behind.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if _, ok := s.hub.subs[s]; ok {
		delete(s.hub.subs, s)
		close(s.ch)
	}
}
