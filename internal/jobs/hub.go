package jobs

import (
	"context"
	"sync"
)

// Hub fans job events out to live subscribers such as WebSocket clients.
// Sends never block the job: a subscriber whose buffer is full misses events
// and is expected to resync from the status snapshot.
type Hub struct {
	mu     sync.Mutex
	buffer int
	subs   map[string]map[*Subscription]struct{}
}

// Subscription receives events for one job until Close is called.
type Subscription struct {
	C <-chan Event

	ch     chan Event
	hub    *Hub
	jobID  string
	once   sync.Once
	missed int
}

// NewHub returns a hub whose subscribers buffer up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	return &Hub{buffer: buffer, subs: map[string]map[*Subscription]struct{}{}}
}

// Subscribe registers interest in jobID.
func (h *Hub) Subscribe(jobID string) *Subscription {
	ch := make(chan Event, h.buffer)
	s := &Subscription{C: ch, ch: ch, hub: h, jobID: jobID}
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[jobID]
	if !ok {
		set = map[*Subscription]struct{}{}
		h.subs[jobID] = set
	}
	set[s] = struct{}{}
	return s
}

// Close unregisters the subscription and closes its channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.subs[s.jobID]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(h.subs, s.jobID)
			}
		}
		close(s.ch)
	})
}

// Missed reports how many events were dropped for this subscriber.
func (s *Subscription) Missed() int {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	return s.missed
}

// Subscribers returns the number of live subscribers for jobID.
func (h *Hub) Subscribers(jobID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[jobID])
}

// Observe implements Observer.
func (h *Hub) Observe(_ context.Context, ev Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs[ev.JobID] {
		select {
		case s.ch <- ev:
		default:
			s.missed++
		}
	}
	return nil
}

var _ Observer = (*Hub)(nil)
