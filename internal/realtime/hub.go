package realtime

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Hub fans events out to in-process subscribers. It never blocks the
// publisher: a subscriber whose buffer is full misses the event.
type Hub struct {
	mu      sync.RWMutex
	subs    map[uint64]*Subscription
	nextID  atomic.Uint64
	buffer  int
	dropped atomic.Uint64
}

type Subscription struct {
	id     uint64
	events chan Event
	hub    *Hub
	once   sync.Once
}

func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		subs:   make(map[uint64]*Subscription),
		buffer: buffer,
	}
}

var _ Publisher = (*Hub)(nil)

func (h *Hub) Subscribe() *Subscription {
	s := &Subscription{
		id:     h.nextID.Add(1),
		events: make(chan Event, h.buffer),
		hub:    h,
	}
	h.mu.Lock()
	h.subs[s.id] = s
	h.mu.Unlock()
	return s
}

// Publish hands ev to every current subscriber.
func (h *Hub) Publish(_ context.Context, ev Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, s := range h.subs {
		select {
		case s.events <- ev:
		default:
			h.dropped.Add(1)
			slog.Warn("Dropping event for slow subscriber", "subscriber", id, "event", ev.Kind)
		}
	}
	return nil
}

// Subscribers reports the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped reports how many deliveries were skipped because a buffer was full.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

func (s *Subscription) ID() uint64 { return s.id }

// Events is closed once the subscription is closed.
func (s *Subscription) Events() <-chan Event { return s.events }

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s.id)
		s.hub.mu.Unlock()
		close(s.events)
	})
}
