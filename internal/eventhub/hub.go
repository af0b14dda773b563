package eventhub

import (
	"context"
	"sync"

	"github.com/eweinhaus/VideoGen-sub002/internal/domain"
	"github.com/eweinhaus/VideoGen-sub002/internal/infra"
)

// Publisher is the write side of the event stream. Producers fire and forget;
// delivery to any individual subscriber is best-effort.
type Publisher interface {
	Publish(ctx context.Context, ev domain.Event)
}

// Hub fans events out to the live subscribers of each job. A subscriber that
// cannot drain its bounded buffer is dropped rather than ever blocking a
// producer; the dropped client reconnects and re-runs catch-up.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscriber]struct{}
	buffer int
	logger infra.Logger
	closed bool
}

// Subscriber is one live event stream attached to a job.
type Subscriber struct {
	jobID string
	ch    chan domain.Event
	once  sync.Once
}

// Events is the subscriber's receive channel. It is closed when the
// subscriber is detached or dropped.
func (s *Subscriber) Events() <-chan domain.Event {
	return s.ch
}

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// NewHub creates a hub with the given per-subscriber buffer size.
func NewHub(buffer int, logger infra.Logger) *Hub {
	if buffer < 1 {
		buffer = 16
	}
	return &Hub{
		subs:   make(map[string]map[*Subscriber]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe attaches a new live subscriber to jobID. Attach before reading
// the catch-up snapshot so no event published in between is missed.
func (h *Hub) Subscribe(jobID string) *Subscriber {
	sub := &Subscriber{jobID: jobID, ch: make(chan domain.Event, h.buffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.close()
		return sub
	}
	set, ok := h.subs[jobID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.subs[jobID] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Unsubscribe detaches sub and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	if set, ok := h.subs[sub.jobID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.jobID)
		}
	}
	h.mu.Unlock()
	sub.close()
}

// Broadcast delivers ev to every subscriber of its job. Events for one job
// arrive in call order; a full subscriber buffer drops that subscriber.
func (h *Hub) Broadcast(ev domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[ev.JobID]
	for sub := range set {
		select {
		case sub.ch <- ev:
		default:
			h.logger.Warn().Str("job_id", ev.JobID).Msg("eventhub: dropping slow subscriber")
			delete(set, sub)
			sub.close()
		}
	}
	if len(set) == 0 {
		delete(h.subs, ev.JobID)
	}
}

// Close detaches every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for jobID, set := range h.subs {
		for sub := range set {
			sub.close()
		}
		delete(h.subs, jobID)
	}
}
