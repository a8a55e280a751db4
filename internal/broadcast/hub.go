// Package broadcast fans pipeline events out to realtime subscribers.
// Subscribers join topic rooms; each subscriber owns a bounded queue and a
// slow consumer loses its oldest events, never stalling the publisher or
// its room mates.
package broadcast

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"dex-sniper-core/internal/domain"
)

// DefaultQueueSize is the per-subscriber event queue capacity.
const DefaultQueueSize = 64

// Subscription is one subscriber's membership in a set of topic rooms.
// Events arrive on C in publish order per topic.
type Subscription struct {
	hub    *Hub
	topics map[string]struct{}
	ch     chan domain.Event

	mu      sync.Mutex // serializes drop-oldest with send
	closed  bool
	dropped atomic.Uint64
}

// C returns the subscriber's event channel. It is closed by Close.
func (s *Subscription) C() <-chan domain.Event {
	return s.ch
}

// Dropped returns how many events were evicted because the subscriber
// lagged.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close leaves all rooms and closes the event channel.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s)
}

// enqueue delivers an event, evicting the oldest queued event when full.
func (s *Subscription) enqueue(ev domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- ev:
			return
		default:
			select {
			case <-s.ch:
				s.dropped.Add(1)
			default:
			}
		}
	}
}

// Hub routes events to topic rooms.
type Hub struct {
	queueSize int
	logger    *log.Logger
	now       func() int64

	mu    sync.RWMutex
	rooms map[string]map[*Subscription]struct{}

	published atomic.Uint64
	dropped   atomic.Uint64
}

// Options configures a Hub.
type Options struct {
	QueueSize int // per-subscriber queue capacity
	Logger    *log.Logger
	Now       func() int64
}

// NewHub creates a Hub.
func NewHub(opts Options) *Hub {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Now == nil {
		opts.Now = func() int64 { return time.Now().UnixMilli() }
	}
	return &Hub{
		queueSize: opts.QueueSize,
		logger:    opts.Logger,
		now:       opts.Now,
		rooms:     make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe joins the given topic rooms and returns the subscription.
func (h *Hub) Subscribe(topics ...string) *Subscription {
	sub := &Subscription{
		hub:    h,
		topics: make(map[string]struct{}, len(topics)),
		ch:     make(chan domain.Event, h.queueSize),
	}
	h.mu.Lock()
	for _, topic := range topics {
		sub.topics[topic] = struct{}{}
		room, ok := h.rooms[topic]
		if !ok {
			room = make(map[*Subscription]struct{})
			h.rooms[topic] = room
		}
		room[sub] = struct{}{}
	}
	h.mu.Unlock()
	return sub
}

// Join adds the subscription to one more room.
func (h *Hub) Join(sub *Subscription, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub.mu.Lock()
	closed := sub.closed
	sub.mu.Unlock()
	if closed {
		return
	}
	sub.topics[topic] = struct{}{}
	room, ok := h.rooms[topic]
	if !ok {
		room = make(map[*Subscription]struct{})
		h.rooms[topic] = room
	}
	room[sub] = struct{}{}
}

// Leave removes the subscription from one room.
func (h *Hub) Leave(sub *Subscription, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(sub.topics, topic)
	if room, ok := h.rooms[topic]; ok {
		delete(room, sub)
		if len(room) == 0 {
			delete(h.rooms, topic)
		}
	}
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	for topic := range sub.topics {
		if room, ok := h.rooms[topic]; ok {
			delete(room, sub)
			if len(room) == 0 {
				delete(h.rooms, topic)
			}
		}
	}
	h.mu.Unlock()

	sub.mu.Lock()
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
	sub.mu.Unlock()
}

// Publish builds an envelope and delivers it to every subscriber of the
// topic. Delivery never blocks; a mismatched type/payload pair is an error.
func (h *Hub) Publish(topic string, t domain.EventType, data domain.EventPayload) error {
	ev, err := domain.NewEvent(uuid.NewString(), t, data, h.now())
	if err != nil {
		return err
	}

	// The write lock serializes publishers so every subscriber of a
	// topic sees its events in one global publish order.
	h.mu.Lock()
	for sub := range h.rooms[topic] {
		before := sub.dropped.Load()
		sub.enqueue(ev)
		h.dropped.Add(sub.dropped.Load() - before)
	}
	h.mu.Unlock()

	h.published.Add(1)
	return nil
}

// Stats returns total published and total dropped event counts.
func (h *Hub) Stats() (published, dropped uint64) {
	return h.published.Load(), h.dropped.Load()
}

// Subscribers returns the current member count of a room.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[topic])
}

// Close shuts down every live subscription. Publishing afterwards is
// safe; events go to empty rooms.
func (h *Hub) Close() {
	h.mu.RLock()
	seen := make(map[*Subscription]struct{})
	for _, room := range h.rooms {
		for sub := range room {
			seen[sub] = struct{}{}
		}
	}
	h.mu.RUnlock()
	for sub := range seen {
		sub.Close()
	}
}

// TotalSubscribers returns the number of distinct live subscriptions.
func (h *Hub) TotalSubscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[*Subscription]struct{})
	for _, room := range h.rooms {
		for sub := range room {
			seen[sub] = struct{}{}
		}
	}
	return len(seen)
}
