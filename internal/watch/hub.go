// Package watch fans event changes out to in-process subscribers. The HTTP
// layer bridges subscriptions onto server-sent event streams so list and
// detail pages update without polling.
package watch

import (
	"sync"

	"github.com/sffxzzp/northbound-gather/internal/model"
)

// Change describes one mutation to the event collection.
type Change struct {
	// Kind is "created", "updated", or "deleted".
	Kind string `json:"kind"`
	// EventID is always set. Event is nil for deletions.
	EventID string       `json:"eventId"`
	Event   *model.Event `json:"event,omitempty"`
}

const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// subscriber buffer size. Sends never block: a subscriber that falls this
// far behind misses changes and must re-fetch.
const subscriberBuffer = 16

type subscriber struct {
	ch      chan Change
	eventID string // empty matches all events
}

// Hub is a broadcast registry of change subscribers. The zero value is not
// usable; construct with NewHub.
type Hub struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

// SubscribeAll registers for every change. The returned cancel func must be
// called when the consumer is done; after cancel the channel is closed.
func (h *Hub) SubscribeAll() (<-chan Change, func()) {
	return h.subscribe("")
}

// Subscribe registers for changes to a single event.
func (h *Hub) Subscribe(eventID string) (<-chan Change, func()) {
	return h.subscribe(eventID)
}

func (h *Hub) subscribe(eventID string) (<-chan Change, func()) {
	sub := &subscriber{ch: make(chan Change, subscriberBuffer), eventID: eventID}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[sub]; ok {
			delete(h.subs, sub)
			close(sub.ch)
		}
		h.mu.Unlock()
	}
	return sub.ch, cancel
}

// Publish broadcasts a create or update carrying the committed event state.
func (h *Hub) Publish(kind string, event *model.Event) {
	h.broadcast(Change{Kind: kind, EventID: event.ID, Event: event})
}

// PublishDelete broadcasts a deletion by id.
func (h *Hub) PublishDelete(eventID string) {
	h.broadcast(Change{Kind: KindDeleted, EventID: eventID})
}

func (h *Hub) broadcast(c Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if sub.eventID != "" && sub.eventID != c.EventID {
			continue
		}
		select {
		case sub.ch <- c:
		default:
			// Slow consumer: drop rather than stall the writer.
		}
	}
}
