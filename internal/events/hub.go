package events

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wabridge/wabridge/internal/biz/domain"
)

// Topic is a fan-out channel name.
type Topic string

const (
	TopicStatus  Topic = "status"
	TopicQR      Topic = "qr"
	TopicMessage Topic = "message"
	TopicLoading Topic = "loading"
)

// Event is one published item.
type Event struct {
	Topic   Topic `json:"topic"`
	Payload any   `json:"payload"`
}

// observerQueueSize bounds each observer's backlog. A full queue drops the
// event rather than blocking the publisher.
const observerQueueSize = 64

// Observer is one registered receiver. Events arrive on Events() in publish
// order per topic until Unsubscribe, which closes the channel.
type Observer struct {
	id string
	ch chan Event

	mu     sync.Mutex
	closed bool
}

// ID returns the registration handle.
func (o *Observer) ID() string { return o.id }

// Events is the receive side of the observer's queue.
func (o *Observer) Events() <-chan Event { return o.ch }

// offer enqueues without blocking. Returns false when the queue is full or
// the observer is already closed.
func (o *Observer) offer(ev Event) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return false
	}
	select {
	case o.ch <- ev:
		return true
	default:
		return false
	}
}

func (o *Observer) shutdown() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.closed {
		o.closed = true
		close(o.ch)
	}
}

// Hub is the process-wide publish point. Delivery is at-most-once with no
// buffering, except the latest session snapshot and pending QR payload which
// are replayed to each newly registered observer.
type Hub struct {
	mu         sync.RWMutex
	observers  map[string]*Observer
	lastStatus *domain.SessionSnapshot
	pendingQR  string
	log        zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		observers: make(map[string]*Observer),
		log:       log.With().Str("component", "hub").Logger(),
	}
}

// Subscribe registers a new observer and immediately replays the last-known
// status and any pending QR payload.
func (h *Hub) Subscribe() *Observer {
	o := &Observer{
		id: uuid.NewString(),
		ch: make(chan Event, observerQueueSize),
	}

	h.mu.Lock()
	h.observers[o.id] = o
	status := h.lastStatus
	qr := h.pendingQR
	h.mu.Unlock()

	if status != nil {
		o.offer(Event{Topic: TopicStatus, Payload: *status})
	}
	if qr != "" {
		o.offer(Event{Topic: TopicQR, Payload: qr})
	}

	h.log.Debug().Str("observer", o.id).Msg("observer subscribed")
	return o
}

// Unsubscribe removes an observer and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	o, ok := h.observers[id]
	if ok {
		delete(h.observers, id)
	}
	h.mu.Unlock()

	if ok {
		o.shutdown()
		h.log.Debug().Str("observer", id).Msg("observer unsubscribed")
	}
}

// Publish delivers payload to every currently registered observer.
// Fire-and-forget: a slow observer's full queue drops the event instead of
// blocking publication. Status and QR payloads are cached for replay; an
// empty QR payload clears the pending cache (authentication consumed it)
// without fanning out.
func (h *Hub) Publish(topic Topic, payload any) {
	h.mu.Lock()
	switch topic {
	case TopicStatus:
		if snap, ok := payload.(domain.SessionSnapshot); ok {
			h.lastStatus = &snap
		}
	case TopicQR:
		qr, _ := payload.(string)
		h.pendingQR = qr
		if qr == "" {
			h.mu.Unlock()
			return
		}
	}
	targets := make([]*Observer, 0, len(h.observers))
	for _, o := range h.observers {
		targets = append(targets, o)
	}
	h.mu.Unlock()

	ev := Event{Topic: topic, Payload: payload}
	for _, o := range targets {
		if !o.offer(ev) {
			h.log.Warn().Str("observer", o.id).Str("topic", string(topic)).Msg("observer queue full, dropping event")
		}
	}
}

// ObserverCount reports the number of registered observers.
func (h *Hub) ObserverCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}
