package events

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/wabridge/wabridge/internal/biz/domain"
)

func newTestHub() *Hub {
	return NewHub(zerolog.Nop())
}

func TestPublishReachesAllObservers(t *testing.T) {
	h := newTestHub()
	a := h.Subscribe()
	b := h.Subscribe()

	h.Publish(TopicMessage, "payload-1")

	for _, o := range []*Observer{a, b} {
		select {
		case ev := <-o.Events():
			if ev.Topic != TopicMessage || ev.Payload != "payload-1" {
				t.Errorf("Unexpected event: %+v", ev)
			}
		default:
			t.Error("Expected event delivered to observer")
		}
	}
}

func TestNewObserverGetsStatusAndQRReplay(t *testing.T) {
	h := newTestHub()

	h.Publish(TopicStatus, domain.SessionSnapshot{State: domain.StateQRPending})
	h.Publish(TopicQR, "qr-data")

	o := h.Subscribe()

	ev := <-o.Events()
	if ev.Topic != TopicStatus {
		t.Fatalf("Expected status replay first, got %s", ev.Topic)
	}
	snap := ev.Payload.(domain.SessionSnapshot)
	if snap.State != domain.StateQRPending {
		t.Errorf("Expected QR_PENDING snapshot, got %s", snap.State)
	}

	ev = <-o.Events()
	if ev.Topic != TopicQR || ev.Payload != "qr-data" {
		t.Errorf("Expected QR replay, got %+v", ev)
	}
}

func TestEmptyQRClearsPendingReplay(t *testing.T) {
	h := newTestHub()
	h.Publish(TopicQR, "qr-data")
	h.Publish(TopicQR, "")

	o := h.Subscribe()
	select {
	case ev := <-o.Events():
		t.Errorf("Expected no replay after QR cleared, got %+v", ev)
	default:
	}
}

func TestNoDeliveryToLateObservers(t *testing.T) {
	h := newTestHub()
	h.Publish(TopicMessage, "missed")

	o := h.Subscribe()
	select {
	case ev := <-o.Events():
		t.Errorf("Expected no message replay, got %+v", ev)
	default:
	}
}

func TestPublishOrderPreservedPerTopic(t *testing.T) {
	h := newTestHub()
	o := h.Subscribe()

	for i := 0; i < 5; i++ {
		h.Publish(TopicLoading, i)
	}

	for i := 0; i < 5; i++ {
		ev := <-o.Events()
		if ev.Payload != i {
			t.Fatalf("Expected payload %d in order, got %v", i, ev.Payload)
		}
	}
}

func TestSlowObserverDoesNotBlockPublish(t *testing.T) {
	h := newTestHub()
	o := h.Subscribe()

	// Overflow the queue; Publish must not block or panic.
	for i := 0; i < observerQueueSize+10; i++ {
		h.Publish(TopicMessage, i)
	}

	drained := 0
	for {
		select {
		case <-o.Events():
			drained++
			continue
		default:
		}
		break
	}
	if drained != observerQueueSize {
		t.Errorf("Expected %d buffered events, got %d", observerQueueSize, drained)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := newTestHub()
	o := h.Subscribe()
	h.Unsubscribe(o.ID())

	// Must not panic on publish after unsubscribe.
	h.Publish(TopicMessage, "after")

	if h.ObserverCount() != 0 {
		t.Errorf("Expected 0 observers, got %d", h.ObserverCount())
	}
	if _, ok := <-o.Events(); ok {
		t.Error("Expected closed channel after unsubscribe")
	}
}
