package usecase

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/wabridge/wabridge/internal/biz/domain"
	"github.com/wabridge/wabridge/internal/biz/repo"
	"github.com/wabridge/wabridge/internal/events"
)

func drainEvents(o *events.Observer) []events.Event {
	var out []events.Event
	for {
		select {
		case ev := <-o.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestApplyDrivesLifecycleToReady(t *testing.T) {
	hub := events.NewHub(zerolog.Nop())
	uc := NewSessionUsecase(domain.NewSession(), hub, zerolog.Nop())

	obs := hub.Subscribe()
	defer hub.Unsubscribe(obs.ID())

	uc.Apply(repo.ClientEvent{Kind: repo.EventQR, Payload: "qr-blob"})
	uc.Apply(repo.ClientEvent{Kind: repo.EventAuthenticated})
	uc.Apply(repo.ClientEvent{Kind: repo.EventReady})

	snap := uc.Snapshot()
	if snap.State != domain.StateReady || !snap.IsReady || !snap.IsAuthenticated {
		t.Fatalf("Expected ready session, got %+v", snap)
	}

	evs := drainEvents(obs)
	var sawQR bool
	var lastStatus *domain.SessionSnapshot
	for _, ev := range evs {
		switch ev.Topic {
		case events.TopicQR:
			sawQR = true
		case events.TopicStatus:
			s := ev.Payload.(domain.SessionSnapshot)
			lastStatus = &s
		}
	}
	if !sawQR {
		t.Error("Expected the QR payload fanned out")
	}
	if lastStatus == nil || lastStatus.State != domain.StateReady {
		t.Errorf("Expected final status READY, got %+v", lastStatus)
	}
}

func TestApplyAuthenticationClearsPendingQR(t *testing.T) {
	hub := events.NewHub(zerolog.Nop())
	uc := NewSessionUsecase(domain.NewSession(), hub, zerolog.Nop())

	uc.Apply(repo.ClientEvent{Kind: repo.EventQR, Payload: "qr-blob"})
	uc.Apply(repo.ClientEvent{Kind: repo.EventAuthenticated})

	// A late subscriber must not be shown the consumed QR code.
	obs := hub.Subscribe()
	defer hub.Unsubscribe(obs.ID())
	for _, ev := range drainEvents(obs) {
		if ev.Topic == events.TopicQR {
			t.Errorf("Consumed QR replayed to late subscriber: %+v", ev)
		}
	}
}

func TestApplyConflictDropsReadiness(t *testing.T) {
	hub := events.NewHub(zerolog.Nop())
	uc := NewSessionUsecase(domain.NewSession(), hub, zerolog.Nop())

	uc.Apply(repo.ClientEvent{Kind: repo.EventAuthenticated})
	uc.Apply(repo.ClientEvent{Kind: repo.EventReady})
	uc.Apply(repo.ClientEvent{Kind: repo.EventStateChange, Payload: domain.ClientStateConflict})

	snap := uc.Snapshot()
	if snap.IsReady || snap.IsAuthenticated {
		t.Errorf("Conflict must force both flags false, got %+v", snap)
	}
	if snap.State != domain.StateDisconnected {
		t.Errorf("Expected DISCONNECTED after conflict, got %s", snap.State)
	}
}

func TestApplyIgnoresNonLifecycleEvents(t *testing.T) {
	hub := events.NewHub(zerolog.Nop())
	uc := NewSessionUsecase(domain.NewSession(), hub, zerolog.Nop())

	obs := hub.Subscribe()
	defer hub.Unsubscribe(obs.ID())

	uc.Apply(repo.ClientEvent{Kind: repo.EventMessage})
	if evs := drainEvents(obs); len(evs) != 0 {
		t.Errorf("Message events are not session transitions, got %v", evs)
	}
}
