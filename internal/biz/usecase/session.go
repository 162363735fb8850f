package usecase

import (
	"github.com/rs/zerolog"

	"github.com/wabridge/wabridge/internal/biz/domain"
	"github.com/wabridge/wabridge/internal/biz/repo"
	"github.com/wabridge/wabridge/internal/events"
)

// SessionUsecase applies external lifecycle events to the session state
// machine and fans the resulting snapshots out to observers.
type SessionUsecase struct {
	session *domain.Session
	hub     *events.Hub
	log     zerolog.Logger
}

// NewSessionUsecase creates the usecase around the process-wide session.
func NewSessionUsecase(session *domain.Session, hub *events.Hub, log zerolog.Logger) *SessionUsecase {
	return &SessionUsecase{
		session: session,
		hub:     hub,
		log:     log.With().Str("component", "session").Logger(),
	}
}

// Apply routes one lifecycle event into the state machine and publishes the
// new snapshot. Message and loading events are not session transitions and
// are handled by the bridge server directly.
func (uc *SessionUsecase) Apply(ev repo.ClientEvent) {
	var snap domain.SessionSnapshot

	switch ev.Kind {
	case repo.EventQR:
		snap = uc.session.OnQR(ev.Payload)
		uc.hub.Publish(events.TopicQR, ev.Payload)
	case repo.EventAuthenticated:
		snap = uc.session.OnAuthenticated()
		uc.hub.Publish(events.TopicQR, "") // QR consumed
	case repo.EventAuthFailure:
		snap = uc.session.OnAuthFailure(ev.Payload)
		uc.log.Warn().Str("reason", ev.Payload).Msg("authentication failed")
	case repo.EventReady:
		snap = uc.session.OnReady()
		uc.log.Info().Msg("client ready")
	case repo.EventStateChange:
		snap = uc.session.OnClientState(ev.Payload)
		if ev.Payload == domain.ClientStateConflict || ev.Payload == domain.ClientStateUnlaunched {
			uc.log.Warn().Str("state", ev.Payload).Msg("another session took over")
		}
	case repo.EventDisconnected:
		snap = uc.session.OnDisconnected(ev.Payload)
		uc.log.Warn().Str("reason", ev.Payload).Msg("client disconnected")
	case repo.EventInitializing:
		snap = uc.session.OnInitializing(ev.Payload)
	default:
		return
	}

	uc.hub.Publish(events.TopicStatus, snap)
}

// Snapshot exposes the current session view.
func (uc *SessionUsecase) Snapshot() domain.SessionSnapshot {
	return uc.session.Snapshot()
}
