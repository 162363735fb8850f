package server

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wabridge/wabridge/internal/biz/repo"
	"github.com/wabridge/wabridge/internal/biz/usecase"
	"github.com/wabridge/wabridge/internal/events"
)

const (
	seenMsgTTL     = 10 * time.Minute
	seenMsgCleanup = time.Minute
)

// LoadingStatus is the fan-out payload for gateway loading progress.
type LoadingStatus struct {
	Percent int    `json:"percent"`
	Message string `json:"message,omitempty"`
}

// Bridge consumes the gateway event stream and routes it: lifecycle events
// into the session machine, traffic into normalization, archive and fan-out.
type Bridge struct {
	client     repo.ClientRepo
	sessions   *usecase.SessionUsecase
	normalizer *usecase.Normalizer
	archive    repo.ArchiveRepo
	hub        *events.Hub
	log        zerolog.Logger

	// Message deduplication cache; the gateway re-emits messages after
	// reconnects.
	seenMsgsMu sync.Mutex
	seenMsgs   map[string]time.Time
}

// NewBridge creates the bridge.
func NewBridge(
	client repo.ClientRepo,
	sessions *usecase.SessionUsecase,
	normalizer *usecase.Normalizer,
	archive repo.ArchiveRepo,
	hub *events.Hub,
	log zerolog.Logger,
) *Bridge {
	return &Bridge{
		client:     client,
		sessions:   sessions,
		normalizer: normalizer,
		archive:    archive,
		hub:        hub,
		log:        log.With().Str("component", "bridge").Logger(),
		seenMsgs:   make(map[string]time.Time),
	}
}

// Run starts the gateway client and processes its events until the context
// ends or the stream closes.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.client.Start(ctx); err != nil {
		return err
	}
	defer b.client.Stop()

	cleanup := time.NewTicker(seenMsgCleanup)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-cleanup.C:
			b.cleanupSeen()
		case ev, ok := <-b.client.Events():
			if !ok {
				b.log.Info().Msg("event stream closed")
				return nil
			}
			b.dispatch(ctx, ev)
		}
	}
}

func (b *Bridge) dispatch(ctx context.Context, ev repo.ClientEvent) {
	switch ev.Kind {
	case repo.EventMessage:
		b.handleMessage(ctx, ev.Message)
	case repo.EventLoading:
		b.hub.Publish(events.TopicLoading, LoadingStatus{Percent: ev.Percent, Message: ev.Payload})
	default:
		b.sessions.Apply(ev)
	}
}

func (b *Bridge) handleMessage(ctx context.Context, raw *repo.RawMessage) {
	if raw == nil || raw.ID == "" {
		return
	}
	if b.isMessageSeen(raw.ID) {
		b.log.Debug().Str("msg", raw.ID).Msg("duplicate message ignored")
		return
	}
	b.markMessageSeen(raw.ID)

	msg := b.normalizer.Normalize(ctx, raw)
	if err := b.archive.RecordMessage(ctx, &msg); err != nil {
		b.log.Warn().Err(err).Str("msg", msg.ID).Msg("archive record failed")
	}
	b.hub.Publish(events.TopicMessage, msg)
}

func (b *Bridge) isMessageSeen(msgID string) bool {
	b.seenMsgsMu.Lock()
	defer b.seenMsgsMu.Unlock()
	_, exists := b.seenMsgs[msgID]
	return exists
}

func (b *Bridge) markMessageSeen(msgID string) {
	b.seenMsgsMu.Lock()
	defer b.seenMsgsMu.Unlock()
	b.seenMsgs[msgID] = time.Now()
}

func (b *Bridge) cleanupSeen() {
	cutoff := time.Now().Add(-seenMsgTTL)
	b.seenMsgsMu.Lock()
	defer b.seenMsgsMu.Unlock()
	for id, ts := range b.seenMsgs {
		if ts.Before(cutoff) {
			delete(b.seenMsgs, id)
		}
	}
}
