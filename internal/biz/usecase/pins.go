package usecase

import (
	"sync"
	"time"

	"github.com/wabridge/wabridge/internal/biz/domain"
)

// PinBoard keeps the per-chat ordered sets of pinned message summaries.
// In-memory only, process lifetime; persisting across restarts is an
// explicit non-goal. The mutex keeps read-modify-write updates to one chat's
// list atomic under concurrent handlers.
type PinBoard struct {
	mu     sync.Mutex
	byChat map[string][]domain.PinnedMessage
	now    func() time.Time
}

// NewPinBoard creates an empty board.
func NewPinBoard() *PinBoard {
	return &PinBoard{
		byChat: make(map[string][]domain.PinnedMessage),
		now:    time.Now,
	}
}

// Pin adds a message summary to its chat's pinned set. Pinning an
// already-pinned message is a no-op. Returns the resulting set.
func (b *PinBoard) Pin(msg *domain.Message) []domain.PinnedMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	pins := b.byChat[msg.ChatID]
	for _, p := range pins {
		if p.MessageID == msg.ID {
			return copyPins(pins)
		}
	}
	pins = append(pins, msg.Summarize(b.now().Unix()))
	b.byChat[msg.ChatID] = pins
	return copyPins(pins)
}

// Unpin removes a message from its chat's pinned set, returning the set to
// its pre-pin state. Unknown ids are a no-op. Returns the resulting set.
func (b *PinBoard) Unpin(chatID, messageID string) []domain.PinnedMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	pins := b.byChat[chatID]
	for i, p := range pins {
		if p.MessageID == messageID {
			pins = append(pins[:i], pins[i+1:]...)
			break
		}
	}
	if len(pins) == 0 {
		delete(b.byChat, chatID)
		return []domain.PinnedMessage{}
	}
	b.byChat[chatID] = pins
	return copyPins(pins)
}

// List returns a chat's pinned set in pin order.
func (b *PinBoard) List(chatID string) []domain.PinnedMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return copyPins(b.byChat[chatID])
}

func copyPins(pins []domain.PinnedMessage) []domain.PinnedMessage {
	out := make([]domain.PinnedMessage, len(pins))
	copy(out, pins)
	return out
}
