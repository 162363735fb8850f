package domain

// Direction indicates whether a message was received or sent by this session.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Message is the canonical message shape produced by the normalizer.
// Immutable once built; pager results reference, never copy, history entries.
type Message struct {
	ID           string    `json:"id"`
	ChatID       string    `json:"chatId"`
	TimestampSec int64     `json:"timestamp"`
	Direction    Direction `json:"direction"`
	SenderID     string    `json:"senderId,omitempty"`
	SenderName   string    `json:"senderName,omitempty"`
	Body         string    `json:"body,omitempty"`
	Media        *MediaRef `json:"media,omitempty"`
}

// HasMedia reports whether the message carries a media reference.
func (m *Message) HasMedia() bool {
	return m.Media != nil
}

// IsOlderThan checks if the message predates the other by timestamp.
func (m *Message) IsOlderThan(other *Message) bool {
	return m.TimestampSec < other.TimestampSec
}

// PinnedMessage is the summary kept in a chat's pinned set.
type PinnedMessage struct {
	MessageID    string    `json:"messageId"`
	ChatID       string    `json:"chatId"`
	Body         string    `json:"body,omitempty"`
	TimestampSec int64     `json:"timestamp"`
	Direction    Direction `json:"direction"`
	PinnedAtSec  int64     `json:"pinnedAt"`
}

// Summarize builds the pinned-set summary of a message.
func (m *Message) Summarize(pinnedAtSec int64) PinnedMessage {
	return PinnedMessage{
		MessageID:    m.ID,
		ChatID:       m.ChatID,
		Body:         m.Body,
		TimestampSec: m.TimestampSec,
		Direction:    m.Direction,
		PinnedAtSec:  pinnedAtSec,
	}
}
