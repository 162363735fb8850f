package repo

import "context"

// RawMessage is a message record as the external automation gateway reports
// it. Field semantics follow the underlying client: From is the chat the
// record arrived in (the group id for group traffic), Author is the actual
// sender inside a group, FromMe flags outbound records.
type RawMessage struct {
	ID           string `json:"id"`
	From         string `json:"from"`
	To           string `json:"to"`
	Author       string `json:"author,omitempty"`
	FromMe       bool   `json:"fromMe"`
	IsGroup      bool   `json:"isGroup"`
	Type         string `json:"type"` // chat, image, audio, ptt, video, document, ...
	Body         string `json:"body,omitempty"`
	TimestampSec int64  `json:"timestamp"`
	HasMedia     bool   `json:"hasMedia"`
	MimeType     string `json:"mimetype,omitempty"`
	Filename     string `json:"filename,omitempty"`
	SenderName   string `json:"senderName,omitempty"`
}

// MediaPayload is a downloaded media blob, base64-encoded.
type MediaPayload struct {
	MimeType string `json:"mimetype"`
	Data     string `json:"data"`
	Filename string `json:"filename,omitempty"`
}

// ChatInfo is the gateway's view of a conversation.
type ChatInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	IsGroup      bool   `json:"isGroup"`
	UnreadCount  int    `json:"unreadCount"`
	LastMessage  string `json:"lastMessage,omitempty"`
	TimestampSec int64  `json:"timestamp,omitempty"`
}

// ContactInfo is the gateway's view of a contact.
type ContactInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Number     string `json:"number"`
	IsGroup    bool   `json:"isGroup"`
	IsBusiness bool   `json:"isBusiness"`
}

// SendMediaOptions controls a single media delivery attempt.
type SendMediaOptions struct {
	MimeType    string `json:"mimetype"`
	Filename    string `json:"filename,omitempty"`
	Data        string `json:"data"` // base64
	Caption     string `json:"caption,omitempty"`
	AsVoiceNote bool   `json:"asVoiceNote,omitempty"`
	AsDocument  bool   `json:"asDocument,omitempty"`
}

// EventKind identifies a lifecycle or traffic event from the gateway.
type EventKind string

const (
	EventQR            EventKind = "qr"
	EventAuthenticated EventKind = "authenticated"
	EventAuthFailure   EventKind = "auth_failure"
	EventReady         EventKind = "ready"
	EventStateChange   EventKind = "state_change"
	EventDisconnected  EventKind = "disconnected"
	EventInitializing  EventKind = "initializing"
	EventMessage       EventKind = "message"
	EventLoading       EventKind = "loading"
)

// ClientEvent is one event from the external client's stream.
type ClientEvent struct {
	Kind    EventKind   `json:"event"`
	Payload string      `json:"payload,omitempty"` // QR payload, client state, or reason
	Percent int         `json:"percent,omitempty"` // loading progress
	Message *RawMessage `json:"message,omitempty"`
}

// ClientRepo is the narrow interface to the external browser-automation
// messaging client. The underlying protocol, automation, and auth session
// persistence all live behind it.
//
// FetchMessages returns the most recent limit messages of a chat; the order
// of the returned slice is NOT guaranteed and there is no fetch-before-cursor
// primitive. The pager compensates.
type ClientRepo interface {
	// Start connects the event stream. A failed start is retryable, not fatal.
	Start(ctx context.Context) error

	// Stop tears the event stream down.
	Stop()

	// Events exposes the lifecycle/traffic event stream.
	Events() <-chan ClientEvent

	FetchMessages(ctx context.Context, chatID string, limit int) ([]RawMessage, error)

	ListChats(ctx context.Context) ([]ChatInfo, error)

	ListContacts(ctx context.Context) ([]ContactInfo, error)

	SendText(ctx context.Context, chatID, body string) error

	SendMedia(ctx context.Context, chatID string, opts SendMediaOptions) error

	// DownloadMedia fetches the media blob of a message by message id.
	DownloadMedia(ctx context.Context, messageID string) (*MediaPayload, error)

	ProfilePictureURL(ctx context.Context, chatID string) (string, error)

	// ProfilePictureImage returns raw image bytes and their content type.
	ProfilePictureImage(ctx context.Context, chatID string) ([]byte, string, error)

	MarkChatSeen(ctx context.Context, chatID string) error
}
