package repo

import (
	"context"

	"github.com/wabridge/wabridge/internal/biz/domain"
)

// ArchivedMedia is one media entry of a chat as recorded in the archive.
type ArchivedMedia struct {
	MessageID    string           `json:"messageId"`
	ChatID       string           `json:"chatId"`
	MimeType     string           `json:"mimetype"`
	Filename     string           `json:"filename,omitempty"`
	SizeBytes    int              `json:"size"`
	TimestampSec int64            `json:"timestamp"`
	Direction    domain.Direction `json:"direction"`
}

// ArchiveStats are per-process counters surfaced by /health.
type ArchiveStats struct {
	Messages      int64 `json:"messages"`
	MediaMessages int64 `json:"mediaMessages"`
}

// ArchiveRepo records every normalized message that passes through the
// bridge. Best-effort: archive failures never fail the traffic path.
type ArchiveRepo interface {
	// RecordMessage stores a message, ignoring duplicates by message id.
	RecordMessage(ctx context.Context, msg *domain.Message) error

	// GetMessage returns a recorded message, or nil when unknown.
	GetMessage(ctx context.Context, messageID string) (*domain.Message, error)

	// ListChatMedia returns a chat's media entries, newest first.
	ListChatMedia(ctx context.Context, chatID string, limit int) ([]ArchivedMedia, error)

	Stats(ctx context.Context) (ArchiveStats, error)

	Close() error
}
