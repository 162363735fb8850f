package usecase

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/wabridge/wabridge/internal/biz/domain"
	"github.com/wabridge/wabridge/internal/biz/repo"
)

// Normalizer converts raw gateway records into the canonical Message shape
// and resolves inlined media. Media download failures are recovered locally:
// the message is kept, just without its media field.
type Normalizer struct {
	client repo.ClientRepo
	log    zerolog.Logger

	// Media payloads keyed by message id. History pages re-fetch the same
	// messages over and over; the cache keeps downloads to one per message.
	cacheMu sync.Mutex
	cache   map[string]*domain.MediaRef
}

// NewNormalizer creates a normalizer backed by the given client.
func NewNormalizer(client repo.ClientRepo, log zerolog.Logger) *Normalizer {
	return &Normalizer{
		client: client,
		log:    log.With().Str("component", "normalizer").Logger(),
		cache:  make(map[string]*domain.MediaRef),
	}
}

// Normalize converts one inbound/outbound record. It never fails: media
// resolution errors degrade the message instead of dropping it. Voice and
// audio payloads are inlined eagerly; other media stays metadata-only here
// (the history path inlines images, see NormalizeHistory).
func (n *Normalizer) Normalize(ctx context.Context, raw *repo.RawMessage) domain.Message {
	msg := n.shape(raw)

	if raw.HasMedia && isVoiceType(raw.Type) {
		if ref := n.resolveMedia(ctx, raw); ref != nil {
			msg.Media = ref
		}
	} else if raw.HasMedia {
		msg.Media = domain.MediaMetadata(raw.MimeType, raw.Filename)
	}

	return msg
}

// NormalizeHistory converts a fetched batch. Voice and image payloads are
// inlined; an image whose download fails falls back to metadata-only.
func (n *Normalizer) NormalizeHistory(ctx context.Context, raws []repo.RawMessage) []domain.Message {
	msgs := make([]domain.Message, 0, len(raws))
	for i := range raws {
		raw := &raws[i]
		msg := n.shape(raw)
		if raw.HasMedia {
			if isVoiceType(raw.Type) || isImageType(raw.Type) {
				if ref := n.resolveMedia(ctx, raw); ref != nil {
					msg.Media = ref
				} else {
					msg.Media = domain.MediaMetadata(raw.MimeType, raw.Filename)
				}
			} else {
				msg.Media = domain.MediaMetadata(raw.MimeType, raw.Filename)
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

// shape maps record fields onto the canonical form. For group traffic the
// chat id is the group's id, taken from the record's group flag, never
// assumed from the sender field.
func (n *Normalizer) shape(raw *repo.RawMessage) domain.Message {
	direction := domain.DirectionInbound
	chatID := raw.From
	senderID := raw.From
	if raw.FromMe {
		direction = domain.DirectionOutbound
		chatID = raw.To
		senderID = raw.From
	}
	if raw.IsGroup && !raw.FromMe {
		// From is the group id; the actual sender is the author field.
		senderID = raw.Author
	}

	return domain.Message{
		ID:           raw.ID,
		ChatID:       chatID,
		TimestampSec: raw.TimestampSec,
		Direction:    direction,
		SenderID:     senderID,
		SenderName:   raw.SenderName,
		Body:         raw.Body,
	}
}

// resolveMedia downloads and inlines a payload, consulting the cache first.
// Returns nil on failure; the caller decides between dropping the field and
// keeping metadata.
func (n *Normalizer) resolveMedia(ctx context.Context, raw *repo.RawMessage) *domain.MediaRef {
	n.cacheMu.Lock()
	if ref, ok := n.cache[raw.ID]; ok {
		n.cacheMu.Unlock()
		return ref
	}
	n.cacheMu.Unlock()

	payload, err := n.client.DownloadMedia(ctx, raw.ID)
	if err != nil {
		n.log.Warn().Err(err).Str("msg", raw.ID).Str("type", raw.Type).Msg("media download failed, keeping message without payload")
		return nil
	}

	mime := payload.MimeType
	if mime == "" {
		mime = raw.MimeType
	}
	filename := payload.Filename
	if filename == "" {
		filename = raw.Filename
	}
	ref, err := domain.NewMediaRef(mime, payload.Data, filename)
	if err != nil {
		n.log.Warn().Err(err).Str("msg", raw.ID).Msg("downloaded media payload rejected")
		return nil
	}

	n.cacheMu.Lock()
	n.cache[raw.ID] = ref
	n.cacheMu.Unlock()
	return ref
}

func isVoiceType(msgType string) bool {
	return msgType == "audio" || msgType == "ptt"
}

func isImageType(msgType string) bool {
	return msgType == "image"
}
