package usecase

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wabridge/wabridge/internal/biz/domain"
	"github.com/wabridge/wabridge/internal/biz/repo"
)

const (
	// attemptTimeout boxes each delivery attempt in the fallback chain. A
	// timed-out attempt is abandoned, not cancelled at the transport level,
	// so duplicate delivery remains possible when it later succeeds
	// server-side. Known risk, documented, not eliminated.
	attemptTimeout = 30 * time.Second

	// minVoicePayloadLen rejects voice payloads too small to be real audio.
	minVoicePayloadLen = 100

	// chatAddressSuffix is appended to bare phone numbers.
	chatAddressSuffix = "@c.us"
)

// SendRequest carries one outbound send: text, voice note, or attachment.
type SendRequest struct {
	Number         string `json:"number"`
	Message        string `json:"message,omitempty"`
	AudioData      string `json:"audioData,omitempty"`
	IsVoiceMessage bool   `json:"isVoiceMessage,omitempty"`
	MimeType       string `json:"mimeType,omitempty"`
	AttachmentData string `json:"attachmentData,omitempty"`
	AttachmentType string `json:"attachmentType,omitempty"`
	AttachmentName string `json:"attachmentName,omitempty"`
	Caption        string `json:"caption,omitempty"`
}

// SendResult reports a delivery. Method names the tier that succeeded;
// Partial marks the failure-notice outcome: something was delivered, but not
// in the intended form.
type SendResult struct {
	Method  string `json:"method"`
	Partial bool   `json:"partial,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// SendPipeline validates outbound requests and drives the layered delivery
// fallback chain. The chain trades attempt latency for effective delivery:
// the underlying client's acceptance criteria for voice framing are
// undocumented and observed to vary.
type SendPipeline struct {
	client  repo.ClientRepo
	session *domain.Session
	log     zerolog.Logger
}

// NewSendPipeline creates the pipeline.
func NewSendPipeline(client repo.ClientRepo, session *domain.Session, log zerolog.Logger) *SendPipeline {
	return &SendPipeline{
		client:  client,
		session: session,
		log:     log.With().Str("component", "sender").Logger(),
	}
}

// Send validates preconditions and dispatches to the voice, attachment, or
// text path.
func (s *SendPipeline) Send(ctx context.Context, req *SendRequest) (*SendResult, error) {
	snap := s.session.Snapshot()
	if !snap.IsReady || !snap.IsAuthenticated {
		return nil, &domain.PreconditionError{Reason: fmt.Sprintf("session is not ready (state=%s)", snap.State)}
	}
	if req.Number == "" {
		return nil, &domain.PreconditionError{Reason: "number is required"}
	}
	if req.Message == "" && req.AudioData == "" && req.AttachmentData == "" {
		return nil, &domain.PreconditionError{Reason: "one of message, audioData or attachmentData is required"}
	}

	chatID := NormalizeChatAddress(req.Number)

	switch {
	case req.AudioData != "":
		return s.sendVoiceNote(ctx, chatID, req)
	case req.AttachmentData != "":
		return s.sendAttachment(ctx, chatID, req)
	default:
		return s.sendText(ctx, chatID, req.Message)
	}
}

func (s *SendPipeline) sendText(ctx context.Context, chatID, body string) (*SendResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	if err := s.client.SendText(attemptCtx, chatID, body); err != nil {
		return nil, &domain.DeliveryError{Attempted: []string{"text"}, LastErr: err}
	}
	return &SendResult{Method: "text"}, nil
}

func (s *SendPipeline) sendAttachment(ctx context.Context, chatID string, req *SendRequest) (*SendResult, error) {
	if err := validatePayload("attachmentData", req.AttachmentData, 1); err != nil {
		return nil, err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	opts := repo.SendMediaOptions{
		MimeType: req.AttachmentType,
		Filename: req.AttachmentName,
		Data:     req.AttachmentData,
		Caption:  req.Caption,
	}
	if err := s.client.SendMedia(attemptCtx, chatID, opts); err != nil {
		return nil, &domain.DeliveryError{Attempted: []string{"media"}, LastErr: err}
	}
	return &SendResult{Method: "media"}, nil
}

type deliveryAttempt struct {
	method string
	run    func(ctx context.Context) error
}

func (s *SendPipeline) sendVoiceNote(ctx context.Context, chatID string, req *SendRequest) (*SendResult, error) {
	if err := validatePayload("audioData", req.AudioData, minVoicePayloadLen); err != nil {
		return nil, err
	}

	mime, ext := NormalizeVoiceMime(req.MimeType)
	filename := "voice-note." + ext
	data := req.AudioData

	attempts := []deliveryAttempt{
		{"voice", func(c context.Context) error {
			return s.client.SendMedia(c, chatID, repo.SendMediaOptions{MimeType: mime, Filename: filename, Data: data, AsVoiceNote: true})
		}},
		{"audio", func(c context.Context) error {
			return s.client.SendMedia(c, chatID, repo.SendMediaOptions{MimeType: mime, Filename: filename, Data: data})
		}},
		{"document", func(c context.Context) error {
			return s.client.SendMedia(c, chatID, repo.SendMediaOptions{MimeType: mime, Filename: filename, Data: data, AsDocument: true})
		}},
		{"document-mpeg", func(c context.Context) error {
			return s.client.SendMedia(c, chatID, repo.SendMediaOptions{MimeType: "audio/mpeg", Filename: "voice-note.mp3", Data: data, AsDocument: true})
		}},
		{"text-description", func(c context.Context) error {
			return s.client.SendText(c, chatID, fmt.Sprintf("[voice message: %s, %d bytes] audio delivery is unavailable right now", mime, base64.StdEncoding.DecodedLen(len(data))))
		}},
	}

	var attempted []string
	var lastErr error
	for _, attempt := range attempts {
		attempted = append(attempted, attempt.method)
		err := s.runAttempt(ctx, attempt)
		if err == nil {
			if attempt.method != "voice" {
				s.log.Info().Str("chat", chatID).Str("method", attempt.method).Msg("voice note delivered via fallback tier")
			}
			return &SendResult{Method: attempt.method}, nil
		}
		lastErr = err
		s.log.Warn().Err(err).Str("chat", chatID).Str("method", attempt.method).Msg("delivery attempt failed, trying next tier")
	}

	// Chain exhausted: tell the recipient something arrived but could not be
	// delivered in its intended form. Partial success, distinct from total
	// failure.
	notice := "A voice message was sent to you but could not be delivered. Please ask the sender to try again."
	if err := s.runAttempt(ctx, deliveryAttempt{"failure-notice", func(c context.Context) error {
		return s.client.SendText(c, chatID, notice)
	}}); err == nil {
		return &SendResult{Method: "failure-notice", Partial: true, Detail: lastErr.Error()}, nil
	}

	return nil, &domain.DeliveryError{Attempted: attempted, LastErr: lastErr}
}

func (s *SendPipeline) runAttempt(ctx context.Context, attempt deliveryAttempt) error {
	attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()
	return attempt.run(attemptCtx)
}

// validatePayload applies the malformed-payload checks before any delivery
// attempt: presence, minimum encoded length, base64 alphabet, non-empty
// decode, size ceiling.
func validatePayload(field, encoded string, minLen int) error {
	if encoded == "" {
		return &domain.ValidationError{Field: field, Reason: "payload is empty"}
	}
	if len(encoded) < minLen {
		return &domain.ValidationError{Field: field, Reason: fmt.Sprintf("payload is %d bytes, below the %d byte minimum", len(encoded), minLen)}
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return &domain.ValidationError{Field: field, Reason: fmt.Sprintf("payload is not valid base64: %v", err)}
	}
	if len(raw) == 0 {
		return &domain.ValidationError{Field: field, Reason: "payload decoded to an empty buffer"}
	}
	if len(raw) > domain.MaxMediaBytes {
		return &domain.ValidationError{Field: field, Reason: fmt.Sprintf("payload is %d bytes, exceeds %d byte limit", len(raw), domain.MaxMediaBytes), Oversized: true}
	}
	return nil
}

// NormalizeVoiceMime maps an arbitrary MIME string onto the supported voice
// container whitelist by substring match, defaulting to webm, and derives
// the matching file extension.
func NormalizeVoiceMime(mimeType string) (mime, ext string) {
	m := strings.ToLower(mimeType)
	switch {
	case strings.Contains(m, "webm"):
		return "audio/webm", "webm"
	case strings.Contains(m, "mp4"):
		return "audio/mp4", "mp4"
	case strings.Contains(m, "wav"):
		return "audio/wav", "wav"
	case strings.Contains(m, "ogg"):
		return "audio/ogg", "ogg"
	case strings.Contains(m, "mpeg"):
		return "audio/mpeg", "mp3"
	default:
		return "audio/webm", "webm"
	}
}

// NormalizeChatAddress appends the chat domain suffix to bare numbers;
// already-suffixed addresses pass through unchanged.
func NormalizeChatAddress(number string) string {
	if strings.Contains(number, "@") {
		return number
	}
	return number + chatAddressSuffix
}
