package domain

import (
	"encoding/base64"
	"fmt"
)

// MaxMediaBytes is the decoded size ceiling for any media payload.
const MaxMediaBytes = 50 << 20 // 50MB

// MediaRef is a content-addressable media payload attached to a message.
// SizeBytes always matches the decoded length of Data when Data is set.
type MediaRef struct {
	MimeType  string `json:"mimetype"`
	Data      string `json:"data,omitempty"` // base64
	Filename  string `json:"filename,omitempty"`
	SizeBytes int    `json:"size"`
}

// NewMediaRef builds an inlined media reference from a base64 payload.
// Fails if the payload does not decode, decodes to nothing, or exceeds
// MaxMediaBytes.
func NewMediaRef(mimeType, encoded, filename string) (*MediaRef, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &ValidationError{Field: "media", Reason: fmt.Sprintf("payload is not valid base64: %v", err)}
	}
	if len(raw) == 0 {
		return nil, &ValidationError{Field: "media", Reason: "payload decoded to an empty buffer"}
	}
	if len(raw) > MaxMediaBytes {
		return nil, &ValidationError{Field: "media", Reason: fmt.Sprintf("payload is %d bytes, exceeds %d byte limit", len(raw), MaxMediaBytes), Oversized: true}
	}
	return &MediaRef{
		MimeType:  mimeType,
		Data:      encoded,
		Filename:  filename,
		SizeBytes: len(raw),
	}, nil
}

// MediaMetadata builds a metadata-only reference, used when a historical
// media payload could not be downloaded. Data stays empty.
func MediaMetadata(mimeType, filename string) *MediaRef {
	return &MediaRef{MimeType: mimeType, Filename: filename}
}

// Inlined reports whether the payload bytes are present.
func (m *MediaRef) Inlined() bool {
	return m.Data != ""
}
