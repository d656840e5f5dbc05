// Package media enforces attachment admission limits and resolves
// content types for the telegram-user channel. Inbound attachments are
// size-checked before download where the size is declared, then persisted
// through a content-addressed store.
package media

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// ErrTooLarge marks an attachment over the configured byte cap. Handlers
// log it and continue without the attachment.
var ErrTooLarge = errors.New("media: attachment exceeds size limit")

const fallbackContentType = "application/octet-stream"

// Descriptor is a stored attachment: canonical path plus confirmed
// content type.
type Descriptor struct {
	Path        string
	ContentType string
}

// Inbound describes an attachment on an incoming message before any
// bytes are fetched. Size is the transport-declared byte count, or <= 0
// when unknown. Download fetches the full content on demand.
type Inbound struct {
	Size     int64
	FileName string
	MIMEType string
	Download func(ctx context.Context) ([]byte, error)
}

// Store persists admitted attachment buffers.
type Store interface {
	SaveBuffer(ctx context.Context, data []byte, contentType, channel string, maxBytes int64, fileName string) (Descriptor, error)
}

// ResolveInbound admits, downloads, types and persists one inbound
// attachment. Declared-oversize attachments are rejected without
// downloading.
func ResolveInbound(ctx context.Context, in Inbound, maxBytes int64, store Store, channel string) (*Descriptor, error) {
	if in.Download == nil {
		return nil, fmt.Errorf("media: attachment has no download source")
	}
	if maxBytes > 0 && in.Size > maxBytes {
		return nil, fmt.Errorf("%w: declared %d bytes, limit %d", ErrTooLarge, in.Size, maxBytes)
	}

	data, err := in.Download(ctx)
	if err != nil {
		return nil, fmt.Errorf("media: download attachment: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: downloaded %d bytes, limit %d", ErrTooLarge, len(data), maxBytes)
	}

	contentType := strings.TrimSpace(in.MIMEType)
	if contentType == "" {
		contentType = DetectContentType(data, in.FileName)
	}

	desc, err := store.SaveBuffer(ctx, data, contentType, channel, maxBytes, in.FileName)
	if err != nil {
		return nil, fmt.Errorf("media: persist attachment: %w", err)
	}
	return &desc, nil
}

// DetectContentType sniffs the buffer and falls back to the file
// extension when sniffing is inconclusive.
func DetectContentType(data []byte, fileName string) string {
	sniffed := fallbackContentType
	if len(data) > 0 {
		sniffed = http.DetectContentType(data)
	}
	if isGenericType(sniffed) {
		if ext := filepath.Ext(fileName); ext != "" {
			if byExt := mime.TypeByExtension(ext); byExt != "" {
				return byExt
			}
		}
	}
	return sniffed
}

func isGenericType(contentType string) bool {
	base := strings.TrimSpace(strings.Split(contentType, ";")[0])
	return base == fallbackContentType || base == "text/plain"
}

// VoiceCompatible reports whether an audio content type can be delivered
// as a Telegram voice note.
func VoiceCompatible(contentType string) bool {
	base := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	switch base {
	case "audio/ogg", "audio/opus", "audio/x-opus+ogg":
		return true
	}
	return false
}
