package monitor

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"

	"github.com/quailyquaily/telegate/media"
)

// buildEvent maps one raw update onto an InboundEvent. The second return
// is false for updates the pipeline has no use for (empty messages,
// non-user peers without a resolvable sender).
func buildEvent(e tg.Entities, u *tg.UpdateNewMessage, api *tg.Client, peers *peerCache, selfID int64) (InboundEvent, bool) {
	if _, isService := u.Message.(*tg.MessageService); isService {
		return InboundEvent{Service: true}, true
	}
	msg, ok := u.Message.(*tg.Message)
	if !ok || msg == nil {
		return InboundEvent{}, false
	}

	ev := InboundEvent{
		MessageID: int64(msg.ID),
		Text:      msg.Message,
		Date:      time.Unix(int64(msg.Date), 0).UTC(),
		Outgoing:  msg.Out,
	}

	switch peer := msg.PeerID.(type) {
	case *tg.PeerUser:
		ev.ChatKind = ChatKindDirect
		ev.SenderID = peer.UserID
	case *tg.PeerChat, *tg.PeerChannel:
		ev.ChatKind = "group"
	default:
		return InboundEvent{}, false
	}

	if msg.Out {
		ev.SenderID = selfID
	}
	if user, ok := e.Users[ev.SenderID]; ok {
		ev.SenderUsername = user.Username
		ev.SenderName = displayName(user)
		peers.remember(user.ID, user.AccessHash)
	}

	if msg.Media != nil {
		ev.Media = inboundMediaFrom(api, msg.Media)
	}
	return ev, true
}

func displayName(user *tg.User) string {
	name := user.FirstName
	if user.LastName != "" {
		if name != "" {
			name += " "
		}
		name += user.LastName
	}
	return name
}

// inboundMediaFrom describes an attachment without fetching it; the
// download closure streams the full content on demand so the size guard
// can reject first.
func inboundMediaFrom(api *tg.Client, mediaClass tg.MessageMediaClass) *media.Inbound {
	switch m := mediaClass.(type) {
	case *tg.MessageMediaDocument:
		doc, ok := m.Document.AsNotEmpty()
		if !ok {
			return nil
		}
		in := &media.Inbound{
			Size:     doc.Size,
			MIMEType: doc.MimeType,
			FileName: documentFileName(doc),
			Download: func(ctx context.Context) ([]byte, error) {
				return downloadLocation(ctx, api, doc.AsInputDocumentFileLocation())
			},
		}
		return in
	case *tg.MessageMediaPhoto:
		photo, ok := m.Photo.AsNotEmpty()
		if !ok {
			return nil
		}
		size := largestPhotoSize(photo)
		if size == nil {
			return nil
		}
		loc := &tg.InputPhotoFileLocation{
			ID:            photo.ID,
			AccessHash:    photo.AccessHash,
			FileReference: photo.FileReference,
			ThumbSize:     size.Type,
		}
		return &media.Inbound{
			Size:     int64(size.Size),
			MIMEType: "image/jpeg",
			FileName: "photo.jpg",
			Download: func(ctx context.Context) ([]byte, error) {
				return downloadLocation(ctx, api, loc)
			},
		}
	}
	return nil
}

func documentFileName(doc *tg.Document) string {
	for _, attr := range doc.Attributes {
		if named, ok := attr.(*tg.DocumentAttributeFilename); ok {
			return named.FileName
		}
	}
	return ""
}

func largestPhotoSize(photo *tg.Photo) *tg.PhotoSize {
	var best *tg.PhotoSize
	for _, s := range photo.Sizes {
		size, ok := s.(*tg.PhotoSize)
		if !ok {
			continue
		}
		if best == nil || size.Size > best.Size {
			best = size
		}
	}
	return best
}

func downloadLocation(ctx context.Context, api *tg.Client, loc tg.InputFileLocationClass) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := downloader.NewDownloader().Download(api, loc).Stream(ctx, &buf); err != nil {
		return nil, fmt.Errorf("download media: %w", err)
	}
	return buf.Bytes(), nil
}
