package monitor

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gotd/td/telegram/uploader"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"github.com/quailyquaily/telegate/dispatch"
	"github.com/quailyquaily/telegate/media"
	"github.com/quailyquaily/telegate/target"
)

const voiceForbiddenError = "VOICE_MESSAGES_FORBIDDEN"

// peerCache remembers user access hashes observed in update entities so
// numeric targets can be addressed without an extra resolve call.
type peerCache struct {
	mu     sync.Mutex
	hashes map[int64]int64
}

func newPeerCache() *peerCache {
	return &peerCache{hashes: make(map[int64]int64)}
}

func (c *peerCache) remember(userID, accessHash int64) {
	c.mu.Lock()
	c.hashes[userID] = accessHash
	c.mu.Unlock()
}

func (c *peerCache) get(userID int64) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	hash, ok := c.hashes[userID]
	return hash, ok
}

// Transport implements dispatch.Transport over a live MTProto client.
type Transport struct {
	api      *tg.Client
	peers    *peerCache
	loader   *media.WebLoader
	maxBytes int64
	logger   *slog.Logger
}

func NewTransport(api *tg.Client, peers *peerCache, maxBytes int64, logger *slog.Logger) *Transport {
	if peers == nil {
		peers = newPeerCache()
	}
	return &Transport{
		api:      api,
		peers:    peers,
		loader:   media.NewWebLoader(),
		maxBytes: maxBytes,
		logger:   logger,
	}
}

func (t *Transport) SendText(ctx context.Context, to, text string, replyTo int64) (dispatch.SendResult, error) {
	peer, err := t.resolvePeer(ctx, to)
	if err != nil {
		return dispatch.SendResult{}, err
	}
	req := &tg.MessagesSendMessageRequest{
		Peer:     peer,
		Message:  text,
		RandomID: randomID(),
	}
	if replyTo > 0 {
		req.SetReplyTo(&tg.InputReplyToMessage{ReplyToMsgID: int(replyTo)})
	}
	updates, err := t.api.MessagesSendMessage(ctx, req)
	if err != nil {
		return dispatch.SendResult{}, fmt.Errorf("send text to %s: %w", to, err)
	}
	return dispatch.SendResult{MessageID: messageIDFromUpdates(updates)}, nil
}

func (t *Transport) SendMedia(ctx context.Context, to, mediaURL, caption string, replyTo int64, audioAsVoice bool) (dispatch.SendResult, error) {
	peer, err := t.resolvePeer(ctx, to)
	if err != nil {
		return dispatch.SendResult{}, err
	}

	web, err := t.loader.Load(ctx, mediaURL, t.maxBytes)
	if err != nil {
		return dispatch.SendResult{}, err
	}
	file, err := uploader.NewUploader(t.api).FromBytes(ctx, web.FileName, web.Data)
	if err != nil {
		return dispatch.SendResult{}, fmt.Errorf("upload media from %s: %w", mediaURL, err)
	}

	asVoice := audioAsVoice && media.VoiceCompatible(web.ContentType)
	updates, err := t.sendUploaded(ctx, peer, file, web, caption, replyTo, asVoice)
	if asVoice && tgerr.Is(err, voiceForbiddenError) {
		t.logger.Info("voice_fallback", "target", to, "media_url", mediaURL)
		updates, err = t.sendUploaded(ctx, peer, file, web, caption, replyTo, false)
	}
	if err != nil {
		return dispatch.SendResult{}, fmt.Errorf("send media to %s: %w", to, err)
	}
	return dispatch.SendResult{MessageID: messageIDFromUpdates(updates)}, nil
}

func (t *Transport) sendUploaded(ctx context.Context, peer tg.InputPeerClass, file tg.InputFileClass, web media.WebMedia, caption string, replyTo int64, asVoice bool) (tg.UpdatesClass, error) {
	var inputMedia tg.InputMediaClass
	switch {
	case !asVoice && strings.HasPrefix(web.ContentType, "image/"):
		inputMedia = &tg.InputMediaUploadedPhoto{File: file}
	default:
		doc := &tg.InputMediaUploadedDocument{
			File:     file,
			MimeType: web.ContentType,
			Attributes: []tg.DocumentAttributeClass{
				&tg.DocumentAttributeFilename{FileName: web.FileName},
			},
		}
		if asVoice {
			doc.Attributes = append(doc.Attributes, &tg.DocumentAttributeAudio{Voice: true})
		}
		inputMedia = doc
	}

	req := &tg.MessagesSendMediaRequest{
		Peer:     peer,
		Media:    inputMedia,
		Message:  caption,
		RandomID: randomID(),
	}
	if replyTo > 0 {
		req.SetReplyTo(&tg.InputReplyToMessage{ReplyToMsgID: int(replyTo)})
	}
	return t.api.MessagesSendMedia(ctx, req)
}

func (t *Transport) SendTyping(ctx context.Context, to string) error {
	peer, err := t.resolvePeer(ctx, to)
	if err != nil {
		return err
	}
	_, err = t.api.MessagesSetTyping(ctx, &tg.MessagesSetTypingRequest{
		Peer:   peer,
		Action: &tg.SendMessageTypingAction{},
	})
	return err
}

// SetReaction sets the emoji reaction on a message; an empty emoji
// clears this account's reaction.
func (t *Transport) SetReaction(ctx context.Context, to string, messageID int64, emoji string) error {
	peer, err := t.resolvePeer(ctx, to)
	if err != nil {
		return err
	}
	req := &tg.MessagesSendReactionRequest{
		Peer:  peer,
		MsgID: int(messageID),
	}
	if emoji != "" {
		req.SetReaction([]tg.ReactionClass{&tg.ReactionEmoji{Emoticon: emoji}})
	} else {
		req.SetReaction([]tg.ReactionClass{})
	}
	_, err = t.api.MessagesSendReaction(ctx, req)
	return err
}

func (t *Transport) resolvePeer(ctx context.Context, to string) (tg.InputPeerClass, error) {
	normalized, err := target.Normalize(to)
	if err != nil {
		return nil, err
	}
	peer := target.ResolvePeer(normalized)
	if peer.IsID() {
		hash, _ := t.peers.get(peer.ID)
		return &tg.InputPeerUser{UserID: peer.ID, AccessHash: hash}, nil
	}

	resolved, err := t.api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: peer.Username})
	if err != nil {
		return nil, fmt.Errorf("resolve username %s: %w", peer.Username, err)
	}
	for _, u := range resolved.Users {
		if user, ok := u.(*tg.User); ok {
			t.peers.remember(user.ID, user.AccessHash)
			return &tg.InputPeerUser{UserID: user.ID, AccessHash: user.AccessHash}, nil
		}
	}
	return nil, fmt.Errorf("username %s did not resolve to a user", peer.Username)
}

func messageIDFromUpdates(u tg.UpdatesClass) int64 {
	switch v := u.(type) {
	case *tg.UpdateShortSentMessage:
		return int64(v.ID)
	case *tg.Updates:
		return messageIDFromUpdateList(v.Updates)
	case *tg.UpdatesCombined:
		return messageIDFromUpdateList(v.Updates)
	}
	return 0
}

func messageIDFromUpdateList(updates []tg.UpdateClass) int64 {
	for _, upd := range updates {
		switch x := upd.(type) {
		case *tg.UpdateMessageID:
			return int64(x.ID)
		case *tg.UpdateNewMessage:
			if m, ok := x.Message.(*tg.Message); ok {
				return int64(m.ID)
			}
		}
	}
	return 0
}

func randomID() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(buf[:]))
}
