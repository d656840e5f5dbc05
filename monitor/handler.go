package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/quailyquaily/telegate/account"
	"github.com/quailyquaily/telegate/activity"
	"github.com/quailyquaily/telegate/allowlist"
	"github.com/quailyquaily/telegate/dispatch"
	"github.com/quailyquaily/telegate/host"
	"github.com/quailyquaily/telegate/media"
	"github.com/quailyquaily/telegate/pairing"
)

// ChatKindDirect is the only chat kind admitted to the agent pipeline.
const ChatKindDirect = "direct"

// Ack reaction scopes. Direct messages get an acknowledgement reaction
// only under "all" or "direct"; the default group-mentions scope leaves
// DMs unreacted.
const (
	AckScopeAll           = "all"
	AckScopeDirect        = "direct"
	AckScopeGroupMentions = "group-mentions"
)

// InboundEvent is one raw inbound message as seen by the client loop,
// before any admission decision.
type InboundEvent struct {
	SenderID       int64
	SenderUsername string
	SenderName     string
	ChatKind       string
	MessageID      int64
	Text           string
	Date           time.Time
	Media          *media.Inbound
	Outgoing       bool
	Service        bool
}

// HandlerDeps bundles the collaborators the admission pipeline needs.
// All of them are required except Activity and MediaStore.
type HandlerDeps struct {
	Account    account.Account
	Pairing    pairing.Store
	Routes     host.RouteResolver
	Sessions   host.SessionStore
	Responder  host.Responder
	MediaStore media.Store
	Transport  dispatch.Transport
	Activity   activity.Recorder
	Logger     *slog.Logger

	AckEmoji            string
	AckScope            string
	RemoveAckAfterReply bool
}

// Handler runs the admission pipeline for one account: policy gate,
// allowlist plus pairing, media guard, routing, and reply dispatch.
type Handler struct {
	deps       HandlerDeps
	dispatcher *dispatch.Dispatcher
}

func NewHandler(deps HandlerDeps) *Handler {
	return &Handler{
		deps: deps,
		dispatcher: &dispatch.Dispatcher{
			Transport:  deps.Transport,
			Activity:   deps.Activity,
			Logger:     deps.Logger,
			Channel:    account.Channel,
			AccountID:  deps.Account.ID,
			ChunkLimit: deps.Account.TextChunkLimit,
		},
	}
}

// Handle processes one inbound event. It never panics out and never
// returns an error: a malformed or hostile message must not take down
// the monitor loop.
func (h *Handler) Handle(ctx context.Context, ev InboundEvent) {
	defer func() {
		if r := recover(); r != nil {
			h.deps.Logger.Error("inbound_handler_panic", "sender_id", ev.SenderID, "panic", r)
		}
	}()
	if err := h.handle(ctx, ev); err != nil && !errors.Is(err, context.Canceled) {
		h.deps.Logger.Error("inbound_handle_failed", "sender_id", ev.SenderID, "message_id", ev.MessageID, "error", err)
	}
}

func (h *Handler) handle(ctx context.Context, ev InboundEvent) error {
	if ev.Outgoing || ev.Service {
		return nil
	}
	if ev.ChatKind != ChatKindDirect {
		return nil
	}

	acct := h.deps.Account
	if acct.DMPolicy == account.PolicyDisabled {
		return nil
	}

	senderID := strconv.FormatInt(ev.SenderID, 10)

	if acct.DMPolicy != account.PolicyOpen {
		allowed, err := h.senderAllowed(ctx, senderID, ev.SenderUsername)
		if err != nil {
			return fmt.Errorf("evaluate allowlist: %w", err)
		}
		if !allowed {
			return h.handleDisallowed(ctx, senderID, ev)
		}
	}

	var desc *media.Descriptor
	if ev.Media != nil && h.deps.MediaStore != nil {
		d, err := media.ResolveInbound(ctx, *ev.Media, acct.MediaMaxBytes(), h.deps.MediaStore, account.Channel)
		if err != nil {
			h.deps.Logger.Warn("inbound_media_rejected", "sender_id", senderID, "error", err)
		} else {
			desc = d
		}
	}

	// Nothing to hand to the agent: no text and no admitted attachment
	// (stickers, rejected media). Dropped before routing or activity.
	if strings.TrimSpace(ev.Text) == "" && desc == nil {
		h.deps.Logger.Debug("inbound_empty_skipped", "sender_id", senderID, "message_id", ev.MessageID)
		return nil
	}

	ackApplied := h.applyAck(ctx, senderID, ev.MessageID)

	inboundKind := activity.KindText
	if desc != nil {
		inboundKind = activity.KindMedia
	}
	h.recordActivity(ctx, activity.Inbound, senderID, ev.MessageID, inboundKind)

	route, err := h.deps.Routes.ResolveRoute(ctx, account.Channel, acct.ID, senderID)
	if err != nil {
		return fmt.Errorf("resolve route: %w", err)
	}
	if err := h.deps.Sessions.RecordRoute(ctx, host.SessionRecord{
		SessionKey:    route.SessionKey,
		AgentID:       route.AgentID,
		Channel:       account.Channel,
		AccountID:     acct.ID,
		PeerID:        senderID,
		LastMessageID: ev.MessageID,
	}); err != nil {
		h.deps.Logger.Warn("session_record_failed", "session_key", route.SessionKey, "error", err)
	}

	msg := host.InboundMessage{
		Channel:        account.Channel,
		AccountID:      acct.ID,
		SessionKey:     route.SessionKey,
		AgentID:        route.AgentID,
		SenderID:       senderID,
		SenderUsername: ev.SenderUsername,
		SenderName:     ev.SenderName,
		MessageID:      ev.MessageID,
		Text:           ev.Text,
		Timestamp:      ev.Date,
	}
	if desc != nil {
		msg.MediaPath = desc.Path
		msg.MediaType = desc.ContentType
	}

	payloads, err := h.deps.Responder.Respond(ctx, msg)
	if err != nil {
		return fmt.Errorf("agent respond: %w", err)
	}

	return h.dispatcher.Dispatch(ctx, dispatch.Request{
		Target:           senderID,
		TriggerMessageID: ev.MessageID,
		Payloads:         payloads,
		AckApplied:       ackApplied,
		RemoveAck:        h.deps.RemoveAckAfterReply,
	})
}

// senderAllowed evaluates the configured allow list concatenated with
// store-approved entries. Approvals augment configuration, never replace
// it; the store is read through on every message.
func (h *Handler) senderAllowed(ctx context.Context, senderID, senderUsername string) (bool, error) {
	entries := append([]string(nil), h.deps.Account.AllowFrom...)
	approved, err := h.deps.Pairing.ApprovedEntries(ctx, account.Channel)
	if err != nil {
		return false, err
	}
	entries = append(entries, approved...)
	return allowlist.Parse(entries).Allows(senderID, senderUsername), nil
}

// handleDisallowed applies the pairing flow under the pairing policy and
// drops silently under every other policy.
func (h *Handler) handleDisallowed(ctx context.Context, senderID string, ev InboundEvent) error {
	if h.deps.Account.DMPolicy != account.PolicyPairing {
		h.deps.Logger.Debug("inbound_dropped", "sender_id", senderID, "dm_policy", h.deps.Account.DMPolicy)
		return nil
	}

	req, created, err := h.deps.Pairing.UpsertRequest(ctx, pairing.Meta{
		Channel:     account.Channel,
		SenderID:    senderID,
		Username:    ev.SenderUsername,
		DisplayName: ev.SenderName,
	})
	if err != nil {
		return fmt.Errorf("upsert pairing request: %w", err)
	}
	h.deps.Logger.Info("pairing_request", "sender_id", senderID, "created", created)

	reply := pairing.BuildReply(senderID, req.Code)
	if _, err := h.deps.Transport.SendText(ctx, senderID, reply, 0); err != nil {
		return fmt.Errorf("send pairing reply: %w", err)
	}
	h.recordActivity(ctx, activity.Outbound, senderID, 0, activity.KindPairingReply)
	return nil
}

// applyAck sets the acknowledgement reaction on the triggering message
// without blocking the pipeline. The returned channel reports whether
// the reaction landed; nil when reactions are out of scope for direct
// messages.
func (h *Handler) applyAck(ctx context.Context, senderID string, messageID int64) <-chan bool {
	if h.deps.AckEmoji == "" || !h.ackCoversDirect() {
		return nil
	}
	applied := make(chan bool, 1)
	go func() {
		err := h.deps.Transport.SetReaction(context.WithoutCancel(ctx), senderID, messageID, h.deps.AckEmoji)
		if err != nil {
			h.deps.Logger.Warn("ack_reaction_failed", "sender_id", senderID, "message_id", messageID, "error", err)
		}
		applied <- err == nil
	}()
	return applied
}

func (h *Handler) ackCoversDirect() bool {
	switch h.deps.AckScope {
	case AckScopeAll, AckScopeDirect:
		return true
	}
	return false
}

func (h *Handler) recordActivity(ctx context.Context, direction, peerID string, messageID int64, kind string) {
	if h.deps.Activity == nil {
		return
	}
	err := h.deps.Activity.Record(ctx, activity.Event{
		Direction: direction,
		Channel:   account.Channel,
		AccountID: h.deps.Account.ID,
		PeerID:    peerID,
		MessageID: messageID,
		Kind:      kind,
	})
	if err != nil {
		h.deps.Logger.Warn("activity_record_failed", "direction", direction, "error", err)
	}
}
