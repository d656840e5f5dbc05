// Package dispatch sequences agent reply payloads into ordered outbound
// deliveries: typing indicator up front, chunked text or single media
// sends in payload order, reply-threading on the first send only, and
// acknowledgement-reaction cleanup at the end.
package dispatch

import (
	"context"
	"log/slog"
	"strings"

	"github.com/quailyquaily/telegate/activity"
	"github.com/quailyquaily/telegate/internal/textchunk"
)

// Payload is one agent-produced reply unit.
type Payload struct {
	Text         string   `json:"text,omitempty"`
	MediaURL     string   `json:"mediaUrl,omitempty"`
	MediaURLs    []string `json:"mediaUrls,omitempty"`
	AudioAsVoice bool     `json:"audioAsVoice,omitempty"`
}

// NormalizePayloads collapses the single-URL form into the list form,
// trims text, and drops payloads with no deliverable content.
func NormalizePayloads(in []Payload) []Payload {
	var out []Payload
	for _, p := range in {
		p.Text = strings.TrimSpace(p.Text)
		urls := make([]string, 0, len(p.MediaURLs)+1)
		if u := strings.TrimSpace(p.MediaURL); u != "" {
			urls = append(urls, u)
		}
		for _, u := range p.MediaURLs {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
		p.MediaURL = ""
		p.MediaURLs = urls
		if p.Text == "" && len(urls) == 0 {
			continue
		}
		out = append(out, p)
	}
	return out
}

// SendResult identifies a delivered message.
type SendResult struct {
	MessageID int64
}

// Transport performs the native sends. SetReaction with an empty emoji
// clears any reaction previously set by this account.
type Transport interface {
	SendText(ctx context.Context, target, text string, replyTo int64) (SendResult, error)
	SendMedia(ctx context.Context, target, mediaURL, caption string, replyTo int64, audioAsVoice bool) (SendResult, error)
	SendTyping(ctx context.Context, target string) error
	SetReaction(ctx context.Context, target string, messageID int64, emoji string) error
}

// Request is one dispatch: every payload produced for a single triggering
// inbound message.
type Request struct {
	Target           string
	TriggerMessageID int64
	Payloads         []Payload
	// AckApplied reports, when non-nil, whether the acknowledgement
	// reaction on the triggering message succeeded. Consulted only for
	// the cleanup step.
	AckApplied <-chan bool
	RemoveAck  bool
}

// Dispatcher delivers reply payloads over a Transport. Per-send failures
// are logged and never abort the remaining payloads.
type Dispatcher struct {
	Transport  Transport
	Activity   activity.Recorder
	Logger     *slog.Logger
	Channel    string
	AccountID  string
	ChunkLimit int
}

// Dispatch performs ordered delivery for one triggering message. Only a
// cancelled context makes it return early; everything else is
// best-effort.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) error {
	payloads := NormalizePayloads(req.Payloads)

	if len(payloads) > 0 {
		go func() {
			if err := d.Transport.SendTyping(context.WithoutCancel(ctx), req.Target); err != nil {
				d.Logger.Warn("typing_failed", "target", req.Target, "error", err)
			}
		}()
	}

	hasReplied := false
	replyTo := func() int64 {
		if hasReplied {
			return 0
		}
		return req.TriggerMessageID
	}

	for _, p := range payloads {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(p.MediaURLs) > 0 {
			d.sendMedia(ctx, req.Target, p, replyTo, &hasReplied)
			continue
		}
		d.sendText(ctx, req.Target, p.Text, replyTo, &hasReplied)
	}

	d.cleanupAck(ctx, req)
	return ctx.Err()
}

func (d *Dispatcher) sendText(ctx context.Context, target, text string, replyTo func() int64, hasReplied *bool) {
	for _, chunk := range textchunk.Chunk(text, d.ChunkLimit) {
		res, err := d.Transport.SendText(ctx, target, chunk, replyTo())
		if err != nil {
			d.Logger.Warn("dispatch_send_failed", "target", target, "kind", activity.KindText, "error", err)
			return
		}
		*hasReplied = true
		d.recordOutbound(ctx, target, res.MessageID, activity.KindText)
	}
}

func (d *Dispatcher) sendMedia(ctx context.Context, target string, p Payload, replyTo func() int64, hasReplied *bool) {
	for i, url := range p.MediaURLs {
		caption := ""
		if i == 0 {
			caption = p.Text
		}
		res, err := d.Transport.SendMedia(ctx, target, url, caption, replyTo(), p.AudioAsVoice)
		if err != nil {
			d.Logger.Warn("dispatch_send_failed", "target", target, "kind", activity.KindMedia, "media_url", url, "error", err)
			return
		}
		*hasReplied = true
		d.recordOutbound(ctx, target, res.MessageID, activity.KindMedia)
	}
}

func (d *Dispatcher) cleanupAck(ctx context.Context, req Request) {
	if !req.RemoveAck || req.AckApplied == nil {
		return
	}
	var applied bool
	select {
	case applied = <-req.AckApplied:
	case <-ctx.Done():
		return
	}
	if !applied {
		return
	}
	if err := d.Transport.SetReaction(ctx, req.Target, req.TriggerMessageID, ""); err != nil {
		d.Logger.Warn("ack_clear_failed", "target", req.Target, "message_id", req.TriggerMessageID, "error", err)
	}
}

func (d *Dispatcher) recordOutbound(ctx context.Context, target string, messageID int64, kind string) {
	if d.Activity == nil {
		return
	}
	ev := activity.Event{
		Direction: activity.Outbound,
		Channel:   d.Channel,
		AccountID: d.AccountID,
		PeerID:    target,
		MessageID: messageID,
		Kind:      kind,
	}
	if err := d.Activity.Record(ctx, ev); err != nil {
		d.Logger.Warn("activity_record_failed", "direction", ev.Direction, "error", err)
	}
}
