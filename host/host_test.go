package host

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestStaticRouteResolver(t *testing.T) {
	r := StaticRouteResolver{AgentID: "main"}
	route, err := r.ResolveRoute(context.Background(), "telegram-user", "default", "123")
	if err != nil {
		t.Fatalf("ResolveRoute() error = %v", err)
	}
	if route.AgentID != "main" {
		t.Fatalf("AgentID = %q, want main", route.AgentID)
	}
	if route.SessionKey != "telegram-user:default:123" {
		t.Fatalf("SessionKey = %q", route.SessionKey)
	}
	if route.MainSessionKey != "telegram-user:default:main" {
		t.Fatalf("MainSessionKey = %q", route.MainSessionKey)
	}

	if _, err := r.ResolveRoute(context.Background(), "telegram-user", "default", ""); err == nil {
		t.Fatalf("ResolveRoute() accepted empty peer")
	}
}

func TestFileSessionStoreRoundTrip(t *testing.T) {
	store := NewFileSessionStore(t.TempDir())
	ctx := context.Background()

	rec := SessionRecord{
		SessionKey:    "telegram-user:default:123",
		AgentID:       "main",
		Channel:       "telegram-user",
		AccountID:     "default",
		PeerID:        "123",
		LastMessageID: 42,
	}
	if err := store.RecordRoute(ctx, rec); err != nil {
		t.Fatalf("RecordRoute() error = %v", err)
	}

	got, ok, err := store.Load(ctx, rec.SessionKey)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !ok {
		t.Fatalf("Load() found = false, want true")
	}
	if got.PeerID != "123" || got.LastMessageID != 42 {
		t.Fatalf("Load() = %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatalf("UpdatedAt not filled in")
	}

	if _, ok, err := store.Load(ctx, "telegram-user:default:999"); err != nil || ok {
		t.Fatalf("Load(missing) = %v, %v; want not found", ok, err)
	}
}

func TestFormatEnvelope(t *testing.T) {
	msg := InboundMessage{
		Channel:        "telegram-user",
		AccountID:      "default",
		SenderID:       "123",
		SenderUsername: "alice",
		SenderName:     "Alice",
		Text:           "hello there",
		Timestamp:      time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	got := FormatEnvelope(msg)
	for _, want := range []string{"telegram-user", "Alice", "id 123", "hello there"} {
		if !strings.Contains(got, want) {
			t.Fatalf("envelope missing %q: %q", want, got)
		}
	}
}

func TestFormatEnvelopeIncludesAttachment(t *testing.T) {
	msg := InboundMessage{
		Channel:   "telegram-user",
		AccountID: "default",
		SenderID:  "123",
		MediaPath: "/state/media/abc.png",
		MediaType: "image/png",
	}
	got := FormatEnvelope(msg)
	if !strings.Contains(got, "/state/media/abc.png") || !strings.Contains(got, "image/png") {
		t.Fatalf("envelope missing attachment pointer: %q", got)
	}
}

func TestExecResponderParsesPayloadArray(t *testing.T) {
	r := &ExecResponder{Command: []string{"sh", "-c", `cat >/dev/null; echo '[{"text":"hi"},{"mediaUrl":"http://a/x.png"}]'`}}
	payloads, err := r.Respond(context.Background(), InboundMessage{SenderID: "123"})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if len(payloads) != 2 || payloads[0].Text != "hi" || payloads[1].MediaURL != "http://a/x.png" {
		t.Fatalf("payloads = %+v", payloads)
	}
}

func TestExecResponderTreatsPlainOutputAsText(t *testing.T) {
	r := &ExecResponder{Command: []string{"sh", "-c", `cat >/dev/null; echo 'plain reply'`}}
	payloads, err := r.Respond(context.Background(), InboundMessage{SenderID: "123"})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if len(payloads) != 1 || payloads[0].Text != "plain reply" {
		t.Fatalf("payloads = %+v", payloads)
	}
}

func TestExecResponderFailureSurfacesStderr(t *testing.T) {
	r := &ExecResponder{Command: []string{"sh", "-c", `echo 'boom' >&2; exit 3`}}
	if _, err := r.Respond(context.Background(), InboundMessage{}); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("Respond() error = %v, want stderr in error", err)
	}
}
