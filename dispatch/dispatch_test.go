package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/quailyquaily/telegate/activity"
)

type sentMessage struct {
	kind    string
	target  string
	text    string
	url     string
	replyTo int64
	voice   bool
}

type fakeTransport struct {
	mu        sync.Mutex
	sent      []sentMessage
	reactions []string
	typing    chan struct{}
	failText  map[string]error
	nextID    int64
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{typing: make(chan struct{}, 4)}
}

func (f *fakeTransport) SendText(ctx context.Context, target, text string, replyTo int64) (SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failText[text]; err != nil {
		return SendResult{}, err
	}
	f.nextID++
	f.sent = append(f.sent, sentMessage{kind: "text", target: target, text: text, replyTo: replyTo})
	return SendResult{MessageID: f.nextID}, nil
}

func (f *fakeTransport) SendMedia(ctx context.Context, target, mediaURL, caption string, replyTo int64, audioAsVoice bool) (SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, sentMessage{kind: "media", target: target, text: caption, url: mediaURL, replyTo: replyTo, voice: audioAsVoice})
	return SendResult{MessageID: f.nextID}, nil
}

func (f *fakeTransport) SendTyping(ctx context.Context, target string) error {
	select {
	case f.typing <- struct{}{}:
	default:
	}
	return nil
}

func (f *fakeTransport) SetReaction(ctx context.Context, target string, messageID int64, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, emoji)
	return nil
}

func (f *fakeTransport) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

type memRecorder struct {
	mu     sync.Mutex
	events []activity.Event
}

func (r *memRecorder) Record(ctx context.Context, ev activity.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func newTestDispatcher(transport Transport, recorder activity.Recorder) *Dispatcher {
	return &Dispatcher{
		Transport:  transport,
		Activity:   recorder,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Channel:    "telegram-user",
		AccountID:  "default",
		ChunkLimit: 4000,
	}
}

func TestNormalizePayloads(t *testing.T) {
	in := []Payload{
		{Text: "  hello  "},
		{},
		{Text: "   "},
		{MediaURL: "http://a/x.png"},
		{MediaURLs: []string{"http://a/y.png", ""}},
	}
	out := NormalizePayloads(in)
	if len(out) != 3 {
		t.Fatalf("payload count = %d, want 3: %+v", len(out), out)
	}
	if out[0].Text != "hello" {
		t.Fatalf("text = %q, want trimmed hello", out[0].Text)
	}
	if len(out[1].MediaURLs) != 1 || out[1].MediaURLs[0] != "http://a/x.png" {
		t.Fatalf("mediaUrl not collapsed: %+v", out[1])
	}
	if len(out[2].MediaURLs) != 1 {
		t.Fatalf("blank media url kept: %+v", out[2])
	}
}

func TestDispatchThreadsOnlyFirstSend(t *testing.T) {
	transport := newFakeTransport()
	recorder := &memRecorder{}
	d := newTestDispatcher(transport, recorder)

	err := d.Dispatch(context.Background(), Request{
		Target:           "123",
		TriggerMessageID: 42,
		Payloads: []Payload{
			{Text: "A"},
			{Text: "B"},
			{MediaURL: "http://a/u.png"},
		},
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	sent := transport.messages()
	if len(sent) != 3 {
		t.Fatalf("send count = %d, want 3", len(sent))
	}
	if sent[0].replyTo != 42 {
		t.Fatalf("first send replyTo = %d, want 42", sent[0].replyTo)
	}
	for i, m := range sent[1:] {
		if m.replyTo != 0 {
			t.Fatalf("send %d replyTo = %d, want 0", i+1, m.replyTo)
		}
	}
	if sent[2].kind != "media" || sent[2].url != "http://a/u.png" {
		t.Fatalf("third send = %+v, want media", sent[2])
	}
	if len(recorder.events) != 3 {
		t.Fatalf("activity events = %d, want 3", len(recorder.events))
	}
	for _, ev := range recorder.events {
		if ev.Direction != activity.Outbound || ev.Channel != "telegram-user" || ev.AccountID != "default" {
			t.Fatalf("event tags wrong: %+v", ev)
		}
	}
}

func TestDispatchEmitsTypingBeforePayloads(t *testing.T) {
	transport := newFakeTransport()
	d := newTestDispatcher(transport, &memRecorder{})

	if err := d.Dispatch(context.Background(), Request{Target: "123", Payloads: []Payload{{Text: "hi"}}}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	select {
	case <-transport.typing:
	case <-time.After(2 * time.Second):
		t.Fatalf("typing indicator never sent")
	}
}

func TestDispatchChunksLongText(t *testing.T) {
	transport := newFakeTransport()
	d := newTestDispatcher(transport, &memRecorder{})
	d.ChunkLimit = 10

	text := "one two three four five six seven"
	if err := d.Dispatch(context.Background(), Request{Target: "123", TriggerMessageID: 7, Payloads: []Payload{{Text: text}}}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	sent := transport.messages()
	if len(sent) < 2 {
		t.Fatalf("send count = %d, want chunked sends", len(sent))
	}
	if sent[0].replyTo != 7 {
		t.Fatalf("first chunk replyTo = %d, want 7", sent[0].replyTo)
	}
	if sent[1].replyTo != 0 {
		t.Fatalf("second chunk replyTo = %d, want 0", sent[1].replyTo)
	}
}

func TestDispatchPayloadErrorDoesNotAbortRest(t *testing.T) {
	transport := newFakeTransport()
	transport.failText = map[string]error{"bad": errors.New("send failed")}
	d := newTestDispatcher(transport, &memRecorder{})

	err := d.Dispatch(context.Background(), Request{
		Target:           "123",
		TriggerMessageID: 9,
		Payloads:         []Payload{{Text: "bad"}, {Text: "good"}},
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	sent := transport.messages()
	if len(sent) != 1 || sent[0].text != "good" {
		t.Fatalf("sent = %+v, want only the second payload", sent)
	}
	if sent[0].replyTo != 9 {
		t.Fatalf("surviving send replyTo = %d, want 9 (first successful send threads)", sent[0].replyTo)
	}
}

func TestDispatchClearsAckAfterReply(t *testing.T) {
	transport := newFakeTransport()
	d := newTestDispatcher(transport, &memRecorder{})

	applied := make(chan bool, 1)
	applied <- true
	err := d.Dispatch(context.Background(), Request{
		Target:           "123",
		TriggerMessageID: 42,
		Payloads:         []Payload{{Text: "done"}},
		AckApplied:       applied,
		RemoveAck:        true,
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(transport.reactions) != 1 || transport.reactions[0] != "" {
		t.Fatalf("reactions = %v, want one clearing call", transport.reactions)
	}
}

func TestDispatchSkipsAckCleanupWhenAckFailed(t *testing.T) {
	transport := newFakeTransport()
	d := newTestDispatcher(transport, &memRecorder{})

	applied := make(chan bool, 1)
	applied <- false
	err := d.Dispatch(context.Background(), Request{
		Target:     "123",
		Payloads:   []Payload{{Text: "done"}},
		AckApplied: applied,
		RemoveAck:  true,
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(transport.reactions) != 0 {
		t.Fatalf("reactions = %v, want none when ack never applied", transport.reactions)
	}
}

func TestDispatchMediaCaptionOnFirstURLOnly(t *testing.T) {
	transport := newFakeTransport()
	d := newTestDispatcher(transport, &memRecorder{})

	err := d.Dispatch(context.Background(), Request{
		Target: "123",
		Payloads: []Payload{
			{Text: "caption", MediaURLs: []string{"http://a/1.png", "http://a/2.png"}},
		},
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	sent := transport.messages()
	if len(sent) != 2 {
		t.Fatalf("send count = %d, want 2", len(sent))
	}
	if sent[0].text != "caption" || sent[1].text != "" {
		t.Fatalf("captions = %q/%q, want caption only on first", sent[0].text, sent[1].text)
	}
}
