package monitor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gotd/td/bin"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
)

// scriptedInvoker answers the raw requests SendMedia issues: file parts
// are accepted, and the first media send is rejected with
// VOICE_MESSAGES_FORBIDDEN so the fallback path runs.
type scriptedInvoker struct {
	mu         sync.Mutex
	mediaSends []*tg.MessagesSendMediaRequest
}

func (i *scriptedInvoker) Invoke(ctx context.Context, input bin.Encoder, output bin.Decoder) error {
	switch req := input.(type) {
	case *tg.UploadSaveFilePartRequest:
		return respondWith(output, &tg.BoolTrue{})
	case *tg.UploadSaveBigFilePartRequest:
		return respondWith(output, &tg.BoolTrue{})
	case *tg.MessagesSendMediaRequest:
		i.mu.Lock()
		i.mediaSends = append(i.mediaSends, req)
		attempt := len(i.mediaSends)
		i.mu.Unlock()
		if attempt == 1 {
			return tgerr.New(400, "VOICE_MESSAGES_FORBIDDEN")
		}
		return respondWith(output, &tg.UpdateShortSentMessage{ID: 7})
	}
	return fmt.Errorf("unexpected request %T", input)
}

func (i *scriptedInvoker) sends() []*tg.MessagesSendMediaRequest {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]*tg.MessagesSendMediaRequest(nil), i.mediaSends...)
}

func respondWith(output bin.Decoder, result bin.Encoder) error {
	var buf bin.Buffer
	if err := result.Encode(&buf); err != nil {
		return err
	}
	return output.Decode(&buf)
}

func voiceAttempt(req *tg.MessagesSendMediaRequest) bool {
	doc, ok := req.Media.(*tg.InputMediaUploadedDocument)
	if !ok {
		return false
	}
	for _, attr := range doc.Attributes {
		if audio, ok := attr.(*tg.DocumentAttributeAudio); ok && audio.Voice {
			return true
		}
	}
	return false
}

func TestSendMediaVoiceForbiddenRetriesAsDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/ogg")
		_, _ = w.Write([]byte("OggS voice note bytes"))
	}))
	defer srv.Close()

	invoker := &scriptedInvoker{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	transport := NewTransport(tg.NewClient(invoker), nil, 10<<20, logger)

	res, err := transport.SendMedia(context.Background(), "123", srv.URL+"/note.ogg", "", 0, true)
	if err != nil {
		t.Fatalf("SendMedia() error = %v", err)
	}
	if res.MessageID != 7 {
		t.Fatalf("MessageID = %d, want 7", res.MessageID)
	}

	sends := invoker.sends()
	if len(sends) != 2 {
		t.Fatalf("media sends = %d, want one voice attempt and one fallback", len(sends))
	}
	if !voiceAttempt(sends[0]) {
		t.Fatalf("first attempt is not a voice note: %+v", sends[0].Media)
	}
	if voiceAttempt(sends[1]) {
		t.Fatalf("fallback attempt still flagged as voice: %+v", sends[1].Media)
	}

	first, ok1 := sends[0].Peer.(*tg.InputPeerUser)
	second, ok2 := sends[1].Peer.(*tg.InputPeerUser)
	if !ok1 || !ok2 || first.UserID != 123 || second.UserID != 123 {
		t.Fatalf("peers = %v / %v, want same user 123", sends[0].Peer, sends[1].Peer)
	}
}
