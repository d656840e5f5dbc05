package media

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func TestResolveInboundRejectsDeclaredOversizeBeforeDownload(t *testing.T) {
	downloaded := false
	in := Inbound{
		Size: 10 << 20,
		Download: func(ctx context.Context) ([]byte, error) {
			downloaded = true
			return nil, nil
		},
	}
	_, err := ResolveInbound(context.Background(), in, 5<<20, NewFileStore(t.TempDir()), "telegram-user")
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("ResolveInbound() error = %v, want ErrTooLarge", err)
	}
	if downloaded {
		t.Fatalf("oversize attachment was downloaded")
	}
}

func TestResolveInboundDownloadsAndStoresWithinLimit(t *testing.T) {
	payload := []byte("%PDF-1.4 test document body")
	in := Inbound{
		Size:     int64(len(payload)),
		FileName: "doc.pdf",
		MIMEType: "application/pdf",
		Download: func(ctx context.Context) ([]byte, error) {
			return payload, nil
		},
	}
	desc, err := ResolveInbound(context.Background(), in, 1<<20, NewFileStore(t.TempDir()), "telegram-user")
	if err != nil {
		t.Fatalf("ResolveInbound() error = %v", err)
	}
	if desc.ContentType != "application/pdf" {
		t.Fatalf("ContentType = %q, want declared application/pdf", desc.ContentType)
	}
	data, err := os.ReadFile(desc.Path)
	if err != nil {
		t.Fatalf("stored file unreadable: %v", err)
	}
	if string(data) != string(payload) {
		t.Fatalf("stored content mismatch")
	}
}

func TestResolveInboundSniffsMissingContentType(t *testing.T) {
	png := append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, make([]byte, 64)...)
	in := Inbound{
		Download: func(ctx context.Context) ([]byte, error) {
			return png, nil
		},
	}
	desc, err := ResolveInbound(context.Background(), in, 1<<20, NewFileStore(t.TempDir()), "telegram-user")
	if err != nil {
		t.Fatalf("ResolveInbound() error = %v", err)
	}
	if desc.ContentType != "image/png" {
		t.Fatalf("ContentType = %q, want sniffed image/png", desc.ContentType)
	}
}

func TestFileStoreDeduplicatesByContent(t *testing.T) {
	store := NewFileStore(t.TempDir())
	ctx := context.Background()
	data := []byte("same bytes both times")

	first, err := store.SaveBuffer(ctx, data, "text/plain", "telegram-user", 0, "a.txt")
	if err != nil {
		t.Fatalf("SaveBuffer() error = %v", err)
	}
	second, err := store.SaveBuffer(ctx, data, "text/plain", "telegram-user", 0, "a.txt")
	if err != nil {
		t.Fatalf("SaveBuffer() error = %v", err)
	}
	if first.Path != second.Path {
		t.Fatalf("paths differ: %s vs %s", first.Path, second.Path)
	}
}

func TestDetectContentTypeFallsBackToExtension(t *testing.T) {
	got := DetectContentType([]byte("plain looking bytes"), "doc.pdf")
	if !strings.HasPrefix(got, "application/pdf") {
		t.Fatalf("DetectContentType() = %q, want application/pdf via extension", got)
	}
}

func TestVoiceCompatible(t *testing.T) {
	cases := []struct {
		contentType string
		want        bool
	}{
		{contentType: "audio/ogg", want: true},
		{contentType: "audio/OGG; codecs=opus", want: true},
		{contentType: "audio/opus", want: true},
		{contentType: "audio/mpeg", want: false},
		{contentType: "image/png", want: false},
	}
	for _, tc := range cases {
		if got := VoiceCompatible(tc.contentType); got != tc.want {
			t.Fatalf("VoiceCompatible(%q) = %v, want %v", tc.contentType, got, tc.want)
		}
	}
}

func TestWebLoaderEnforcesByteCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(make([]byte, 2048))
	}))
	defer srv.Close()

	loader := NewWebLoader()
	if _, err := loader.Load(context.Background(), srv.URL+"/big.bin", 1024); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Load() error = %v, want ErrTooLarge", err)
	}

	got, err := loader.Load(context.Background(), srv.URL+"/big.bin", 4096)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got.Data) != 2048 {
		t.Fatalf("Data length = %d, want 2048", len(got.Data))
	}
	if got.FileName != "big.bin" {
		t.Fatalf("FileName = %q, want big.bin", got.FileName)
	}
}

func TestWebLoaderRejectsNonHTTPSchemes(t *testing.T) {
	loader := NewWebLoader()
	if _, err := loader.Load(context.Background(), "file:///etc/passwd", 1024); err == nil {
		t.Fatalf("Load() accepted a file:// url")
	}
}
