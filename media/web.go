package media

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// WebMedia is the result of fetching a remote attachment URL for an
// outbound send.
type WebMedia struct {
	Data        []byte
	ContentType string
	FileName    string
}

// WebLoader fetches outbound media over HTTP with an explicit byte cap.
type WebLoader struct {
	client *http.Client
}

func NewWebLoader() *WebLoader {
	return &WebLoader{client: &http.Client{Timeout: 60 * time.Second}}
}

// Load fetches rawURL, refusing responses whose declared or actual size
// exceeds maxBytes.
func (l *WebLoader) Load(ctx context.Context, rawURL string, maxBytes int64) (WebMedia, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return WebMedia{}, fmt.Errorf("media: unsupported media url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return WebMedia{}, fmt.Errorf("media: build request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return WebMedia{}, fmt.Errorf("media: fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return WebMedia{}, fmt.Errorf("media: fetch %s: status %d", rawURL, resp.StatusCode)
	}
	if maxBytes > 0 && resp.ContentLength > maxBytes {
		return WebMedia{}, fmt.Errorf("%w: declared %d bytes, limit %d", ErrTooLarge, resp.ContentLength, maxBytes)
	}

	reader := io.Reader(resp.Body)
	if maxBytes > 0 {
		reader = io.LimitReader(resp.Body, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return WebMedia{}, fmt.Errorf("media: read %s: %w", rawURL, err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return WebMedia{}, fmt.Errorf("%w: body over %d bytes", ErrTooLarge, maxBytes)
	}

	fileName := fileNameFromURL(parsed)
	contentType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if contentType == "" || isGenericType(contentType) {
		contentType = DetectContentType(data, fileName)
	}
	if fileName == "" {
		fileName = "media" + firstExtension(contentType)
	}

	return WebMedia{Data: data, ContentType: contentType, FileName: fileName}, nil
}

func fileNameFromURL(u *url.URL) string {
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return ""
	}
	return name
}

func firstExtension(contentType string) string {
	base := strings.TrimSpace(strings.Split(contentType, ";")[0])
	if exts, err := mime.ExtensionsByType(base); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
