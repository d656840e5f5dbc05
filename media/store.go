package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/quailyquaily/telegate/internal/fsstore"
)

// FileStore is a content-addressed attachment store: buffers are written
// once under a digest-derived name, so re-delivery of the same content
// reuses the existing file.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// SaveBuffer implements Store.
func (s *FileStore) SaveBuffer(ctx context.Context, data []byte, contentType, channel string, maxBytes int64, fileName string) (Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return Descriptor{}, err
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return Descriptor{}, fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(data), maxBytes)
	}
	if contentType == "" {
		contentType = DetectContentType(data, fileName)
	}

	sum := sha256.Sum256(data)
	name := hex.EncodeToString(sum[:])[:16] + extensionFor(contentType, fileName)
	path := filepath.Join(s.dir, channel, name)

	if _, err := os.Stat(path); err == nil {
		return Descriptor{Path: path, ContentType: contentType}, nil
	}
	if err := fsstore.WriteBytesAtomic(path, data, fsstore.FileOptions{}); err != nil {
		return Descriptor{}, err
	}
	return Descriptor{Path: path, ContentType: contentType}, nil
}

func extensionFor(contentType, fileName string) string {
	if ext := strings.ToLower(filepath.Ext(fileName)); ext != "" {
		return ext
	}
	base := strings.TrimSpace(strings.Split(contentType, ";")[0])
	if exts, err := mime.ExtensionsByType(base); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
