package host

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/quailyquaily/telegate/internal/fsstore"
)

// SessionRecord is the last-route bookkeeping kept per session key.
type SessionRecord struct {
	SessionKey    string    `json:"session_key"`
	AgentID       string    `json:"agent_id"`
	Channel       string    `json:"channel"`
	AccountID     string    `json:"account_id"`
	PeerID        string    `json:"peer_id"`
	LastMessageID int64     `json:"last_message_id,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SessionStore reads and writes last-route metadata keyed by session key.
type SessionStore interface {
	RecordRoute(ctx context.Context, rec SessionRecord) error
	Load(ctx context.Context, sessionKey string) (SessionRecord, bool, error)
}

// FileSessionStore keeps one JSON document per session key.
type FileSessionStore struct {
	dir string
}

func NewFileSessionStore(dir string) *FileSessionStore {
	return &FileSessionStore{dir: dir}
}

func (s *FileSessionStore) RecordRoute(ctx context.Context, rec SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	return fsstore.WriteJSONAtomic(s.pathFor(rec.SessionKey), rec, fsstore.FileOptions{})
}

func (s *FileSessionStore) Load(ctx context.Context, sessionKey string) (SessionRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return SessionRecord{}, false, err
	}
	var rec SessionRecord
	ok, err := fsstore.ReadJSON(s.pathFor(sessionKey), &rec)
	if err != nil || !ok {
		return SessionRecord{}, false, err
	}
	return rec, true, nil
}

var sessionKeySanitizer = strings.NewReplacer(":", "_", "/", "_", "\\", "_", "..", "_")

func (s *FileSessionStore) pathFor(sessionKey string) string {
	return filepath.Join(s.dir, sessionKeySanitizer.Replace(sessionKey)+".json")
}
