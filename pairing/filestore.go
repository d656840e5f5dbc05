package pairing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/quailyquaily/telegate/internal/fsstore"
)

const fileVersion = 1

type fileState struct {
	Version  int        `yaml:"version"`
	Pending  []Request  `yaml:"pending,omitempty"`
	Approved []Approval `yaml:"approved,omitempty"`
}

// FileStore persists pairing state as one YAML document, guarded by a
// sibling lock file so concurrent gateway and CLI processes do not
// clobber each other.
type FileStore struct {
	path     string
	lockPath string
	ttl      time.Duration
	now      func() time.Time

	mu sync.Mutex
}

func NewFileStore(path, lockPath string) *FileStore {
	return &FileStore{
		path:     path,
		lockPath: lockPath,
		ttl:      DefaultRequestTTL,
		now:      time.Now,
	}
}

// UpsertRequest implements Store. Re-contact while a code is pending and
// unexpired returns the existing request; expiry or first contact issues
// a fresh code.
func (s *FileStore) UpsertRequest(ctx context.Context, meta Meta) (Request, bool, error) {
	var out Request
	var created bool
	err := s.update(ctx, func(state *fileState) error {
		now := s.now()
		state.Pending = pruneExpired(state.Pending, now)
		for i, req := range state.Pending {
			if req.Channel == meta.Channel && req.SenderID == meta.SenderID {
				state.Pending[i].Username = meta.Username
				state.Pending[i].DisplayName = meta.DisplayName
				out = state.Pending[i]
				return nil
			}
		}
		out = Request{
			Channel:     meta.Channel,
			SenderID:    meta.SenderID,
			Code:        NewCode(),
			Username:    meta.Username,
			DisplayName: meta.DisplayName,
			CreatedAt:   now,
			ExpiresAt:   now.Add(s.ttl),
		}
		created = true
		state.Pending = append(state.Pending, out)
		return nil
	})
	if err != nil {
		return Request{}, false, err
	}
	return out, created, nil
}

// ApprovedEntries implements Store, returning sender ids of every
// approval on the channel.
func (s *FileStore) ApprovedEntries(ctx context.Context, channel string) ([]string, error) {
	var entries []string
	err := s.read(ctx, func(state fileState) {
		for _, a := range state.Approved {
			if a.Channel == channel {
				entries = append(entries, a.SenderID)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Approve redeems a pending code, moving the sender to the approved set.
func (s *FileStore) Approve(ctx context.Context, code string) (Request, error) {
	var approved Request
	err := s.update(ctx, func(state *fileState) error {
		now := s.now()
		state.Pending = pruneExpired(state.Pending, now)
		for i, req := range state.Pending {
			if req.Code != code {
				continue
			}
			approved = req
			state.Pending = append(state.Pending[:i], state.Pending[i+1:]...)
			state.Approved = append(state.Approved, Approval{
				Channel:    req.Channel,
				SenderID:   req.SenderID,
				Username:   req.Username,
				ApprovedAt: now,
			})
			return nil
		}
		return fmt.Errorf("no pending pairing request for code %s", code)
	})
	if err != nil {
		return Request{}, err
	}
	return approved, nil
}

// ListPending returns unexpired pending requests, oldest first.
func (s *FileStore) ListPending(ctx context.Context) ([]Request, error) {
	var pending []Request
	err := s.read(ctx, func(state fileState) {
		pending = pruneExpired(state.Pending, s.now())
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

func (s *FileStore) read(ctx context.Context, fn func(state fileState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fsstore.WithLock(ctx, s.lockPath, func() error {
		state, err := s.load()
		if err != nil {
			return err
		}
		fn(state)
		return nil
	})
}

func (s *FileStore) update(ctx context.Context, fn func(state *fileState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fsstore.WithLock(ctx, s.lockPath, func() error {
		state, err := s.load()
		if err != nil {
			return err
		}
		if err := fn(&state); err != nil {
			return err
		}
		state.Version = fileVersion
		return fsstore.WriteYAMLAtomic(s.path, state, fsstore.FileOptions{})
	})
}

func (s *FileStore) load() (fileState, error) {
	var state fileState
	if _, err := fsstore.ReadYAML(s.path, &state); err != nil {
		return fileState{}, err
	}
	return state, nil
}

func pruneExpired(pending []Request, now time.Time) []Request {
	kept := pending[:0]
	for _, req := range pending {
		if !req.Expired(now) {
			kept = append(kept, req)
		}
	}
	return kept
}
