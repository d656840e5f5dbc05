// Package activity records message traffic events as an append-only
// JSONL log. Recording is best-effort telemetry: callers log failures
// and move on.
package activity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quailyquaily/telegate/internal/fsstore"
)

// Directions.
const (
	Inbound  = "inbound"
	Outbound = "outbound"
)

// Event kinds.
const (
	KindText         = "text"
	KindMedia        = "media"
	KindPairingReply = "pairing_reply"
)

// Event is one recorded message-traffic event.
type Event struct {
	ID        string    `json:"id"`
	Direction string    `json:"direction"`
	Channel   string    `json:"channel"`
	AccountID string    `json:"account_id"`
	PeerID    string    `json:"peer_id"`
	MessageID int64     `json:"message_id,omitempty"`
	Kind      string    `json:"kind"`
	At        time.Time `json:"at"`
}

// Recorder accepts traffic events.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// FileRecorder appends events to a JSONL file, one object per line.
type FileRecorder struct {
	mu     sync.Mutex
	writer *fsstore.JSONLWriter
}

func NewFileRecorder(path string) (*FileRecorder, error) {
	w, err := fsstore.NewJSONLWriter(path, fsstore.FileOptions{})
	if err != nil {
		return nil, err
	}
	return &FileRecorder{writer: w}, nil
}

// Record implements Recorder. Missing id and timestamp are filled in.
func (r *FileRecorder) Record(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writer.AppendJSON(ev)
}

func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writer.Close()
}
