// Package pairing tracks access requests from unknown senders under the
// pairing DM policy. A sender's first disallowed contact issues a code;
// re-contact before approval returns the same code; approval turns the
// sender into an allowlist entry.
package pairing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultRequestTTL bounds how long an unapproved code stays valid. A
// re-contact after expiry issues a fresh code.
const DefaultRequestTTL = time.Hour

// Meta is the sender information captured when a request is issued.
type Meta struct {
	Channel     string
	SenderID    string
	Username    string
	DisplayName string
}

// Request is one pending pairing request.
type Request struct {
	Channel     string    `yaml:"channel"`
	SenderID    string    `yaml:"sender_id"`
	Code        string    `yaml:"code"`
	Username    string    `yaml:"username,omitempty"`
	DisplayName string    `yaml:"display_name,omitempty"`
	CreatedAt   time.Time `yaml:"created_at"`
	ExpiresAt   time.Time `yaml:"expires_at"`
}

// Expired reports whether the request's code is no longer redeemable.
func (r Request) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// Approval is one approved sender, kept as the persisted half of the
// effective allowlist.
type Approval struct {
	Channel    string    `yaml:"channel"`
	SenderID   string    `yaml:"sender_id"`
	Username   string    `yaml:"username,omitempty"`
	ApprovedAt time.Time `yaml:"approved_at"`
}

// Store is the pairing collaborator consumed by the admission pipeline.
type Store interface {
	// UpsertRequest issues a request for the sender, or returns the
	// still-pending one unchanged. The second return reports whether a
	// new code was created.
	UpsertRequest(ctx context.Context, meta Meta) (Request, bool, error)
	// ApprovedEntries returns allowlist entries derived from approvals
	// for one channel.
	ApprovedEntries(ctx context.Context, channel string) ([]string, error)
}

// NewCode returns a fresh pairing code: 8 uppercase hex-ish characters
// derived from a UUID, short enough to relay over a chat message.
func NewCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:8])
}

// BuildReply renders the message sent back to a sender whose contact
// created or refreshed a pairing request.
func BuildReply(senderID, code string) string {
	var b strings.Builder
	b.WriteString("telegate: access request received.\n\n")
	fmt.Fprintf(&b, "Your Telegram id: %s\n", senderID)
	fmt.Fprintf(&b, "Pairing code: %s\n\n", code)
	fmt.Fprintf(&b, "Ask the gateway owner to run: telegate accounts approve %s", code)
	return b.String()
}

// ApprovalNotice is sent to a sender once their request is approved.
const ApprovalNotice = "telegate: access approved."
