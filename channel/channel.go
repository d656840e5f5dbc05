// Package channel is the host-facing surface of the telegram-user
// gateway: the plugin contract with its capability flags, account
// lifecycle operations, the outbound send surface, and per-account
// status snapshots.
package channel

import (
	"time"

	"github.com/quailyquaily/telegate/account"
)

// Capabilities describes what the channel can and cannot do.
type Capabilities struct {
	ChatTypes      []string
	Media          bool
	Reactions      bool
	Threads        bool
	NativeCommands bool
}

// DefaultCapabilities: direct chats only, media supported, no reaction
// or thread surface exposed to the host, no native command registry.
func DefaultCapabilities() Capabilities {
	return Capabilities{
		ChatTypes: []string{"direct"},
		Media:     true,
	}
}

// StatusSnapshot is the externally visible state of one account.
type StatusSnapshot struct {
	AccountID      string     `json:"account_id"`
	Name           string     `json:"name,omitempty"`
	Enabled        bool       `json:"enabled"`
	Configured     bool       `json:"configured"`
	Linked         bool       `json:"linked"`
	Running        bool       `json:"running"`
	DMPolicy       string     `json:"dm_policy"`
	AllowFrom      []string   `json:"allow_from,omitempty"`
	LastStartAt    *time.Time `json:"last_start_at,omitempty"`
	LastStopAt     *time.Time `json:"last_stop_at,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	LastInboundAt  *time.Time `json:"last_inbound_at,omitempty"`
	LastOutboundAt *time.Time `json:"last_outbound_at,omitempty"`
}

// Plugin bundles the gateway with its static contract metadata.
type Plugin struct {
	Gateway *Gateway
}

func (p *Plugin) Name() string {
	return account.Channel
}

func (p *Plugin) Capabilities() Capabilities {
	return DefaultCapabilities()
}
