// Package account resolves effective telegram-user account settings from
// the channel configuration tree and process environment. Accounts are
// derived fresh on every access and never cached.
package account

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Channel is the channel identifier used in config keys, pairing records
// and activity events.
const Channel = "telegram-user"

// DefaultID is the reserved account id used when no account is named.
const DefaultID = "default"

// DM admission policies.
const (
	PolicyPairing   = "pairing"
	PolicyAllowlist = "allowlist"
	PolicyOpen      = "open"
	PolicyDisabled  = "disabled"
)

// Built-in defaults, overridable at the channel level and again per
// account.
const (
	DefaultTextChunkLimit = 4000
	DefaultMediaMaxMb     = 5.0
)

// Environment overrides. They apply to the default account only so that
// one process-wide secret cannot silently govern multiple identities.
const (
	EnvAPIID    = "TELEGRAM_USER_API_ID"
	EnvAPIHash  = "TELEGRAM_USER_API_HASH"
	EnvPassword = "TELEGRAM_USER_PASSWORD"
)

// Source records where a credential value came from. Diagnostics only.
type Source string

const (
	SourceEnv    Source = "env"
	SourceConfig Source = "config"
	SourceNone   Source = "none"
)

// Settings is one block of channel or per-account configuration. All
// fields are optional; zero values mean "inherit".
type Settings struct {
	Enabled        *bool    `mapstructure:"enabled" yaml:"enabled,omitempty"`
	Name           string   `mapstructure:"name" yaml:"name,omitempty"`
	APIID          int      `mapstructure:"api_id" yaml:"api_id,omitempty"`
	APIHash        string   `mapstructure:"api_hash" yaml:"api_hash,omitempty"`
	Password       string   `mapstructure:"password" yaml:"password,omitempty"`
	DMPolicy       string   `mapstructure:"dm_policy" yaml:"dm_policy,omitempty"`
	AllowFrom      []string `mapstructure:"allow_from" yaml:"allow_from,omitempty"`
	TextChunkLimit int      `mapstructure:"text_chunk_limit" yaml:"text_chunk_limit,omitempty"`
	MediaMaxMb     float64  `mapstructure:"media_max_mb" yaml:"media_max_mb,omitempty"`
}

// ChannelConfig is the channels.telegram-user subtree: base settings plus
// a map of per-account overrides.
type ChannelConfig struct {
	Settings `mapstructure:",squash" yaml:",inline"`
	Accounts map[string]Settings `mapstructure:"accounts" yaml:"accounts,omitempty"`
}

// Account is the effective, resolved view of one account. Immutable once
// returned.
type Account struct {
	ID             string
	Name           string
	Enabled        bool
	APIID          int
	APIIDSource    Source
	APIHash        string
	APIHashSource  Source
	Password       string
	PasswordSource Source
	DMPolicy       string
	AllowFrom      []string
	TextChunkLimit int
	MediaMaxMb     float64
}

// Configured reports whether the account carries usable API credentials.
func (a Account) Configured() bool {
	return a.APIID != 0 && a.APIHash != ""
}

// MediaMaxBytes is the inbound/outbound attachment byte cap.
func (a Account) MediaMaxBytes() int64 {
	return int64(a.MediaMaxMb * 1024 * 1024)
}

// NormalizeID canonicalizes an account id: trimmed, lowercase, empty maps
// to the default sentinel.
func NormalizeID(raw string) string {
	id := strings.ToLower(strings.TrimSpace(raw))
	if id == "" {
		return DefaultID
	}
	return id
}

// Resolve merges base channel settings with the matched account block and
// applies environment overrides for the default account. The account
// block wins on every conflicting field; enabled is the AND of both
// levels.
func Resolve(cfg ChannelConfig, accountID string) Account {
	id := NormalizeID(accountID)
	block, _ := lookupAccount(cfg.Accounts, id)

	merged := mergeSettings(cfg.Settings, block)

	acct := Account{
		ID:             id,
		Name:           merged.Name,
		Enabled:        boolOr(cfg.Settings.Enabled, true) && boolOr(block.Enabled, true),
		APIID:          merged.APIID,
		APIHash:        merged.APIHash,
		Password:       merged.Password,
		DMPolicy:       policyOr(merged.DMPolicy),
		AllowFrom:      append([]string(nil), merged.AllowFrom...),
		TextChunkLimit: merged.TextChunkLimit,
		MediaMaxMb:     merged.MediaMaxMb,
	}
	if acct.TextChunkLimit <= 0 {
		acct.TextChunkLimit = DefaultTextChunkLimit
	}
	if acct.MediaMaxMb <= 0 {
		acct.MediaMaxMb = DefaultMediaMaxMb
	}

	acct.APIIDSource = sourceFor(acct.APIID != 0)
	acct.APIHashSource = sourceFor(acct.APIHash != "")
	acct.PasswordSource = sourceFor(acct.Password != "")

	if id == DefaultID {
		applyEnvOverrides(&acct)
	}
	return acct
}

// ListIDs returns all account ids, normalized and sorted. The default
// sentinel is always present, whether or not the accounts map names it.
func ListIDs(cfg ChannelConfig) []string {
	seen := map[string]struct{}{DefaultID: {}}
	ids := []string{DefaultID}
	for key := range cfg.Accounts {
		id := NormalizeID(key)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ResolveDefaultID picks the account used when the caller names none.
// The id list always contains the default sentinel, so that is what an
// unnamed lookup resolves to.
func ResolveDefaultID(cfg ChannelConfig) string {
	for _, id := range ListIDs(cfg) {
		if id == DefaultID {
			return id
		}
	}
	return DefaultID
}

// Validate checks channel-level configuration constraints for every
// account the config can resolve.
func Validate(cfg ChannelConfig) error {
	for _, id := range ListIDs(cfg) {
		acct := Resolve(cfg, id)
		switch acct.DMPolicy {
		case PolicyPairing, PolicyAllowlist, PolicyOpen, PolicyDisabled:
		default:
			return fmt.Errorf("account %s: unknown dm_policy %q", id, acct.DMPolicy)
		}
		if acct.DMPolicy == PolicyOpen && !containsWildcard(acct.AllowFrom) {
			return fmt.Errorf("account %s: dm_policy=open requires allow_from to contain \"*\"", id)
		}
	}
	return nil
}

func lookupAccount(accounts map[string]Settings, id string) (Settings, bool) {
	if block, ok := accounts[id]; ok {
		return block, true
	}
	for key, block := range accounts {
		if NormalizeID(key) == id {
			return block, true
		}
	}
	return Settings{}, false
}

func mergeSettings(base, over Settings) Settings {
	out := base
	if over.Name != "" {
		out.Name = over.Name
	}
	if over.APIID != 0 {
		out.APIID = over.APIID
	}
	if over.APIHash != "" {
		out.APIHash = over.APIHash
	}
	if over.Password != "" {
		out.Password = over.Password
	}
	if over.DMPolicy != "" {
		out.DMPolicy = over.DMPolicy
	}
	if len(over.AllowFrom) > 0 {
		out.AllowFrom = over.AllowFrom
	}
	if over.TextChunkLimit != 0 {
		out.TextChunkLimit = over.TextChunkLimit
	}
	if over.MediaMaxMb != 0 {
		out.MediaMaxMb = over.MediaMaxMb
	}
	return out
}

func applyEnvOverrides(acct *Account) {
	if raw := strings.TrimSpace(os.Getenv(EnvAPIID)); raw != "" {
		if id, err := strconv.Atoi(raw); err == nil && id != 0 {
			acct.APIID = id
			acct.APIIDSource = SourceEnv
		}
	}
	if hash := strings.TrimSpace(os.Getenv(EnvAPIHash)); hash != "" {
		acct.APIHash = hash
		acct.APIHashSource = SourceEnv
	}
	if pw := os.Getenv(EnvPassword); pw != "" {
		acct.Password = pw
		acct.PasswordSource = SourceEnv
	}
}

func policyOr(policy string) string {
	policy = strings.ToLower(strings.TrimSpace(policy))
	if policy == "" {
		return PolicyPairing
	}
	return policy
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func sourceFor(present bool) Source {
	if present {
		return SourceConfig
	}
	return SourceNone
}

func containsWildcard(entries []string) bool {
	for _, e := range entries {
		if strings.TrimSpace(e) == "*" {
			return true
		}
	}
	return false
}
