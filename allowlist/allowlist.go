// Package allowlist implements sender admission matching for the
// telegram-user channel. Entries come from channel config and from
// approved pairing requests; matching is exact on normalized ids and
// usernames, never prefix or substring based.
package allowlist

import "strings"

// Wildcard admits every sender when present in the entry list.
const Wildcard = "*"

var entryPrefixes = []string{"telegram-user:", "telegram:", "tg:", "user:"}

// NormalizeEntry lowercases an allowlist entry and strips any recognized
// channel prefix plus a leading @. Returns "" for blank entries.
func NormalizeEntry(raw string) string {
	entry := strings.ToLower(strings.TrimSpace(raw))
	if entry == "" {
		return ""
	}
	if entry == Wildcard {
		return Wildcard
	}
	for _, prefix := range entryPrefixes {
		if strings.HasPrefix(entry, prefix) {
			entry = strings.TrimSpace(strings.TrimPrefix(entry, prefix))
			break
		}
	}
	entry = strings.TrimPrefix(entry, "@")
	return strings.TrimSpace(entry)
}

// Set is a parsed allowlist partitioned into numeric-id entries and
// username entries.
type Set struct {
	wildcard  bool
	ids       map[string]struct{}
	usernames map[string]struct{}
}

// Parse builds a Set from raw entries. Blank entries are dropped; entries
// that are all digits (with an optional sign) partition into the id set,
// everything else into the username set.
func Parse(entries []string) Set {
	s := Set{
		ids:       make(map[string]struct{}),
		usernames: make(map[string]struct{}),
	}
	for _, raw := range entries {
		entry := NormalizeEntry(raw)
		switch {
		case entry == "":
		case entry == Wildcard:
			s.wildcard = true
		case isNumeric(entry):
			s.ids[entry] = struct{}{}
		default:
			s.usernames[entry] = struct{}{}
		}
	}
	return s
}

// IsWildcard reports whether the set admits every sender.
func (s Set) IsWildcard() bool {
	return s.wildcard
}

// Empty reports whether the set admits nobody.
func (s Set) Empty() bool {
	return !s.wildcard && len(s.ids) == 0 && len(s.usernames) == 0
}

// Allows reports whether a sender identified by numeric id and optional
// username is admitted. Either identifier matching is sufficient.
func (s Set) Allows(senderID, senderUsername string) bool {
	if s.wildcard {
		return true
	}
	if id := strings.TrimSpace(senderID); id != "" {
		if _, ok := s.ids[id]; ok {
			return true
		}
	}
	if username := NormalizeEntry(senderUsername); username != "" {
		if _, ok := s.usernames[username]; ok {
			return true
		}
	}
	return false
}

func isNumeric(s string) bool {
	body := strings.TrimPrefix(s, "-")
	if body == "" {
		return false
	}
	for _, r := range body {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
