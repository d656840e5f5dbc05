// Package monitor owns the live MTProto client lifecycle: one connection
// per account, inbound event subscription, and the admission pipeline
// that decides whether a message reaches the agent.
package monitor

import (
	"context"
	"sync"

	"github.com/quailyquaily/telegate/dispatch"
)

// Handle is one live client registration.
type Handle struct {
	AccountID string
	Stop      context.CancelFunc

	transport dispatch.Transport
}

// Registry maps account ids to their single active client handle.
// Registration replaces atomically; there is no window where two handles
// are both considered active for one account.
type Registry struct {
	mu     sync.Mutex
	active map[string]*Handle
}

func NewRegistry() *Registry {
	return &Registry{active: make(map[string]*Handle)}
}

// Replace installs h as the active handle for its account and returns
// the handle it displaced, if any. The caller stops the displaced one.
func (r *Registry) Replace(h *Handle) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.active[h.AccountID]
	r.active[h.AccountID] = h
	return prev
}

// Unregister removes h only when it is still the active handle, so a
// teardown racing a replacement never removes the newer registration.
func (r *Registry) Unregister(h *Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[h.AccountID] != h {
		return false
	}
	delete(r.active, h.AccountID)
	return true
}

// SetTransport attaches the live transport to a handle once its
// connection is up. Ignored when the handle has already been displaced.
func (r *Registry) SetTransport(h *Handle, t dispatch.Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[h.AccountID] == h {
		h.transport = t
	}
}

// Transport returns the live transport for an account, or nil when the
// account has no connected client.
func (r *Registry) Transport(accountID string) dispatch.Transport {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h := r.active[accountID]; h != nil {
		return h.transport
	}
	return nil
}

// Get returns the active handle for an account, or nil.
func (r *Registry) Get(accountID string) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active[accountID]
}

// ActiveIDs lists accounts with a registered client.
func (r *Registry) ActiveIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.active))
	for id := range r.active {
		ids = append(ids, id)
	}
	return ids
}
