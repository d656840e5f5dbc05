package channel

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/quailyquaily/telegate/account"
	"github.com/quailyquaily/telegate/activity"
	"github.com/quailyquaily/telegate/dispatch"
	"github.com/quailyquaily/telegate/host"
	"github.com/quailyquaily/telegate/media"
	"github.com/quailyquaily/telegate/monitor"
	"github.com/quailyquaily/telegate/pairing"
)

// Options wires the gateway's collaborators. LoadConfig is called fresh
// on every account resolution so config edits take effect without a
// restart.
type Options struct {
	Logger     *slog.Logger
	LoadConfig func() (account.ChannelConfig, error)
	Pairing    pairing.Store
	Routes     host.RouteResolver
	Sessions   host.SessionStore
	Responder  host.Responder
	MediaStore media.Store
	Activity   activity.Recorder

	// SessionPathFor maps a normalized account id to its MTProto
	// session credential file.
	SessionPathFor func(accountID string) string

	AckEmoji            string
	AckScope            string
	RemoveAckAfterReply bool
}

type accountState struct {
	cancel context.CancelFunc
	done   chan struct{}

	running        bool
	lastStartAt    *time.Time
	lastStopAt     *time.Time
	lastError      string
	lastInboundAt  *time.Time
	lastOutboundAt *time.Time
}

// Gateway drives the monitor loop per account and answers status
// queries.
type Gateway struct {
	opts     Options
	registry *monitor.Registry

	mu     sync.Mutex
	states map[string]*accountState
}

func NewGateway(opts Options) *Gateway {
	return &Gateway{
		opts:     opts,
		registry: monitor.NewRegistry(),
		states:   make(map[string]*accountState),
	}
}

// ListAccountIDs returns all configured account ids.
func (g *Gateway) ListAccountIDs() ([]string, error) {
	cfg, err := g.opts.LoadConfig()
	if err != nil {
		return nil, err
	}
	return account.ListIDs(cfg), nil
}

// ResolveAccount resolves one account's effective settings.
func (g *Gateway) ResolveAccount(accountID string) (account.Account, error) {
	cfg, err := g.opts.LoadConfig()
	if err != nil {
		return account.Account{}, err
	}
	return account.Resolve(cfg, accountID), nil
}

// StartAccount begins monitoring an account, replacing any running
// monitor for the same account.
func (g *Gateway) StartAccount(accountID string) error {
	acct, err := g.ResolveAccount(accountID)
	if err != nil {
		return err
	}
	if !acct.Enabled {
		return fmt.Errorf("channel: account %s is disabled", acct.ID)
	}
	if !acct.Configured() {
		return fmt.Errorf("channel: account %s has no api credentials", acct.ID)
	}

	g.mu.Lock()
	if st := g.states[acct.ID]; st != nil && st.cancel != nil {
		st.cancel()
		done := st.done
		g.mu.Unlock()
		<-done
		g.mu.Lock()
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	st := g.stateLocked(acct.ID)
	now := time.Now().UTC()
	st.cancel = cancel
	st.done = done
	st.lastStartAt = &now
	st.lastError = ""
	g.mu.Unlock()

	mon := &monitor.Monitor{
		Account:     acct,
		SessionPath: g.opts.SessionPathFor(acct.ID),
		Registry:    g.registry,
		Logger:      g.opts.Logger,
		NewHandler: func(t dispatch.Transport) *monitor.Handler {
			return monitor.NewHandler(monitor.HandlerDeps{
				Account:             acct,
				Pairing:             g.opts.Pairing,
				Routes:              g.opts.Routes,
				Sessions:            g.opts.Sessions,
				Responder:           g.opts.Responder,
				MediaStore:          g.opts.MediaStore,
				Transport:           t,
				Activity:            g.hookedRecorder(acct.ID),
				Logger:              g.opts.Logger,
				AckEmoji:            g.opts.AckEmoji,
				AckScope:            g.opts.AckScope,
				RemoveAckAfterReply: g.opts.RemoveAckAfterReply,
			})
		},
		OnRunning: func() { g.markRunning(acct.ID, true) },
		OnInbound: func() { g.touchInbound(acct.ID) },
	}

	go func() {
		defer close(done)
		err := mon.Run(runCtx)
		g.mu.Lock()
		defer g.mu.Unlock()
		st := g.stateLocked(acct.ID)
		stopped := time.Now().UTC()
		st.running = false
		st.lastStopAt = &stopped
		if err != nil {
			st.lastError = err.Error()
		}
	}()
	return nil
}

// StopAccount cancels an account's monitor and waits for teardown.
// Stopping an account that is not running is an error; stopping twice is
// not reachable because the state is cleared under the lock.
func (g *Gateway) StopAccount(accountID string) error {
	id := account.NormalizeID(accountID)
	g.mu.Lock()
	st := g.states[id]
	if st == nil || st.cancel == nil {
		g.mu.Unlock()
		return fmt.Errorf("channel: account %s is not running", id)
	}
	cancel, done := st.cancel, st.done
	st.cancel = nil
	st.done = nil
	g.mu.Unlock()

	cancel()
	<-done
	return nil
}

// StopAll stops every running account. Used on gateway shutdown.
func (g *Gateway) StopAll() {
	g.mu.Lock()
	var waits []chan struct{}
	for _, st := range g.states {
		if st.cancel != nil {
			st.cancel()
			waits = append(waits, st.done)
			st.cancel = nil
			st.done = nil
		}
	}
	g.mu.Unlock()
	for _, done := range waits {
		<-done
	}
}

// Status reports the snapshot for one account.
func (g *Gateway) Status(accountID string) (StatusSnapshot, error) {
	acct, err := g.ResolveAccount(accountID)
	if err != nil {
		return StatusSnapshot{}, err
	}

	snap := StatusSnapshot{
		AccountID:  acct.ID,
		Name:       acct.Name,
		Enabled:    acct.Enabled,
		Configured: acct.Configured(),
		DMPolicy:   acct.DMPolicy,
		AllowFrom:  append([]string(nil), acct.AllowFrom...),
	}
	if _, err := os.Stat(g.opts.SessionPathFor(acct.ID)); err == nil {
		snap.Linked = true
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if st := g.states[acct.ID]; st != nil {
		snap.Running = st.running
		snap.LastStartAt = st.lastStartAt
		snap.LastStopAt = st.lastStopAt
		snap.LastError = st.lastError
		snap.LastInboundAt = st.lastInboundAt
		snap.LastOutboundAt = st.lastOutboundAt
	}
	return snap, nil
}

// SendText delivers one outbound text message on behalf of the host. A
// running account's live connection is reused; otherwise the send goes
// over a short-lived client.
func (g *Gateway) SendText(ctx context.Context, accountID, to, text string) (dispatch.SendResult, error) {
	acct, err := g.ResolveAccount(accountID)
	if err != nil {
		return dispatch.SendResult{}, err
	}
	var res dispatch.SendResult
	if t := g.registry.Transport(acct.ID); t != nil {
		res, err = t.SendText(ctx, to, text, 0)
	} else {
		res, err = monitor.SendText(ctx, acct, g.opts.SessionPathFor(acct.ID), to, text, g.opts.Logger)
	}
	if err == nil {
		g.touchOutbound(acct.ID)
	}
	return res, err
}

// SendMedia delivers one outbound media message on behalf of the host.
func (g *Gateway) SendMedia(ctx context.Context, accountID, to, mediaURL, caption string, audioAsVoice bool) (dispatch.SendResult, error) {
	acct, err := g.ResolveAccount(accountID)
	if err != nil {
		return dispatch.SendResult{}, err
	}
	var res dispatch.SendResult
	if t := g.registry.Transport(acct.ID); t != nil {
		res, err = t.SendMedia(ctx, to, mediaURL, caption, 0, audioAsVoice)
	} else {
		res, err = monitor.SendMedia(ctx, acct, g.opts.SessionPathFor(acct.ID), to, mediaURL, caption, audioAsVoice, g.opts.Logger)
	}
	if err == nil {
		g.touchOutbound(acct.ID)
	}
	return res, err
}

func (g *Gateway) stateLocked(accountID string) *accountState {
	st := g.states[accountID]
	if st == nil {
		st = &accountState{}
		g.states[accountID] = st
	}
	return st
}

func (g *Gateway) markRunning(accountID string, running bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stateLocked(accountID).running = running
}

func (g *Gateway) touchInbound(accountID string) {
	now := time.Now().UTC()
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stateLocked(accountID).lastInboundAt = &now
}

func (g *Gateway) touchOutbound(accountID string) {
	now := time.Now().UTC()
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stateLocked(accountID).lastOutboundAt = &now
}

// hookedRecorder wraps the configured activity recorder so outbound
// events also refresh the status snapshot.
func (g *Gateway) hookedRecorder(accountID string) activity.Recorder {
	return recorderFunc(func(ctx context.Context, ev activity.Event) error {
		if ev.Direction == activity.Outbound {
			g.touchOutbound(accountID)
		}
		if g.opts.Activity == nil {
			return nil
		}
		return g.opts.Activity.Record(ctx, ev)
	})
}

type recorderFunc func(ctx context.Context, ev activity.Event) error

func (f recorderFunc) Record(ctx context.Context, ev activity.Event) error {
	return f(ctx, ev)
}
