package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/dcs"
	"github.com/gotd/td/telegram/updates"
	"github.com/gotd/td/tg"

	"github.com/quailyquaily/telegate/account"
	"github.com/quailyquaily/telegate/dispatch"
)

// ErrSessionMissing is the fatal precondition for starting a monitor:
// login is a separate flow and is never attempted here.
var ErrSessionMissing = errors.New("monitor: no session for account; run `telegate login` first")

// ErrNotAuthorized reports a session file whose credentials Telegram no
// longer accepts.
var ErrNotAuthorized = errors.New("monitor: session is not authorized")

// Monitor owns one account's live connection: it connects, subscribes to
// updates, and feeds inbound events to the admission pipeline.
type Monitor struct {
	Account     account.Account
	SessionPath string
	Registry    *Registry
	Logger      *slog.Logger

	// NewHandler builds the admission pipeline once the transport for
	// this connection exists.
	NewHandler func(t dispatch.Transport) *Handler

	// Lifecycle hooks for status snapshots. Optional.
	OnRunning func()
	OnInbound func()
}

// Run connects and serves updates until the context is cancelled or a
// fatal transport error occurs. Cancellation during teardown is a clean
// stop, not an error.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.Account.Configured() {
		return fmt.Errorf("monitor: account %s has no api credentials", m.Account.ID)
	}
	if _, err := os.Stat(m.SessionPath); err != nil {
		return fmt.Errorf("%w (account %s)", ErrSessionMissing, m.Account.ID)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	handle := &Handle{AccountID: m.Account.ID, Stop: cancel}
	if prev := m.Registry.Replace(handle); prev != nil {
		m.Logger.Info("monitor_replacing_client", "account_id", m.Account.ID)
		prev.Stop()
	}
	defer m.Registry.Unregister(handle)

	peers := newPeerCache()
	dispatcher := tg.NewUpdateDispatcher()
	gaps := updates.New(updates.Config{Handler: dispatcher})

	client := telegram.NewClient(m.Account.APIID, m.Account.APIHash, telegram.Options{
		SessionStorage: &telegram.FileSessionStorage{Path: m.SessionPath},
		UpdateHandler:  gaps,
		DCList:         dcs.Prod(),
	})

	err := client.Run(runCtx, func(connCtx context.Context) error {
		status, err := client.Auth().Status(connCtx)
		if err != nil {
			return fmt.Errorf("monitor: auth status: %w", err)
		}
		if !status.Authorized {
			return fmt.Errorf("%w (account %s)", ErrNotAuthorized, m.Account.ID)
		}
		self, err := client.Self(connCtx)
		if err != nil {
			return fmt.Errorf("monitor: resolve self: %w", err)
		}

		transport := NewTransport(client.API(), peers, m.Account.MediaMaxBytes(), m.Logger)
		m.Registry.SetTransport(handle, transport)
		handler := m.NewHandler(transport)

		dispatcher.OnNewMessage(func(_ context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
			ev, ok := buildEvent(e, u, client.API(), peers, self.ID)
			if !ok {
				return nil
			}
			if m.OnInbound != nil && !ev.Outgoing && !ev.Service {
				m.OnInbound()
			}
			// Handlers run independently; one slow or failing message
			// never blocks the update stream.
			go handler.Handle(connCtx, ev)
			return nil
		})

		m.Logger.Info("monitor_running", "account_id", m.Account.ID, "self_id", self.ID)
		if m.OnRunning != nil {
			m.OnRunning()
		}
		return gaps.Run(connCtx, client.API(), self.ID, updates.AuthOptions{IsBot: self.Bot})
	})

	if err != nil && (errors.Is(err, context.Canceled) || runCtx.Err() != nil) {
		m.Logger.Info("monitor_stopped", "account_id", m.Account.ID)
		return nil
	}
	if errors.Is(err, session.ErrNotFound) {
		return fmt.Errorf("%w (account %s)", ErrSessionMissing, m.Account.ID)
	}
	if err != nil {
		m.Logger.Error("monitor_failed", "account_id", m.Account.ID, "error", err)
	}
	return err
}
