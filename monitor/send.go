package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/dcs"

	"github.com/quailyquaily/telegate/account"
	"github.com/quailyquaily/telegate/dispatch"
)

// withClient runs fn over a short-lived authorized connection. Used by
// the standalone outbound surface and CLI commands; the gateway keeps
// its own long-lived client.
func withClient(ctx context.Context, acct account.Account, sessionPath string, fn func(ctx context.Context, client *telegram.Client) error) error {
	if !acct.Configured() {
		return fmt.Errorf("monitor: account %s has no api credentials", acct.ID)
	}
	if _, err := os.Stat(sessionPath); err != nil {
		return fmt.Errorf("%w (account %s)", ErrSessionMissing, acct.ID)
	}

	client := telegram.NewClient(acct.APIID, acct.APIHash, telegram.Options{
		SessionStorage: &telegram.FileSessionStorage{Path: sessionPath},
		DCList:         dcs.Prod(),
	})
	return client.Run(ctx, func(runCtx context.Context) error {
		status, err := client.Auth().Status(runCtx)
		if err != nil {
			return err
		}
		if !status.Authorized {
			return fmt.Errorf("%w (account %s)", ErrNotAuthorized, acct.ID)
		}
		return fn(runCtx, client)
	})
}

// SendText delivers one text message over an ephemeral connection.
func SendText(ctx context.Context, acct account.Account, sessionPath, to, text string, logger *slog.Logger) (dispatch.SendResult, error) {
	var result dispatch.SendResult
	err := withClient(ctx, acct, sessionPath, func(runCtx context.Context, client *telegram.Client) error {
		transport := NewTransport(client.API(), nil, acct.MediaMaxBytes(), logger)
		res, err := transport.SendText(runCtx, to, text, 0)
		result = res
		return err
	})
	return result, err
}

// SendMedia fetches a remote URL and delivers it as one media message
// over an ephemeral connection.
func SendMedia(ctx context.Context, acct account.Account, sessionPath, to, mediaURL, caption string, audioAsVoice bool, logger *slog.Logger) (dispatch.SendResult, error) {
	var result dispatch.SendResult
	err := withClient(ctx, acct, sessionPath, func(runCtx context.Context, client *telegram.Client) error {
		transport := NewTransport(client.API(), nil, acct.MediaMaxBytes(), logger)
		res, err := transport.SendMedia(runCtx, to, mediaURL, caption, 0, audioAsVoice)
		result = res
		return err
	})
	return result, err
}

// Linked reports whether the account has an authorized session on disk.
func Linked(ctx context.Context, acct account.Account, sessionPath string) bool {
	err := withClient(ctx, acct, sessionPath, func(context.Context, *telegram.Client) error {
		return nil
	})
	return err == nil
}
