package main

import (
	"log/slog"

	"github.com/spf13/viper"

	"github.com/quailyquaily/telegate/account"
	"github.com/quailyquaily/telegate/activity"
	"github.com/quailyquaily/telegate/channel"
	"github.com/quailyquaily/telegate/host"
	"github.com/quailyquaily/telegate/internal/logutil"
	"github.com/quailyquaily/telegate/internal/statepaths"
	"github.com/quailyquaily/telegate/media"
	"github.com/quailyquaily/telegate/pairing"
)

func loggerFromViper() (*slog.Logger, error) {
	return logutil.LoggerFromViper()
}

func pairingStore() *pairing.FileStore {
	return pairing.NewFileStore(statepaths.PairingPath(), statepaths.PairingLockPath())
}

// buildGateway assembles the channel gateway from the loaded config.
// The returned cleanup closes the activity log.
func buildGateway(logger *slog.Logger) (*channel.Gateway, func(), error) {
	recorder, err := activity.NewFileRecorder(statepaths.ActivityLogPath())
	if err != nil {
		return nil, nil, err
	}

	responder := &host.ExecResponder{
		Command: viper.GetStringSlice("agent.command"),
		Timeout: viper.GetDuration("agent.timeout"),
		Logger:  logger,
	}

	gw := channel.NewGateway(channel.Options{
		Logger:              logger,
		LoadConfig:          account.LoadFromViper,
		Pairing:             pairingStore(),
		Routes:              host.StaticRouteResolver{AgentID: viper.GetString("agent.id")},
		Sessions:            host.NewFileSessionStore(statepaths.SessionStoreDir()),
		Responder:           responder,
		MediaStore:          media.NewFileStore(statepaths.MediaDir()),
		Activity:            recorder,
		SessionPathFor:      statepaths.SessionPath,
		AckEmoji:            viper.GetString("messages.ack_reaction"),
		AckScope:            viper.GetString("messages.ack_reaction_scope"),
		RemoveAckAfterReply: viper.GetBool("messages.remove_ack_after_reply"),
	})
	cleanup := func() { _ = recorder.Close() }
	return gw, cleanup, nil
}
