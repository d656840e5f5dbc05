// Package statepaths resolves where gateway state lives on disk. Everything
// hangs off file_state_dir (default ~/.telegate); session files are keyed by
// normalized account id.
package statepaths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	defaultStateDirName = ".telegate"
	channelDirName      = "telegram-user"
)

func StateDir() string {
	return resolveStateDir(viper.GetString("file_state_dir"))
}

func ChannelDir() string {
	return filepath.Join(StateDir(), channelDirName)
}

// SessionPath is the transport client's credential file for one account.
// Its contents are opaque to the gateway.
func SessionPath(accountID string) string {
	return filepath.Join(ChannelDir(), "session-"+accountID+".json")
}

func PairingPath() string {
	return filepath.Join(ChannelDir(), "pairing.yaml")
}

func PairingLockPath() string {
	return filepath.Join(ChannelDir(), "pairing.lck")
}

func ActivityLogPath() string {
	return filepath.Join(StateDir(), "activity.jsonl")
}

func MediaDir() string {
	return filepath.Join(StateDir(), "media")
}

func SessionStoreDir() string {
	return filepath.Join(StateDir(), "sessions")
}

func resolveStateDir(raw string) string {
	dir := strings.TrimSpace(raw)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return defaultStateDirName
		}
		return filepath.Join(home, defaultStateDirName)
	}
	return ExpandHomePath(dir)
}

func ExpandHomePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(path, "~"), "/"))
		}
	}
	return path
}
