package account

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/quailyquaily/telegate/internal/fsstore"
)

const configKey = "channels.telegram-user"

// LoadFromViper decodes the channels.telegram-user subtree of the loaded
// configuration.
func LoadFromViper() (ChannelConfig, error) {
	var cfg ChannelConfig
	if err := viper.UnmarshalKey(configKey, &cfg); err != nil {
		return ChannelConfig{}, fmt.Errorf("decode %s config: %w", configKey, err)
	}
	return cfg, nil
}

// SetEnabled flips the enabled flag of one account in the config file,
// creating the account block when missing. The rest of the file is
// preserved as-is.
func SetEnabled(configPath, accountID string, enabled bool) error {
	return editAccounts(configPath, func(accounts map[string]any) error {
		id := NormalizeID(accountID)
		block, _ := accounts[id].(map[string]any)
		if block == nil {
			block = map[string]any{}
		}
		block["enabled"] = enabled
		accounts[id] = block
		return nil
	})
}

// Delete removes one account block from the config file.
func Delete(configPath, accountID string) error {
	return editAccounts(configPath, func(accounts map[string]any) error {
		id := NormalizeID(accountID)
		if _, ok := accounts[id]; !ok {
			return fmt.Errorf("account %s not found in config", id)
		}
		delete(accounts, id)
		return nil
	})
}

func editAccounts(configPath string, edit func(accounts map[string]any) error) error {
	if configPath == "" {
		return fmt.Errorf("no config file in use")
	}

	root := map[string]any{}
	if _, err := fsstore.ReadYAML(configPath, &root); err != nil {
		return err
	}

	channels, _ := root["channels"].(map[string]any)
	if channels == nil {
		channels = map[string]any{}
		root["channels"] = channels
	}
	channel, _ := channels[Channel].(map[string]any)
	if channel == nil {
		channel = map[string]any{}
		channels[Channel] = channel
	}
	accounts, _ := channel["accounts"].(map[string]any)
	if accounts == nil {
		accounts = map[string]any{}
		channel["accounts"] = accounts
	}

	if err := edit(accounts); err != nil {
		return err
	}
	return fsstore.WriteYAMLAtomic(configPath, root, fsstore.FileOptions{})
}
