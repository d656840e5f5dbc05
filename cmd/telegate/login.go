package main

import (
	"github.com/spf13/cobra"

	"github.com/quailyquaily/telegate/account"
	"github.com/quailyquaily/telegate/internal/statepaths"
	"github.com/quailyquaily/telegate/monitor"
)

func newLoginCmd() *cobra.Command {
	var accountID string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Link a Telegram account (phone + code sign-in)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := account.LoadFromViper()
			if err != nil {
				return err
			}
			acct := account.Resolve(cfg, accountID)
			return monitor.Login(cmd.Context(), acct, statepaths.SessionPath(acct.ID), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Account id to link (default: the default account).")
	return cmd
}
