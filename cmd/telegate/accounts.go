package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quailyquaily/telegate/account"
	"github.com/quailyquaily/telegate/internal/statepaths"
	"github.com/quailyquaily/telegate/monitor"
	"github.com/quailyquaily/telegate/pairing"
)

func newAccountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage gateway accounts and pairing requests",
	}
	cmd.AddCommand(newAccountsListCmd())
	cmd.AddCommand(newAccountsEnableCmd(true))
	cmd.AddCommand(newAccountsEnableCmd(false))
	cmd.AddCommand(newAccountsDeleteCmd())
	cmd.AddCommand(newAccountsPendingCmd())
	cmd.AddCommand(newAccountsApproveCmd())
	return cmd
}

func newAccountsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := account.LoadFromViper()
			if err != nil {
				return err
			}
			defaultID := account.ResolveDefaultID(cfg)
			for _, id := range account.ListIDs(cfg) {
				acct := account.Resolve(cfg, id)
				marker := " "
				if id == defaultID {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\tenabled=%v configured=%v dm_policy=%s api_id=%s api_hash=%s\n",
					marker, id, acct.Enabled, acct.Configured(), acct.DMPolicy, acct.APIIDSource, acct.APIHashSource)
			}
			return nil
		},
	}
}

func newAccountsEnableCmd(enable bool) *cobra.Command {
	use, short := "enable <account-id>", "Enable an account"
	if !enable {
		use, short = "disable <account-id>", "Disable an account"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := strings.TrimSpace(viper.ConfigFileUsed())
			if err := account.SetEnabled(configPath, args[0], enable); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "account %s enabled=%v\n", account.NormalizeID(args[0]), enable)
			return nil
		},
	}
}

func newAccountsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <account-id>",
		Short: "Remove an account from the config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := strings.TrimSpace(viper.ConfigFileUsed())
			if err := account.Delete(configPath, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "account %s deleted\n", account.NormalizeID(args[0]))
			return nil
		},
	}
}

func newAccountsPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List pending pairing requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			pending, err := pairingStore().ListPending(cmd.Context())
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no pending pairing requests")
				return nil
			}
			for _, req := range pending {
				name := req.DisplayName
				if name == "" {
					name = req.Username
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tsender=%s\t%s\texpires %s\n",
					req.Code, req.SenderID, name, req.ExpiresAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func newAccountsApproveCmd() *cobra.Command {
	var accountID string

	cmd := &cobra.Command{
		Use:   "approve <code>",
		Short: "Approve a pending pairing request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := loggerFromViper()
			if err != nil {
				return err
			}
			req, err := pairingStore().Approve(cmd.Context(), strings.ToUpper(strings.TrimSpace(args[0])))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "approved sender %s\n", req.SenderID)

			// Best-effort approval notice back to the sender.
			cfg, err := account.LoadFromViper()
			if err != nil {
				return nil
			}
			acct := account.Resolve(cfg, accountID)
			_, err = monitor.SendText(cmd.Context(), acct, statepaths.SessionPath(acct.ID), req.SenderID, pairing.ApprovalNotice, logger)
			if err != nil {
				logger.Warn("approval_notice_failed", "sender_id", req.SenderID, "error", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Account to send the approval notice from.")
	return cmd
}
