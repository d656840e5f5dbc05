package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quailyquaily/telegate/channel"
)

func newStatusCmd() *cobra.Command {
	var (
		accountID string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show account status",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := loggerFromViper()
			if err != nil {
				return err
			}
			gw, cleanup, err := buildGateway(logger)
			if err != nil {
				return err
			}
			defer cleanup()

			var ids []string
			if accountID != "" {
				ids = []string{accountID}
			} else {
				ids, err = gw.ListAccountIDs()
				if err != nil {
					return err
				}
			}

			var snaps []channel.StatusSnapshot
			for _, id := range ids {
				snap, err := gw.Status(id)
				if err != nil {
					return err
				}
				snaps = append(snaps, snap)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(snaps)
			}
			for _, s := range snaps {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tenabled=%v configured=%v linked=%v running=%v dm_policy=%s\n",
					s.AccountID, s.Enabled, s.Configured, s.Linked, s.Running, s.DMPolicy)
				if s.LastError != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "\tlast error: %s\n", s.LastError)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Account id (default: all).")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON.")
	return cmd
}
