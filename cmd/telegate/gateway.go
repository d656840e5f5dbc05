package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quailyquaily/telegate/account"
)

func newGatewayCmd() *cobra.Command {
	var accountIDs []string

	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Run the inbound gateway for one or more accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := loggerFromViper()
			if err != nil {
				return err
			}

			cfg, err := account.LoadFromViper()
			if err != nil {
				return err
			}
			if err := account.Validate(cfg); err != nil {
				return err
			}

			ids := accountIDs
			if len(ids) == 0 {
				for _, id := range account.ListIDs(cfg) {
					if account.Resolve(cfg, id).Enabled {
						ids = append(ids, id)
					}
				}
			}
			if len(ids) == 0 {
				return fmt.Errorf("no enabled accounts to monitor")
			}

			gw, cleanup, err := buildGateway(logger)
			if err != nil {
				return err
			}
			defer cleanup()

			started := 0
			for _, id := range ids {
				if err := gw.StartAccount(id); err != nil {
					logger.Error("gateway_start_failed", "account_id", id, "error", err)
					continue
				}
				logger.Info("gateway_started", "account_id", account.NormalizeID(id))
				started++
			}
			if started == 0 {
				return fmt.Errorf("no accounts started")
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			<-stop
			logger.Info("gateway_shutdown")
			gw.StopAll()
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&accountIDs, "account", nil, "Account id to monitor (repeatable; default: all enabled).")
	return cmd
}
