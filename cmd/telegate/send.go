package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quailyquaily/telegate/target"
)

func newSendCmd() *cobra.Command {
	var (
		accountID    string
		to           string
		text         string
		mediaURL     string
		audioAsVoice bool
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a text or media message",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := loggerFromViper()
			if err != nil {
				return err
			}
			if _, err := target.Normalize(to); err != nil {
				return err
			}
			if text == "" && mediaURL == "" {
				return fmt.Errorf("nothing to send: provide --text and/or --media-url")
			}

			gw, cleanup, err := buildGateway(logger)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			if mediaURL != "" {
				res, err := gw.SendMedia(ctx, accountID, to, mediaURL, text, audioAsVoice)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "sent media message %d to %s\n", res.MessageID, to)
				return nil
			}

			res, err := gw.SendText(ctx, accountID, to, text)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent message %d to %s\n", res.MessageID, to)
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Account id (default: the default account).")
	cmd.Flags().StringVar(&to, "to", "", "Recipient: numeric id, @username, or telegram-user:<id>.")
	cmd.Flags().StringVar(&text, "text", "", "Message text (caption when sending media).")
	cmd.Flags().StringVar(&mediaURL, "media-url", "", "Remote media URL to send.")
	cmd.Flags().BoolVar(&audioAsVoice, "voice", false, "Deliver compatible audio as a voice note.")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
