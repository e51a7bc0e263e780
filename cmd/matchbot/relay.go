package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"matchbot/internal/logging"
	"matchbot/internal/remote"
)

var relayListen string

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Relay partner messages between robots",
	Long: "relay accepts remote links from the robots of a team and forwards each zone and action " +
		"message to the other connected robots.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return remote.NewRelay(logging.FromContext(cmd.Context())).ListenAndServe(ctx, relayListen)
	},
}

func init() {
	relayCmd.Flags().StringVar(&relayListen, "listen", ":9400", "TCP listen address")
}
