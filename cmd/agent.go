package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/marcus/fieldsync/internal/config"
	"github.com/marcus/fieldsync/internal/engine"
	"github.com/marcus/fieldsync/internal/output"
	"github.com/spf13/cobra"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the background sync agent",
	Long: `Runs in the foreground, probing collector reachability and sweeping
the queue on an interval. Queued reports are delivered as soon as the
collector becomes reachable. Stop with Ctrl-C; a final sweep runs on
shutdown when the collector is still reachable.`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(e)

		w := engine.NewWatcher(e)
		w.ProbeInterval = config.GetProbeInterval()
		w.SweepInterval = config.GetSweepInterval()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		slog.Info("agent started",
			"collector", config.GetCollectorURL(),
			"probe", w.ProbeInterval,
			"sweep", w.SweepInterval)
		output.Info("Agent running, Ctrl-C to stop")

		w.Run(ctx)

		slog.Info("agent stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(agentCmd)
}
