package cmd

import (
	"github.com/marcus/fieldsync/internal/output"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	Short:   "Sweep the queue and deliver everything possible now",
	Long: `Attempts delivery for every queued report, oldest first. Records that
exhausted their retries are skipped; use retry to revive them. A no-op
while the collector is unreachable.`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(e)

		if !e.Online() {
			output.Warning("collector unreachable, nothing attempted")
			return nil
		}

		attempted, delivered := e.Sweep()
		switch {
		case attempted == 0:
			output.Info("Nothing to sync")
		case delivered == attempted:
			output.Success("Delivered %d of %d", delivered, attempted)
		default:
			output.Warning("Delivered %d of %d, the rest will retry", delivered, attempted)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
