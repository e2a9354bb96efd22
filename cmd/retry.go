package cmd

import (
	"errors"

	"github.com/marcus/fieldsync/internal/engine"
	"github.com/marcus/fieldsync/internal/output"
	"github.com/spf13/cobra"
)

var retryCmd = &cobra.Command{
	Use:   "retry <id>",
	Short: "Retry a queued report immediately",
	Long: `Resets the retry counter for the given report and attempts delivery
right away, even if the record was marked failed. Refused while offline.`,
	GroupID: "sync",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(e)

		if err := e.RetryNow(args[0]); err != nil {
			if errors.Is(err, engine.ErrOffline) {
				output.Error("collector unreachable, retry refused")
			} else {
				output.Error("%v", err)
			}
			return err
		}

		rec, err := e.Get(args[0])
		if err != nil {
			// Gone from the queue means delivered.
			output.Success("Delivered %s", args[0])
			return nil
		}
		output.Warning("Retry failed: %s", rec.LastError)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(retryCmd)
}
