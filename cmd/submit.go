package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/marcus/fieldsync/internal/models"
	"github.com/marcus/fieldsync/internal/output"
	"github.com/spf13/cobra"
)

var submitCmd = &cobra.Command{
	Use:     "submit [file]",
	Aliases: []string{"add"},
	Short:   "Queue a delivery report for the collector",
	Long: `Reads a JSON report from the given file (or stdin with no argument),
persists it to the local queue, and attempts immediate delivery when the
collector is reachable. The report is durable before the command returns.`,
	Example: `  fieldsync submit report.json
  cat report.json | fieldsync submit`,
	GroupID: "queue",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := readPayload(args)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		e, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(e)

		id, err := e.Enqueue(payload)
		if err != nil {
			output.Error("failed to queue report: %v", err)
			return err
		}

		wait, _ := cmd.Flags().GetBool("wait")
		if wait && e.Online() {
			// Enqueue fires the first attempt asynchronously; give it a
			// moment so the result is known before we print.
			deadline := time.Now().Add(5 * time.Second)
			for time.Now().Before(deadline) {
				rec, err := e.Get(id)
				if err != nil || rec.Status != models.StatusPending {
					break
				}
				time.Sleep(50 * time.Millisecond)
			}
		}

		rec, err := e.Get(id)
		if err != nil {
			// Already delivered and removed from the queue.
			output.Success("Delivered %s", id)
			return nil
		}

		switch {
		case !e.Online():
			output.Info("Queued %s (offline, will deliver on reconnect)", id)
		case rec.Status == models.StatusPending:
			output.Info("Queued %s, delivery in progress", id)
		default:
			output.Warning("Queued %s, first attempt failed: %s", id, rec.LastError)
		}
		return nil
	},
}

// readPayload loads the report body from a file argument or stdin and
// verifies it is valid JSON. Payload bytes are preserved verbatim.
func readPayload(args []string) (json.RawMessage, error) {
	var data []byte
	var err error
	if len(args) == 1 {
		data, err = os.ReadFile(args[0])
		if err != nil {
			return nil, fmt.Errorf("read report: %w", err)
		}
	} else {
		data, err = io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("report is not valid JSON")
	}
	return json.RawMessage(data), nil
}

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().Bool("wait", false, "Wait for the first delivery attempt before printing")
}
