package cmd

import (
	"fmt"

	"github.com/marcus/fieldsync/internal/models"
	"github.com/marcus/fieldsync/internal/output"
	"github.com/spf13/cobra"
)

var queueFormat = formatTable

var queueCmd = &cobra.Command{
	Use:     "queue",
	Aliases: []string{"ls"},
	Short:   "List queued reports",
	Long: `Lists every report still waiting for the collector, oldest first.
Delivered reports are removed from the queue and do not appear.`,
	GroupID: "queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(e)

		records := e.Records()

		statusFilter, _ := cmd.Flags().GetString("status")
		if statusFilter != "" {
			want := models.Status(statusFilter)
			if !models.IsValidStatus(want) {
				err := fmt.Errorf("invalid status %q (valid: pending, retrying, failed)", statusFilter)
				output.Error("%v", err)
				return err
			}
			filtered := records[:0]
			for _, rec := range records {
				if rec.Status == want {
					filtered = append(filtered, rec)
				}
			}
			records = filtered
		}

		switch queueFormat {
		case formatJSON:
			return output.JSON(records)
		case formatIDs:
			for _, rec := range records {
				fmt.Println(rec.ID)
			}
			return nil
		}

		if len(records) == 0 {
			output.Info("Queue empty, all reports delivered")
			return nil
		}

		fmt.Print(output.SectionHeader(fmt.Sprintf("queue (%d)", len(records))))
		for _, rec := range records {
			fmt.Println("  " + output.FormatRecordShort(rec))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.Flags().Var(&queueFormat, "format", "Output format: table, json, or ids")
	queueCmd.Flags().String("status", "", "Only show records with this status")
}
