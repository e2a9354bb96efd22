package cmd

import (
	"fmt"

	"github.com/marcus/fieldsync/internal/config"
	"github.com/marcus/fieldsync/internal/models"
	"github.com/marcus/fieldsync/internal/output"
	"github.com/spf13/cobra"
)

var statusFormat = formatTable

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show connectivity and queue summary",
	GroupID: "queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(e)

		stats := e.Stats()

		if statusFormat == formatJSON {
			return output.JSON(struct {
				Collector string            `json:"collector"`
				Online    bool              `json:"online"`
				Total     int               `json:"total"`
				ByStatus  map[models.Status]int `json:"byStatus"`
			}{
				Collector: config.GetCollectorURL(),
				Online:    stats.Online,
				Total:     stats.Total,
				ByStatus:  stats.ByStatus,
			})
		}

		state := "OFFLINE"
		if stats.Online {
			state = "ONLINE"
		}
		fmt.Printf("COLLECTOR: %s [%s]\n", config.GetCollectorURL(), state)
		fmt.Printf("QUEUED: %d\n", stats.Total)

		if stats.Total > 0 {
			fmt.Printf("  %s %d\n", output.StatusBadge(models.StatusPending), stats.ByStatus[models.StatusPending])
			fmt.Printf("  %s %d\n", output.StatusBadge(models.StatusRetrying), stats.ByStatus[models.StatusRetrying])
			fmt.Printf("  %s %d\n", output.StatusBadge(models.StatusFailed), stats.ByStatus[models.StatusFailed])
			if n := stats.ByStatus[models.StatusFailed]; n > 0 {
				fmt.Println()
				output.Warning("%d report(s) exhausted retries; run 'fieldsync retry <id>' to revive", n)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().Var(&statusFormat, "format", "Output format: table or json")
}
