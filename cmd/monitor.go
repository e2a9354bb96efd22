package cmd

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/marcus/fieldsync/internal/config"
	"github.com/marcus/fieldsync/internal/engine"
	"github.com/marcus/fieldsync/pkg/monitor"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live TUI view of the submission queue",
	Long: `Launch a live-updating TUI showing connectivity, queue counters, and
every report still waiting for the collector. The background watcher
runs alongside, so the queue drains while you watch.

Key bindings:
  j/k, up/down   Move selection
  r              Retry the selected report now
  d              Discard the selected report
  s              Sweep the whole queue now
  /              Filter by id or error text
  ?              Toggle help
  q              Quit`,
	GroupID: "queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(e)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		w := engine.NewWatcher(e)
		w.ProbeInterval = config.GetProbeInterval()
		w.SweepInterval = config.GetSweepInterval()
		go w.Run(ctx)

		interval, _ := cmd.Flags().GetDuration("interval")
		if interval < 500*time.Millisecond {
			interval = 2 * time.Second
		}

		model := monitor.NewModel(e, interval)

		p := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("error running monitor: %w", err)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().Duration("interval", 2*time.Second, "Refresh interval (default 2s)")
}
