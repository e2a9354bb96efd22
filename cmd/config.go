package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/marcus/fieldsync/internal/config"
	"github.com/marcus/fieldsync/internal/output"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:     "config [key] [value]",
	Short:   "Show or change fieldsync settings",
	Long: `With no arguments, prints the effective settings. With a key and a
value, writes the setting to ~/.config/fieldsync/config.json.

Keys:
  collector.url       Collector base URL
  queue.max_retries   Automatic retry bound
  queue.retry_delay   First backoff step (duration, e.g. 2s)
  agent.probe         Connectivity probe cadence (duration)
  agent.sweep         Periodic sweep cadence (duration)
  proxy.listen        Proxy bind address`,
	GroupID: "system",
	Args:    cobra.RangeArgs(0, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			fmt.Printf("collector.url      %s\n", config.GetCollectorURL())
			fmt.Printf("queue.max_retries  %d\n", config.GetMaxRetries())
			fmt.Printf("queue.retry_delay  %s\n", config.GetBaseRetryDelay())
			fmt.Printf("agent.probe        %s\n", config.GetProbeInterval())
			fmt.Printf("agent.sweep        %s\n", config.GetSweepInterval())
			fmt.Printf("proxy.listen       %s\n", config.GetProxyListen())
			return nil
		}
		if len(args) == 1 {
			err := fmt.Errorf("missing value for %q", args[0])
			output.Error("%v", err)
			return err
		}

		cfg, err := config.Load()
		if err != nil {
			output.Error("%v", err)
			return err
		}

		key, value := args[0], args[1]
		switch key {
		case "collector.url":
			cfg.Collector.URL = value
		case "queue.max_retries":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				err := fmt.Errorf("max_retries must be a positive integer")
				output.Error("%v", err)
				return err
			}
			cfg.Queue.MaxRetries = &n
		case "queue.retry_delay":
			if _, err := time.ParseDuration(value); err != nil {
				output.Error("invalid duration: %v", err)
				return err
			}
			cfg.Queue.BaseRetryDelay = value
		case "agent.probe":
			if _, err := time.ParseDuration(value); err != nil {
				output.Error("invalid duration: %v", err)
				return err
			}
			cfg.Agent.ProbeInterval = value
		case "agent.sweep":
			if _, err := time.ParseDuration(value); err != nil {
				output.Error("invalid duration: %v", err)
				return err
			}
			cfg.Agent.SweepInterval = value
		case "proxy.listen":
			cfg.Proxy.Listen = value
		default:
			err := fmt.Errorf("unknown key %q", key)
			output.Error("%v", err)
			return err
		}

		if err := config.Save(cfg); err != nil {
			output.Error("%v", err)
			return err
		}
		output.Success("%s = %s", key, value)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
