package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marcus/fieldsync/internal/config"
	"github.com/marcus/fieldsync/internal/engine"
	"github.com/marcus/fieldsync/internal/output"
	"github.com/marcus/fieldsync/internal/proxy"
	"github.com/spf13/cobra"
)

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Run the submission proxy in front of the collector",
	Long: `Serves an HTTP endpoint that accepts report submissions and forwards
them to the collector. When forwarding fails the report is absorbed into
the local queue and the client still receives a success response, so
field devices never see a delivery error for a captured report.

GET requests under /api/ are answered from a stale cache while the
collector is unreachable. The background watcher retries the queue
until everything is delivered.`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer closeEngine(e)

		bus := proxy.NewBus()
		srv, err := proxy.NewServer(config.GetCollectorURL(), bus)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Deferred submissions flow from the proxy into the durable queue.
		ch := bus.Subscribe(64)
		go proxy.Bridge(ctx, ch, e)

		w := engine.NewWatcher(e)
		w.ProbeInterval = config.GetProbeInterval()
		w.SweepInterval = config.GetSweepInterval()
		watcherDone := make(chan struct{})
		go func() {
			w.Run(ctx)
			close(watcherDone)
		}()

		listen, _ := cmd.Flags().GetString("listen")
		if listen == "" {
			listen = config.GetProxyListen()
		}

		httpSrv := &http.Server{
			Addr:              listen,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			httpSrv.Shutdown(shutdownCtx)
		}()

		slog.Info("proxy started", "listen", listen, "collector", config.GetCollectorURL())
		output.Info("Proxy listening on %s, Ctrl-C to stop", listen)

		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			output.Error("%v", err)
			return err
		}

		// Let the watcher finish its shutdown sweep before the engine closes.
		stop()
		<-watcherDone
		slog.Info("proxy stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(proxyCmd)
	proxyCmd.Flags().String("listen", "", "Listen address (default from config)")
}
