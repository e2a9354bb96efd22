package engine

import (
	"context"
	"log/slog"
	"time"
)

const (
	// DefaultProbeInterval is how often connectivity is re-checked.
	DefaultProbeInterval = 10 * time.Second
	// DefaultSweepInterval is the periodic backlog sweep cadence.
	DefaultSweepInterval = 30 * time.Second
	// DefaultStartupGrace delays the first sweep so a freshly started
	// agent settles before hammering the collector.
	DefaultStartupGrace = 2 * time.Second
)

// Watcher drives the engine's background triggers: the connectivity
// probe, the periodic sweep, and the post-restore grace sweep.
type Watcher struct {
	engine *Engine

	ProbeInterval time.Duration
	SweepInterval time.Duration
	StartupGrace  time.Duration
}

// NewWatcher creates a watcher with the default intervals.
func NewWatcher(e *Engine) *Watcher {
	return &Watcher{
		engine:        e,
		ProbeInterval: DefaultProbeInterval,
		SweepInterval: DefaultSweepInterval,
		StartupGrace:  DefaultStartupGrace,
	}
}

// Run blocks until ctx is cancelled. It probes connectivity first so
// the engine starts with a real online state, sweeps once after the
// startup grace, then alternates probe and sweep ticks. On shutdown it
// makes one best-effort sweep to drain whatever the network allows.
func (w *Watcher) Run(ctx context.Context) {
	w.probe()

	grace := time.NewTimer(w.StartupGrace)
	defer grace.Stop()
	select {
	case <-grace.C:
		w.engine.Sweep()
	case <-ctx.Done():
		return
	}

	probeTick := time.NewTicker(w.ProbeInterval)
	defer probeTick.Stop()
	sweepTick := time.NewTicker(w.SweepInterval)
	defer sweepTick.Stop()

	for {
		select {
		case <-probeTick.C:
			w.probe()
		case <-sweepTick.C:
			w.engine.Sweep()
		case <-ctx.Done():
			if w.engine.Online() {
				slog.Debug("shutdown sweep")
				w.engine.Sweep()
			}
			return
		}
	}
}

// probe checks the collector and feeds the result to the engine.
// SetOnline handles the offline-to-online sweep itself.
func (w *Watcher) probe() {
	online := w.engine.sender.HealthCheck()
	w.engine.SetOnline(online)
}
