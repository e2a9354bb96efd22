package engine

import (
	"log/slog"
	"time"
)

// backoffDelay returns the wait after the given number of completed
// attempts: baseRetryDelay doubled per attempt, so retries land at
// 4s then 8s with the defaults.
func (e *Engine) backoffDelay(retryCount int) time.Duration {
	delay := e.baseRetryDelay
	for i := 0; i < retryCount; i++ {
		delay *= 2
	}
	return delay
}

// scheduleRetry arms a per-record timer. An existing timer for the
// same record is replaced, keeping at most one pending retry per ID.
// Discard and delivery cancel the timer, so a fired timer for a gone
// record falls through AttemptSend's absent-ID no-op.
func (e *Engine) scheduleRetry(id string, delay time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if t, ok := e.timers[id]; ok {
		t.Stop()
	}
	e.timers[id] = time.AfterFunc(delay, func() {
		e.mu.Lock()
		delete(e.timers, id)
		online := e.online
		closed := e.closed
		e.mu.Unlock()
		if closed {
			return
		}
		// An offline fire is dropped: the reconnect sweep will retry
		if !online {
			slog.Debug("retry timer fired while offline", "id", id)
			return
		}
		e.AttemptSend(id)
	})
}
