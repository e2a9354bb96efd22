package monitor

import (
	"fmt"
	"time"

	"github.com/marcus/fieldsync/internal/engine"
)

// FetchData snapshots the engine for one refresh cycle.
func FetchData(e *engine.Engine) RefreshDataMsg {
	return RefreshDataMsg{
		Records:   e.Records(),
		Stats:     e.Stats(),
		Timestamp: time.Now(),
	}
}

// syncNotice summarises a manual sweep for the notice line.
func syncNotice(attempted, delivered int) string {
	if delivered == attempted {
		return fmt.Sprintf("synced %d of %d", delivered, attempted)
	}
	return fmt.Sprintf("synced %d of %d, rest will retry", delivered, attempted)
}
