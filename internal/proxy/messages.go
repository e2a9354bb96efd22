package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// MessageKind tags a bus message. The two kinds are mutually exclusive
// per intercepted request: a submission is either delivered directly or
// handed over for durable queueing, never both.
type MessageKind string

const (
	// KindDeliveredDirectly announces the collector accepted the
	// submission on the first try. Informational only.
	KindDeliveredDirectly MessageKind = "submission-delivered-directly"
	// KindNeedsDurableEnqueue carries a submission the collector could
	// not be reached for. The consumer must persist it.
	KindNeedsDurableEnqueue MessageKind = "submission-needs-durable-enqueue"
)

// Message is the tagged union flowing from the interception layer to
// the queue side. Payload is set only for KindNeedsDurableEnqueue.
type Message struct {
	Kind    MessageKind     `json:"kind"`
	FormID  string          `json:"form_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate rejects unknown kinds and enqueue messages without a
// payload. Consumers call this on receipt rather than trusting the
// producer.
func (m Message) Validate() error {
	switch m.Kind {
	case KindDeliveredDirectly:
		return nil
	case KindNeedsDurableEnqueue:
		if len(m.Payload) == 0 {
			return fmt.Errorf("enqueue message without payload")
		}
		return nil
	default:
		return fmt.Errorf("unknown message kind: %q", m.Kind)
	}
}

// Bus fans messages out to subscribers with at-most-once, best-effort
// delivery: a subscriber whose buffer is full loses the message rather
// than blocking the request path. The durable record of a submission is
// the queue store, not the bus.
type Bus struct {
	mu   sync.Mutex
	subs []chan Message
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a new subscriber with the given buffer size.
func (b *Bus) Subscribe(buf int) <-chan Message {
	ch := make(chan Message, buf)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Publish delivers msg to every subscriber that can take it without
// blocking. Returns how many subscribers received it.
func (b *Bus) Publish(msg Message) int {
	b.mu.Lock()
	subs := make([]chan Message, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	delivered := 0
	for _, ch := range subs {
		select {
		case ch <- msg:
			delivered++
		default:
			slog.Warn("bus message dropped", "kind", msg.Kind)
		}
	}
	return delivered
}

// Enqueuer persists a submission payload. Satisfied by engine.Engine.
type Enqueuer interface {
	Enqueue(payload json.RawMessage) (string, error)
}

// Bridge consumes bus messages and turns enqueue requests into durable
// records. Malformed messages are logged and skipped; enqueue failures
// are logged but do not stop the bridge. Runs until ctx is cancelled.
func Bridge(ctx context.Context, ch <-chan Message, enq Enqueuer) {
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := msg.Validate(); err != nil {
				slog.Warn("bridge: invalid message", "err", err)
				continue
			}
			switch msg.Kind {
			case KindDeliveredDirectly:
				slog.Debug("bridge: delivered directly", "form_id", msg.FormID)
			case KindNeedsDurableEnqueue:
				id, err := enq.Enqueue(msg.Payload)
				if err != nil {
					slog.Warn("bridge: enqueue failed", "err", err)
					continue
				}
				slog.Debug("bridge: enqueued", "id", id)
			}
		case <-ctx.Done():
			return
		}
	}
}
