package engine

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/marcus/fieldsync/internal/models"
	"github.com/marcus/fieldsync/internal/store"
	"github.com/marcus/fieldsync/internal/transport"
)

const (
	// DefaultMaxRetries bounds automatic retries; after that the record
	// is parked as failed and waits for a manual retry or discard.
	DefaultMaxRetries = 3
	// DefaultBaseRetryDelay is the first backoff step. Each subsequent
	// attempt doubles it.
	DefaultBaseRetryDelay = 2 * time.Second
)

// ErrOffline is returned by operations that refuse to run while the
// collector is unreachable.
var ErrOffline = fmt.Errorf("collector offline")

// Sender delivers a payload to the collector. Satisfied by
// transport.Client; tests substitute fakes.
type Sender interface {
	Submit(payload json.RawMessage) (*transport.SubmitResponse, error)
	HealthCheck() bool
}

// Notifier receives user-facing queue events. All methods are called
// outside engine locks and must not call back into the engine.
type Notifier interface {
	SubmissionSynced(id string)
	SubmissionFailed(id, lastError string)
	StorageFailure(id string, err error)
	SweepDone(attempted, delivered int)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) SubmissionSynced(string)         {}
func (NopNotifier) SubmissionFailed(string, string) {}
func (NopNotifier) StorageFailure(string, error)    {}
func (NopNotifier) SweepDone(int, int)              {}

// Options configures an Engine. Zero values pick the defaults.
type Options struct {
	MaxRetries     int
	BaseRetryDelay time.Duration
	Notifier       Notifier
	// StartOnline seeds the connectivity state before the first probe.
	StartOnline bool
}

// Engine owns the submission queue: it enqueues durably, attempts
// delivery, schedules backoff retries, and sweeps the backlog when
// connectivity returns. The store is the source of truth; the in-memory
// mirror only exists so reads never touch the database on the hot path.
type Engine struct {
	store    *store.Store
	sender   Sender
	notifier Notifier

	maxRetries     int
	baseRetryDelay time.Duration

	mu             sync.Mutex
	mirror         map[string]*models.SubmissionRecord
	inFlight       map[string]bool
	timers         map[string]*time.Timer
	online         bool
	syncInProgress bool
	closed         bool
}

// New creates an engine and restores any persisted records into the
// mirror. Records interrupted mid-retry come back exactly as stored;
// the first sweep picks them up.
func New(st *store.Store, sender Sender, opts Options) (*Engine, error) {
	if opts.MaxRetries == 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.BaseRetryDelay == 0 {
		opts.BaseRetryDelay = DefaultBaseRetryDelay
	}
	if opts.Notifier == nil {
		opts.Notifier = NopNotifier{}
	}

	e := &Engine{
		store:          st,
		sender:         sender,
		notifier:       opts.Notifier,
		maxRetries:     opts.MaxRetries,
		baseRetryDelay: opts.BaseRetryDelay,
		mirror:         make(map[string]*models.SubmissionRecord),
		inFlight:       make(map[string]bool),
		timers:         make(map[string]*time.Timer),
		online:         opts.StartOnline,
	}

	recs, err := st.GetAll()
	if err != nil {
		return nil, fmt.Errorf("restore queue: %w", err)
	}
	for _, rec := range recs {
		e.mirror[rec.ID] = rec
	}
	if len(recs) > 0 {
		slog.Debug("queue restored", "records", len(recs))
	}

	return e, nil
}

// Close stops all scheduled retries. It does not touch the store:
// pending records survive for the next run.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	for id, t := range e.timers {
		t.Stop()
		delete(e.timers, id)
	}
}

// Store returns the backing store. The engine does not own it; the
// caller that opened the store closes it after the engine.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Online reports the current connectivity state.
func (e *Engine) Online() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.online
}

// SetOnline records a connectivity transition. Going from offline to
// online triggers an immediate sweep of the backlog.
func (e *Engine) SetOnline(online bool) {
	e.mu.Lock()
	wasOnline := e.online
	e.online = online
	e.mu.Unlock()

	if online && !wasOnline {
		slog.Debug("connectivity restored, sweeping queue")
		go e.Sweep()
	}
}

// Enqueue durably stores a new submission and returns its ID. The
// write to the store happens before Enqueue returns; if it fails the
// record is not admitted to the mirror and the StorageError propagates.
// When online, a delivery attempt starts in the background.
func (e *Engine) Enqueue(payload json.RawMessage) (string, error) {
	id, err := store.GenerateID()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}

	e.mu.Lock()
	online := e.online
	e.mu.Unlock()

	rec := &models.SubmissionRecord{
		ID:             id,
		Payload:        payload,
		Status:         models.StatusPending,
		CreatedAt:      time.Now().UTC(),
		CreatedOffline: !online,
	}

	if err := e.store.Put(rec); err != nil {
		slog.Warn("enqueue: durable write failed", "id", id, "err", err)
		e.notifier.StorageFailure(id, err)
		return "", err
	}

	e.mu.Lock()
	e.mirror[id] = rec
	e.mu.Unlock()

	slog.Debug("submission enqueued", "id", id, "offline", !online)

	if online {
		go e.AttemptSend(id)
	}
	return id, nil
}

// AttemptSend tries to deliver one record. Returns true only when the
// collector acknowledged it. An absent ID is a no-op returning false:
// a discard or a concurrent delivery may have raced this attempt out.
// A record already in flight is likewise left alone.
func (e *Engine) AttemptSend(id string) bool {
	e.mu.Lock()
	rec, ok := e.mirror[id]
	if !ok || e.inFlight[id] || rec.Status == models.StatusFailed {
		e.mu.Unlock()
		return false
	}
	e.inFlight[id] = true
	payload := make(json.RawMessage, len(rec.Payload))
	copy(payload, rec.Payload)
	e.mu.Unlock()

	_, err := e.sender.Submit(payload)
	if err == nil {
		e.finishDelivered(id)
		return true
	}
	e.finishFailed(id, err)
	return false
}

// finishDelivered removes a delivered record everywhere. Synced records
// leave no tombstone.
func (e *Engine) finishDelivered(id string) {
	if err := e.store.Delete(id); err != nil {
		// The collector has the data; a leftover row only means a
		// duplicate-tolerated resend later
		slog.Warn("delete after delivery failed", "id", id, "err", err)
	}

	e.mu.Lock()
	delete(e.mirror, id)
	delete(e.inFlight, id)
	if t, ok := e.timers[id]; ok {
		t.Stop()
		delete(e.timers, id)
	}
	e.mu.Unlock()

	slog.Debug("submission delivered", "id", id)
	e.notifier.SubmissionSynced(id)
}

// finishFailed records a failed attempt: bump the retry count, persist
// the new state, then either schedule the next backoff or park the
// record as failed.
func (e *Engine) finishFailed(id string, sendErr error) {
	e.mu.Lock()
	rec, ok := e.mirror[id]
	if !ok {
		// Discarded while the request was in flight
		delete(e.inFlight, id)
		e.mu.Unlock()
		return
	}

	now := time.Now().UTC()
	rec.RetryCount++
	rec.LastError = sendErr.Error()
	rec.LastRetryAt = &now
	if rec.RetryCount >= e.maxRetries {
		rec.Status = models.StatusFailed
	} else {
		rec.Status = models.StatusRetrying
	}
	delete(e.inFlight, id)
	persisted := rec.Clone()
	failed := rec.Status == models.StatusFailed
	retryCount := rec.RetryCount
	e.mu.Unlock()

	if err := e.store.Put(persisted); err != nil {
		slog.Warn("persist retry state failed", "id", id, "err", err)
	}

	// A discard racing this persist wins: drop the row it already removed
	e.mu.Lock()
	_, live := e.mirror[id]
	e.mu.Unlock()
	if !live {
		e.store.Delete(id)
		return
	}

	if failed {
		slog.Warn("submission failed permanently", "id", id, "retries", retryCount, "err", sendErr)
		e.notifier.SubmissionFailed(id, sendErr.Error())
		return
	}

	delay := e.backoffDelay(retryCount)
	slog.Debug("submission retry scheduled", "id", id, "attempt", retryCount, "delay", delay)
	e.scheduleRetry(id, delay)
}

// Sweep walks the backlog sequentially and attempts every pending or
// retrying record once. A no-op while another sweep runs, while
// offline, or when the queue is empty. Returns attempted and delivered
// counts.
func (e *Engine) Sweep() (attempted, delivered int) {
	e.mu.Lock()
	if e.syncInProgress || !e.online || len(e.mirror) == 0 || e.closed {
		e.mu.Unlock()
		return 0, 0
	}
	e.syncInProgress = true
	ids := e.sweepOrderLocked()
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.syncInProgress = false
		e.mu.Unlock()
		e.notifier.SweepDone(attempted, delivered)
	}()

	for _, id := range ids {
		e.mu.Lock()
		rec, ok := e.mirror[id]
		online := e.online
		e.mu.Unlock()
		if !online {
			break
		}
		if !ok || rec.Status == models.StatusFailed {
			continue
		}
		attempted++
		if e.AttemptSend(id) {
			delivered++
		}
	}

	slog.Debug("sweep finished", "attempted", attempted, "delivered", delivered)
	return attempted, delivered
}

// sweepOrderLocked returns queue IDs oldest-first. Callers hold e.mu.
func (e *Engine) sweepOrderLocked() []string {
	ids := make([]string, 0, len(e.mirror))
	for id := range e.mirror {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return e.mirror[ids[i]].CreatedAt.Before(e.mirror[ids[j]].CreatedAt)
	})
	return ids
}

// RetryNow resets a record's retry budget and attempts delivery
// immediately. Refused while offline so the reset is not silently
// burned on a guaranteed failure.
func (e *Engine) RetryNow(id string) error {
	id = store.NormalizeID(id)

	e.mu.Lock()
	if !e.online {
		e.mu.Unlock()
		return ErrOffline
	}
	rec, ok := e.mirror[id]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	if t, ok := e.timers[id]; ok {
		t.Stop()
		delete(e.timers, id)
	}
	rec.Status = models.StatusPending
	rec.RetryCount = 0
	rec.LastError = ""
	persisted := rec.Clone()
	e.mu.Unlock()

	if err := e.store.Put(persisted); err != nil {
		return err
	}

	slog.Debug("manual retry", "id", id)
	e.AttemptSend(id)
	return nil
}

// Discard removes a record unconditionally, cancelling any scheduled
// retry so a stale timer cannot resurrect it. Confirmation prompts
// belong to the caller.
func (e *Engine) Discard(id string) error {
	id = store.NormalizeID(id)

	e.mu.Lock()
	if _, ok := e.mirror[id]; !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	delete(e.mirror, id)
	delete(e.inFlight, id)
	if t, ok := e.timers[id]; ok {
		t.Stop()
		delete(e.timers, id)
	}
	e.mu.Unlock()

	if err := e.store.Delete(id); err != nil {
		return err
	}
	slog.Debug("submission discarded", "id", id)
	return nil
}

// Get returns a copy of one queued record.
func (e *Engine) Get(id string) (*models.SubmissionRecord, error) {
	id = store.NormalizeID(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.mirror[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return rec.Clone(), nil
}

// Records returns copies of all queued records, oldest first.
func (e *Engine) Records() []*models.SubmissionRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	recs := make([]*models.SubmissionRecord, 0, len(e.mirror))
	for _, id := range e.sweepOrderLocked() {
		recs = append(recs, e.mirror[id].Clone())
	}
	return recs
}

// Stats summarises queue state for status displays.
func (e *Engine) Stats() models.QueueStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := models.QueueStats{
		Total:          len(e.mirror),
		ByStatus:       make(map[models.Status]int),
		Online:         e.online,
		SyncInProgress: e.syncInProgress,
	}
	for _, rec := range e.mirror {
		stats.ByStatus[rec.Status]++
	}
	return stats
}
