package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fieldsync/internal/connectivity"
	"fieldsync/internal/events"
	"fieldsync/internal/logging"
	"fieldsync/internal/queue"
	"fieldsync/internal/remote"
)

// DefaultFollowupDelay is the pause before a follow-up run when pending work
// remains after a drain.
const DefaultFollowupDelay = 500 * time.Millisecond

// QueueStore captures the queue operations the engine drives.
type QueueStore interface {
	ListPending(ctx context.Context) ([]*queue.Item, error)
	MarkSyncing(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, message string) error
	Stats(ctx context.Context) (queue.Stats, error)
}

// Engine drains pending queue items against the backend, one at a time, under
// a single-flight lock. A run never panics outward and always releases the
// lock and emits its completion event, whatever fails inside.
type Engine struct {
	store    QueueStore
	remote   remote.Deliverer
	network  connectivity.Checker
	bus      *events.Bus
	logger   *slog.Logger
	delay    time.Duration
	schedule func(time.Duration, func()) func()

	mu       sync.Mutex
	syncing  bool
	lastSync time.Time
	followup func()
}

// Option configures optional Engine behavior.
type Option func(*Engine)

// WithFollowupDelay overrides the pause before a follow-up run.
func WithFollowupDelay(delay time.Duration) Option {
	return func(e *Engine) {
		if delay >= 0 {
			e.delay = delay
		}
	}
}

// WithScheduler replaces the one-shot timer used for follow-up runs. The
// scheduler must invoke fn once after the delay and return a cancel function.
// Used by tests to control timing.
func WithScheduler(schedule func(delay time.Duration, fn func()) (cancel func())) Option {
	return func(e *Engine) {
		if schedule != nil {
			e.schedule = schedule
		}
	}
}

// NewEngine constructs a sync engine. All collaborators are required except
// logger, which defaults to a no-op.
func NewEngine(store QueueStore, deliverer remote.Deliverer, network connectivity.Checker, bus *events.Bus, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		remote:  deliverer,
		network: network,
		bus:     bus,
		logger:  logging.NewComponentLogger(logger, "sync-engine"),
		delay:   DefaultFollowupDelay,
	}
	e.schedule = func(delay time.Duration, fn func()) func() {
		timer := time.AfterFunc(delay, fn)
		return func() { timer.Stop() }
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IsSyncing reports whether a run currently holds the single-flight lock.
func (e *Engine) IsSyncing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.syncing
}

// LastSync returns the time the most recent run synced at least one item, or
// the zero time when nothing has synced yet.
func (e *Engine) LastSync() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSync
}

// Stop cancels any scheduled follow-up run.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.followup
	e.followup = nil
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run drains all pending items. A run already in flight is rejected with no
// queue access; a failed fresh connectivity check skips the run entirely.
func (e *Engine) Run(ctx context.Context) Result {
	if e.IsSyncing() {
		return Result{Status: RunRejected}
	}

	online, err := e.network.Check(ctx)
	if err != nil {
		e.logger.Warn("connectivity check failed, skipping run",
			logging.Error(err),
			logging.String(logging.FieldEventType, "connectivity_check_failed"),
		)
		return Result{Status: RunOffline}
	}
	if !online {
		return Result{Status: RunOffline}
	}

	e.mu.Lock()
	if e.syncing {
		e.mu.Unlock()
		return Result{Status: RunRejected}
	}
	e.syncing = true
	e.mu.Unlock()

	return e.drain(ctx)
}

// drain holds the single-flight lock on entry and releases it in the deferred
// block below, which runs on every exit path including panics.
func (e *Engine) drain(ctx context.Context) (res Result) {
	res = Result{Status: RunCompleted}

	defer func() {
		if r := recover(); r != nil {
			message := fmt.Sprintf("sync run panicked: %v", r)
			res.Errors = append(res.Errors, message)
			e.logger.Error("sync run panicked",
				logging.Any("panic", r),
				logging.String(logging.FieldEventType, "sync_run_panic"),
			)
		}

		e.mu.Lock()
		e.syncing = false
		e.mu.Unlock()

		e.bus.Publish(events.Event{
			Kind:   events.KindCompleted,
			Synced: res.Synced,
			Failed: res.Failed,
			Errors: res.Errors,
		})

		e.maybeScheduleFollowup()
	}()

	e.bus.Publish(events.Event{Kind: events.KindStarted})
	e.logger.Info("sync run started")

	pending, err := e.store.ListPending(ctx)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		e.logger.Error("failed to fetch pending items",
			logging.Error(err),
			logging.String(logging.FieldEventType, "queue_fetch_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		return res
	}

	for _, item := range pending {
		if item.Exhausted() {
			e.abandonItem(ctx, item, &res)
			continue
		}
		e.deliverItem(ctx, item, &res)
	}

	if res.Synced > 0 {
		e.mu.Lock()
		e.lastSync = time.Now().UTC()
		e.mu.Unlock()

		// Best-effort bulk finalize; failure does not affect the result.
		if err := e.remote.FinalizePending(ctx); err != nil {
			e.logger.Debug("finalize pending failed", logging.Error(err))
		}
	}

	e.logger.Info("sync run finished",
		logging.Int("synced", res.Synced),
		logging.Int("failed", res.Failed),
	)
	return res
}

// abandonItem marks an item that reached its attempt ceiling as permanently
// failed without contacting the backend.
func (e *Engine) abandonItem(ctx context.Context, item *queue.Item, res *Result) {
	if err := e.store.MarkFailed(ctx, item.ID, queue.MaxAttemptsMessage); err != nil {
		res.Errors = append(res.Errors, err.Error())
		e.logger.Error("failed to mark abandoned item",
			logging.Error(err),
			logging.String(logging.FieldItemID, item.ID),
		)
	}
	res.Failed++
	e.bus.Publish(events.Event{Kind: events.KindItemFailed, Item: item, Error: queue.MaxAttemptsMessage})
	e.logger.Warn("item abandoned after max attempts",
		logging.String(logging.FieldItemID, item.ID),
		logging.String(logging.FieldTable, item.TableName),
		logging.Int("attempts", item.Attempts),
	)
}

// deliverItem pushes one item to the backend and records the outcome. Storage
// failures during bookkeeping are caught here so the batch keeps going.
func (e *Engine) deliverItem(ctx context.Context, item *queue.Item, res *Result) {
	if err := e.store.MarkSyncing(ctx, item.ID); err != nil {
		e.recordItemFailure(ctx, item, res, fmt.Sprintf("mark syncing: %v", err))
		return
	}

	if err := e.deliver(ctx, item); err != nil {
		reason := err.Error()
		if errors.Is(err, remote.ErrRejected) {
			e.logger.Warn("backend rejected item",
				logging.String(logging.FieldItemID, item.ID),
				logging.Error(err),
			)
		}
		e.recordItemFailure(ctx, item, res, reason)
		return
	}

	if err := e.store.MarkCompleted(ctx, item.ID); err != nil {
		// Delivered but not recorded; surface for inspection, keep draining.
		res.Errors = append(res.Errors, err.Error())
		e.logger.Error("failed to remove completed item",
			logging.Error(err),
			logging.String(logging.FieldItemID, item.ID),
			logging.String(logging.FieldErrorHint, "item may be redelivered on the next run"),
		)
	}
	res.Synced++
	e.bus.Publish(events.Event{Kind: events.KindItemSynced, Item: item})
	e.logger.Debug("item synced",
		logging.String(logging.FieldItemID, item.ID),
		logging.String(logging.FieldTable, item.TableName),
		logging.String(logging.FieldOperation, string(item.Operation)),
	)
}

// deliver invokes the backend, converting a panic into an error so one item
// cannot abort the batch.
func (e *Engine) deliver(ctx context.Context, item *queue.Item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("delivery panicked: %v", r)
		}
	}()
	return e.remote.Deliver(ctx, item)
}

func (e *Engine) recordItemFailure(ctx context.Context, item *queue.Item, res *Result, reason string) {
	if err := e.store.MarkFailed(ctx, item.ID, reason); err != nil {
		res.Errors = append(res.Errors, err.Error())
		e.logger.Error("failed to record item failure",
			logging.Error(err),
			logging.String(logging.FieldItemID, item.ID),
		)
	}
	res.Failed++
	res.Errors = append(res.Errors, reason)
	e.bus.Publish(events.Event{Kind: events.KindItemFailed, Item: item, Error: reason})
}

// maybeScheduleFollowup runs after the lock is released. Work that arrived
// during the run gets picked up by a deferred one-shot timer instead of a
// synchronous loop, so rapid connectivity flaps cannot grow the call stack.
func (e *Engine) maybeScheduleFollowup() {
	stats, err := e.store.Stats(context.Background())
	if err != nil {
		e.logger.Warn("pending recheck failed, follow-up not scheduled",
			logging.Error(err),
			logging.String(logging.FieldEventType, "queue_stats_failed"),
		)
		return
	}
	if stats.Pending == 0 || !e.network.IsConnected() {
		return
	}

	e.mu.Lock()
	if e.followup != nil {
		e.followup()
	}
	e.followup = e.schedule(e.delay, func() {
		e.mu.Lock()
		e.followup = nil
		e.mu.Unlock()
		e.Run(context.Background())
	})
	e.mu.Unlock()

	e.logger.Debug("follow-up run scheduled",
		logging.Int("pending", stats.Pending),
		logging.Duration("delay", e.delay),
	)
}
