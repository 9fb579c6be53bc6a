package syncer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"fieldsync/internal/events"
	"fieldsync/internal/logging"
	"fieldsync/internal/queue"
)

type fakeStore struct {
	mu        sync.Mutex
	pending   []*queue.Item
	listCalls int
	listErr   error
	syncing   []string
	completed []string
	failed    map[string]string
	markErr   error
	statsErr  error
	panicOn   string
}

func newFakeStore(items ...*queue.Item) *fakeStore {
	return &fakeStore{pending: items, failed: make(map[string]string)}
}

func (f *fakeStore) ListPending(ctx context.Context) ([]*queue.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*queue.Item, len(f.pending))
	copy(out, f.pending)
	return out, nil
}

func (f *fakeStore) MarkSyncing(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncing = append(f.syncing, id)
	return f.markErr
}

func (f *fakeStore) MarkCompleted(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOn == id {
		panic("storage wedged")
	}
	f.completed = append(f.completed, id)
	f.removeLocked(id)
	return nil
}

func (f *fakeStore) MarkFailed(ctx context.Context, id, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id] = message
	f.removeLocked(id)
	return nil
}

func (f *fakeStore) Stats(ctx context.Context) (queue.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statsErr != nil {
		return queue.Stats{}, f.statsErr
	}
	return queue.Stats{Total: len(f.pending), Pending: len(f.pending)}, nil
}

func (f *fakeStore) removeLocked(id string) {
	for i, item := range f.pending {
		if item.ID == id {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			return
		}
	}
}

type fakeDeliverer struct {
	mu        sync.Mutex
	delivered []string
	failIDs   map[string]error
	panicID   string
	block     chan struct{}
	onDeliver func()
	finalized int
	finalErr  error
}

func (f *fakeDeliverer) Deliver(ctx context.Context, item *queue.Item) error {
	if f.block != nil {
		<-f.block
	}
	if item.ID == f.panicID {
		panic("backend exploded")
	}
	if err, ok := f.failIDs[item.ID]; ok {
		return err
	}
	if f.onDeliver != nil {
		f.onDeliver()
	}
	f.mu.Lock()
	f.delivered = append(f.delivered, item.ID)
	f.mu.Unlock()
	return nil
}

func (f *fakeDeliverer) FinalizePending(ctx context.Context) error {
	f.mu.Lock()
	f.finalized++
	f.mu.Unlock()
	return f.finalErr
}

type fakeChecker struct {
	online   bool
	checkErr error
}

func (f *fakeChecker) IsConnected() bool { return f.online }

func (f *fakeChecker) Check(ctx context.Context) (bool, error) {
	if f.checkErr != nil {
		return false, f.checkErr
	}
	return f.online, nil
}

func (f *fakeChecker) OnChange(fn func(bool)) func() { return func() {} }

func pendingItem(id string) *queue.Item {
	return &queue.Item{
		ID:          id,
		TableName:   "responses",
		RecordID:    "rec-" + id,
		Operation:   queue.OpCreate,
		Status:      queue.StatusPending,
		MaxAttempts: 3,
		CreatedAt:   time.Now().UTC(),
	}
}

func noFollowup(time.Duration, func()) func() {
	return func() {}
}

func newTestEngine(store QueueStore, deliverer *fakeDeliverer, checker *fakeChecker, bus *events.Bus, opts ...Option) *Engine {
	opts = append([]Option{WithScheduler(noFollowup)}, opts...)
	return NewEngine(store, deliverer, checker, bus, logging.NewNop(), opts...)
}

func TestRunDrainsAllPendingItems(t *testing.T) {
	store := newFakeStore(pendingItem("a"), pendingItem("b"), pendingItem("c"))
	deliverer := &fakeDeliverer{}
	bus := events.NewBus()

	var kinds []events.Kind
	bus.Subscribe(func(ev events.Event) { kinds = append(kinds, ev.Kind) })

	engine := newTestEngine(store, deliverer, &fakeChecker{online: true}, bus)
	res := engine.Run(context.Background())

	if res.Status != RunCompleted {
		t.Fatalf("status = %s, want %s", res.Status, RunCompleted)
	}
	if res.Synced != 3 || res.Failed != 0 {
		t.Fatalf("synced=%d failed=%d, want 3/0", res.Synced, res.Failed)
	}
	if len(store.completed) != 3 {
		t.Fatalf("completed %d items, want 3", len(store.completed))
	}
	if deliverer.finalized != 1 {
		t.Fatalf("finalize called %d times, want 1", deliverer.finalized)
	}
	want := []events.Kind{
		events.KindStarted,
		events.KindItemSynced, events.KindItemSynced, events.KindItemSynced,
		events.KindCompleted,
	}
	if len(kinds) != len(want) {
		t.Fatalf("got %d events, want %d: %v", len(kinds), len(want), kinds)
	}
	for i, kind := range want {
		if kinds[i] != kind {
			t.Fatalf("event[%d] = %s, want %s", i, kinds[i], kind)
		}
	}
	if engine.LastSync().IsZero() {
		t.Fatal("expected LastSync to be recorded")
	}
}

func TestRunOneFailureDoesNotAbortBatch(t *testing.T) {
	store := newFakeStore(pendingItem("a"), pendingItem("b"), pendingItem("c"))
	deliverer := &fakeDeliverer{failIDs: map[string]error{"b": errors.New("validation failed")}}
	engine := newTestEngine(store, deliverer, &fakeChecker{online: true}, events.NewBus())

	res := engine.Run(context.Background())

	if res.Synced != 2 || res.Failed != 1 {
		t.Fatalf("synced=%d failed=%d, want 2/1", res.Synced, res.Failed)
	}
	if msg := store.failed["b"]; !strings.Contains(msg, "validation failed") {
		t.Fatalf("failure message = %q, want delivery reason", msg)
	}
	if len(deliverer.delivered) != 2 {
		t.Fatalf("delivered %d items, want 2", len(deliverer.delivered))
	}
	if res.Status != RunCompleted {
		t.Fatalf("status = %s, want %s", res.Status, RunCompleted)
	}
}

func TestRunRejectsConcurrentTrigger(t *testing.T) {
	store := newFakeStore(pendingItem("a"))
	deliverer := &fakeDeliverer{block: make(chan struct{})}
	engine := newTestEngine(store, deliverer, &fakeChecker{online: true}, events.NewBus())

	firstDone := make(chan Result, 1)
	go func() { firstDone <- engine.Run(context.Background()) }()

	waitFor(t, engine.IsSyncing)

	second := engine.Run(context.Background())
	if second.Status != RunRejected {
		t.Fatalf("second run status = %s, want %s", second.Status, RunRejected)
	}

	close(deliverer.block)
	first := <-firstDone
	if first.Status != RunCompleted {
		t.Fatalf("first run status = %s, want %s", first.Status, RunCompleted)
	}
	if store.listCalls != 1 {
		t.Fatalf("queue fetched %d times, want 1", store.listCalls)
	}
}

func TestRunSkipsWhenOffline(t *testing.T) {
	store := newFakeStore(pendingItem("a"))
	engine := newTestEngine(store, &fakeDeliverer{}, &fakeChecker{online: false}, events.NewBus())

	res := engine.Run(context.Background())

	if res.Status != RunOffline {
		t.Fatalf("status = %s, want %s", res.Status, RunOffline)
	}
	if store.listCalls != 0 {
		t.Fatal("offline run must not touch the queue")
	}
}

func TestRunSkipsWhenConnectivityCheckErrors(t *testing.T) {
	engine := newTestEngine(newFakeStore(), &fakeDeliverer{}, &fakeChecker{checkErr: errors.New("dns failure")}, events.NewBus())
	if res := engine.Run(context.Background()); res.Status != RunOffline {
		t.Fatalf("status = %s, want %s", res.Status, RunOffline)
	}
}

func TestRunAbandonsExhaustedItemsWithoutDelivery(t *testing.T) {
	spent := pendingItem("spent")
	spent.Attempts = 3
	store := newFakeStore(spent, pendingItem("fresh"))
	deliverer := &fakeDeliverer{}
	bus := events.NewBus()

	var failedEvents []events.Event
	bus.Subscribe(func(ev events.Event) {
		if ev.Kind == events.KindItemFailed {
			failedEvents = append(failedEvents, ev)
		}
	})

	engine := newTestEngine(store, deliverer, &fakeChecker{online: true}, bus)
	res := engine.Run(context.Background())

	if res.Synced != 1 || res.Failed != 1 {
		t.Fatalf("synced=%d failed=%d, want 1/1", res.Synced, res.Failed)
	}
	if msg := store.failed["spent"]; msg != queue.MaxAttemptsMessage {
		t.Fatalf("failure message = %q, want %q", msg, queue.MaxAttemptsMessage)
	}
	for _, id := range deliverer.delivered {
		if id == "spent" {
			t.Fatal("exhausted item must not be delivered")
		}
	}
	if len(failedEvents) != 1 || failedEvents[0].Error != queue.MaxAttemptsMessage {
		t.Fatalf("unexpected failure events: %+v", failedEvents)
	}
}

func TestDeliveryPanicIsContainedToItem(t *testing.T) {
	store := newFakeStore(pendingItem("a"), pendingItem("boom"), pendingItem("c"))
	deliverer := &fakeDeliverer{panicID: "boom"}
	engine := newTestEngine(store, deliverer, &fakeChecker{online: true}, events.NewBus())

	res := engine.Run(context.Background())

	if res.Synced != 2 || res.Failed != 1 {
		t.Fatalf("synced=%d failed=%d, want 2/1", res.Synced, res.Failed)
	}
	if msg := store.failed["boom"]; !strings.Contains(msg, "delivery panicked") {
		t.Fatalf("failure message = %q, want panic reason", msg)
	}
	if engine.IsSyncing() {
		t.Fatal("lock must be released after a contained panic")
	}
}

func TestStoragePanicReleasesLockAndEmitsCompleted(t *testing.T) {
	store := newFakeStore(pendingItem("a"))
	store.panicOn = "a"
	bus := events.NewBus()

	var completed *events.Event
	bus.Subscribe(func(ev events.Event) {
		if ev.Kind == events.KindCompleted {
			captured := ev
			completed = &captured
		}
	})

	engine := newTestEngine(store, &fakeDeliverer{}, &fakeChecker{online: true}, bus)
	res := engine.Run(context.Background())

	if engine.IsSyncing() {
		t.Fatal("lock must be released after a storage panic")
	}
	if completed == nil {
		t.Fatal("completed event must be emitted on the panic path")
	}
	if len(res.Errors) == 0 || !strings.Contains(res.Errors[0], "panicked") {
		t.Fatalf("result errors = %v, want panic record", res.Errors)
	}

	// The engine must accept a fresh run after the failure.
	if next := engine.Run(context.Background()); next.Status != RunCompleted {
		t.Fatalf("follow-on run status = %s, want %s", next.Status, RunCompleted)
	}
}

func TestRunFetchFailureCompletesWithError(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("database locked")
	engine := newTestEngine(store, &fakeDeliverer{}, &fakeChecker{online: true}, events.NewBus())

	res := engine.Run(context.Background())

	if res.Status != RunCompleted {
		t.Fatalf("status = %s, want %s", res.Status, RunCompleted)
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "database locked") {
		t.Fatalf("errors = %v, want fetch failure", res.Errors)
	}
	if engine.IsSyncing() {
		t.Fatal("lock must be released after a fetch failure")
	}
}

func TestFinalizeSkippedWhenNothingSynced(t *testing.T) {
	spent := pendingItem("spent")
	spent.Attempts = 3
	deliverer := &fakeDeliverer{}
	engine := newTestEngine(newFakeStore(spent), deliverer, &fakeChecker{online: true}, events.NewBus())

	engine.Run(context.Background())

	if deliverer.finalized != 0 {
		t.Fatalf("finalize called %d times, want 0", deliverer.finalized)
	}
	if !engine.LastSync().IsZero() {
		t.Fatal("LastSync must stay zero when nothing synced")
	}
}

func TestFinalizeFailureDoesNotAffectResult(t *testing.T) {
	deliverer := &fakeDeliverer{finalErr: errors.New("finalize unavailable")}
	engine := newTestEngine(newFakeStore(pendingItem("a")), deliverer, &fakeChecker{online: true}, events.NewBus())

	res := engine.Run(context.Background())

	if res.Synced != 1 || len(res.Errors) != 0 {
		t.Fatalf("synced=%d errors=%v, want 1 and none", res.Synced, res.Errors)
	}
}

func TestFollowupScheduledWhenWorkArrivesMidRun(t *testing.T) {
	store := newFakeStore(pendingItem("a"))
	enqueued := false
	deliverer := &fakeDeliverer{onDeliver: func() {
		// Simulate an enqueue racing with the drain.
		if !enqueued {
			enqueued = true
			store.mu.Lock()
			store.pending = append(store.pending, pendingItem("late"))
			store.mu.Unlock()
		}
	}}

	var scheduledDelay time.Duration
	var scheduledFn func()
	scheduler := func(delay time.Duration, fn func()) func() {
		scheduledDelay = delay
		scheduledFn = fn
		return func() {}
	}

	engine := NewEngine(store, deliverer, &fakeChecker{online: true}, events.NewBus(), logging.NewNop(),
		WithScheduler(scheduler), WithFollowupDelay(250*time.Millisecond))

	engine.Run(context.Background())

	if scheduledFn == nil {
		t.Fatal("expected a follow-up run to be scheduled")
	}
	if scheduledDelay != 250*time.Millisecond {
		t.Fatalf("follow-up delay = %s, want 250ms", scheduledDelay)
	}

	scheduledFn()
	if store.listCalls != 2 {
		t.Fatalf("queue fetched %d times, want 2 after follow-up", store.listCalls)
	}
}

func TestNoFollowupWhenQueueEmpty(t *testing.T) {
	var scheduled bool
	scheduler := func(delay time.Duration, fn func()) func() {
		scheduled = true
		return func() {}
	}
	engine := NewEngine(newFakeStore(pendingItem("a")), &fakeDeliverer{}, &fakeChecker{online: true},
		events.NewBus(), logging.NewNop(), WithScheduler(scheduler))

	engine.Run(context.Background())

	if scheduled {
		t.Fatal("no follow-up expected when the queue drained cleanly")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
