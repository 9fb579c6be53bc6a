package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"fieldsync/internal/kvstore"
	"fieldsync/internal/logging"
)

// queueKey is the fixed kvstore key the serialized queue lives under.
const queueKey = "sync_queue"

// ErrNotFound indicates the referenced queue item does not exist.
var ErrNotFound = errors.New("queue item not found")

// ErrClosed indicates the store has been closed.
var ErrClosed = errors.New("queue store closed")

// Store owns the durable mutation queue. All mutating operations are funneled
// through a single writer goroutine so they execute in strict program order
// even under concurrent callers; reads bypass the writer and load the
// persisted state directly.
type Store struct {
	kv                 kvstore.Store
	logger             *slog.Logger
	defaultMaxAttempts int

	writes chan writeOp
	done   chan struct{}

	closeMu sync.RWMutex
	closed  bool
}

type writeOp struct {
	apply func(items []Item) ([]Item, any, error)
	reply chan writeResult
}

type writeResult struct {
	value any
	err   error
}

// NewStore constructs a queue store over the provided blob storage and starts
// its writer. defaultMaxAttempts is applied to specs that leave MaxAttempts
// unset.
func NewStore(kv kvstore.Store, logger *slog.Logger, defaultMaxAttempts int) *Store {
	if defaultMaxAttempts <= 0 {
		defaultMaxAttempts = 3
	}
	s := &Store{
		kv:                 kv,
		logger:             logging.NewComponentLogger(logger, "queue-store"),
		defaultMaxAttempts: defaultMaxAttempts,
		writes:             make(chan writeOp, 64),
		done:               make(chan struct{}),
	}
	go s.runWriter()
	return s
}

// Close stops the writer after draining already-submitted writes. It does not
// close the underlying blob store.
func (s *Store) Close() error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return nil
	}
	s.closed = true
	close(s.writes)
	s.closeMu.Unlock()

	<-s.done
	return nil
}

func (s *Store) runWriter() {
	defer close(s.done)
	for op := range s.writes {
		op.reply <- s.applyWrite(op)
	}
}

// applyWrite executes one link of the write chain. Errors and panics are
// reported to the submitting caller only; the chain keeps draining.
func (s *Store) applyWrite(op writeOp) (res writeResult) {
	defer func() {
		if r := recover(); r != nil {
			res = writeResult{err: fmt.Errorf("queue write panicked: %v", r)}
			s.logger.Error("queue write panicked",
				logging.Any("panic", r),
				logging.String(logging.FieldEventType, "queue_write_panic"),
			)
		}
	}()

	ctx := context.Background()
	items, err := s.load(ctx)
	if err != nil {
		return writeResult{err: err}
	}
	next, value, err := op.apply(items)
	if err != nil {
		return writeResult{value: value, err: err}
	}
	if next != nil {
		if err := s.save(ctx, next); err != nil {
			return writeResult{err: err}
		}
	}
	return writeResult{value: value}
}

// submit appends a write after the current tail of the chain and waits for it.
// When the caller's context expires the write still executes in order; only
// the wait is abandoned.
func (s *Store) submit(ctx context.Context, apply func(items []Item) ([]Item, any, error)) (any, error) {
	op := writeOp{apply: apply, reply: make(chan writeResult, 1)}

	s.closeMu.RLock()
	if s.closed {
		s.closeMu.RUnlock()
		return nil, ErrClosed
	}
	select {
	case s.writes <- op:
		s.closeMu.RUnlock()
	case <-ctx.Done():
		s.closeMu.RUnlock()
		return nil, ctx.Err()
	}

	select {
	case res := <-op.reply:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Enqueue assigns a fresh unique id, persists the mutation with pending
// status, and returns the stored item.
func (s *Store) Enqueue(ctx context.Context, spec Spec) (*Item, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("enqueue: %w", err)
	}

	maxAttempts := spec.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = s.defaultMaxAttempts
	}
	item := Item{
		ID:          uuid.NewString(),
		TableName:   spec.TableName,
		RecordID:    spec.RecordID,
		Operation:   spec.Operation,
		Data:        spec.Data,
		Status:      StatusPending,
		MaxAttempts: maxAttempts,
		Priority:    spec.Priority,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := s.submit(ctx, func(items []Item) ([]Item, any, error) {
		return append(items, item), nil, nil
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue: %w", err)
	}

	s.logger.Debug("mutation enqueued",
		logging.String(logging.FieldItemID, item.ID),
		logging.String(logging.FieldTable, item.TableName),
		logging.String(logging.FieldRecordID, item.RecordID),
		logging.String(logging.FieldOperation, string(item.Operation)),
	)
	stored := item
	return &stored, nil
}

// MarkSyncing transitions an item to the syncing status.
func (s *Store) MarkSyncing(ctx context.Context, id string) error {
	_, err := s.submit(ctx, func(items []Item) ([]Item, any, error) {
		idx := indexOf(items, id)
		if idx < 0 {
			return nil, nil, fmt.Errorf("mark syncing %s: %w", id, ErrNotFound)
		}
		items[idx].Status = StatusSyncing
		return items, nil, nil
	})
	return err
}

// MarkCompleted removes the item from the queue entirely.
func (s *Store) MarkCompleted(ctx context.Context, id string) error {
	_, err := s.submit(ctx, func(items []Item) ([]Item, any, error) {
		idx := indexOf(items, id)
		if idx < 0 {
			return nil, nil, fmt.Errorf("mark completed %s: %w", id, ErrNotFound)
		}
		return append(items[:idx], items[idx+1:]...), nil, nil
	})
	return err
}

// MarkFailed increments the attempt count, records the failure reason, and
// sets the failed status. A missing id is a no-op, not an error.
func (s *Store) MarkFailed(ctx context.Context, id, message string) error {
	_, err := s.submit(ctx, func(items []Item) ([]Item, any, error) {
		idx := indexOf(items, id)
		if idx < 0 {
			return nil, nil, nil
		}
		items[idx].Status = StatusFailed
		items[idx].Attempts++
		items[idx].ErrorMessage = message
		return items, nil, nil
	})
	return err
}

// RetryFailed moves failed items back to pending for another delivery pass.
// Items at their attempt ceiling are left untouched. An empty id list retries
// every eligible failed item. Returns the number of items transitioned.
func (s *Store) RetryFailed(ctx context.Context, ids ...string) (int, error) {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	value, err := s.submit(ctx, func(items []Item) ([]Item, any, error) {
		updated := 0
		for i := range items {
			if items[i].Status != StatusFailed || items[i].Exhausted() {
				continue
			}
			if len(wanted) > 0 {
				if _, ok := wanted[items[i].ID]; !ok {
					continue
				}
			}
			items[i].Status = StatusPending
			items[i].ErrorMessage = ""
			updated++
		}
		if updated == 0 {
			return nil, 0, nil
		}
		return items, updated, nil
	})
	if err != nil {
		return 0, fmt.Errorf("retry failed items: %w", err)
	}
	count, _ := value.(int)
	return count, nil
}

// ClearFailed removes failed items from the queue. Returns the number removed.
func (s *Store) ClearFailed(ctx context.Context) (int, error) {
	value, err := s.submit(ctx, func(items []Item) ([]Item, any, error) {
		kept := items[:0]
		removed := 0
		for _, item := range items {
			if item.Status == StatusFailed {
				removed++
				continue
			}
			kept = append(kept, item)
		}
		if removed == 0 {
			return nil, 0, nil
		}
		return kept, removed, nil
	})
	if err != nil {
		return 0, fmt.Errorf("clear failed items: %w", err)
	}
	count, _ := value.(int)
	return count, nil
}

// List returns all items currently in the queue in insertion order.
func (s *Store) List(ctx context.Context) ([]*Item, error) {
	items, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Item, 0, len(items))
	for i := range items {
		item := items[i]
		out = append(out, &item)
	}
	return out, nil
}

// ListPending returns pending items ordered by priority (highest first), then
// creation time, then id. The sync engine drains items in this order.
func (s *Store) ListPending(ctx context.Context) ([]*Item, error) {
	items, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Item, 0, len(items))
	for i := range items {
		if items[i].Status != StatusPending {
			continue
		}
		item := items[i]
		out = append(out, &item)
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Priority != out[b].Priority {
			return out[a].Priority > out[b].Priority
		}
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.Before(out[b].CreatedAt)
		}
		return out[a].ID < out[b].ID
	})
	return out, nil
}

// Get returns a single item by id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Item, error) {
	items, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if idx := indexOf(items, id); idx >= 0 {
		item := items[idx]
		return &item, nil
	}
	return nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
}

// Stats returns counts of items grouped by status.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	items, err := s.load(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{Total: len(items)}
	for i := range items {
		switch items[i].Status {
		case StatusPending:
			stats.Pending++
		case StatusSyncing:
			stats.Syncing++
		case StatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

func (s *Store) load(ctx context.Context) ([]Item, error) {
	blob, ok, err := s.kv.Get(ctx, queueKey)
	if err != nil {
		return nil, fmt.Errorf("load queue: %w", err)
	}
	if !ok || len(blob) == 0 {
		return nil, nil
	}
	var items []Item
	if err := json.Unmarshal(blob, &items); err != nil {
		return nil, fmt.Errorf("decode queue: %w", err)
	}
	return items, nil
}

func (s *Store) save(ctx context.Context, items []Item) error {
	blob, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}
	if err := s.kv.Set(ctx, queueKey, blob); err != nil {
		return fmt.Errorf("save queue: %w", err)
	}
	return nil
}

func indexOf(items []Item, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}
