package testsupport

import (
	"context"
	"encoding/json"
	"testing"

	"fieldsync/internal/config"
	"fieldsync/internal/kvstore"
	"fieldsync/internal/logging"
	"fieldsync/internal/queue"
)

// MustOpenStore opens a SQLite-backed queue.Store for tests and registers
// cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	kv, err := kvstore.Open(cfg)
	if err != nil {
		t.Fatalf("kvstore.Open: %v", err)
	}
	store := queue.NewStore(kv, logging.NewNop(), cfg.Sync.MaxAttempts)
	t.Cleanup(func() {
		store.Close()
		kv.Close()
	})
	return store
}

// NewMemoryStore builds a queue.Store over an in-memory blob store.
func NewMemoryStore(t testing.TB) *queue.Store {
	t.Helper()

	store := queue.NewStore(kvstore.NewMemory(), logging.NewNop(), 3)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustEnqueue adds an item for tests using the provided store.
func MustEnqueue(t testing.TB, store *queue.Store, table, recordID string, op queue.Operation) *queue.Item {
	t.Helper()

	item, err := store.Enqueue(context.Background(), queue.Spec{
		TableName: table,
		RecordID:  recordID,
		Operation: op,
		Data:      json.RawMessage(`{"value":1}`),
	})
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return item
}
