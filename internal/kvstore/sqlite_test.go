package kvstore_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"fieldsync/internal/kvstore"
)

func TestSQLiteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blobs.db")
	store, err := kvstore.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if _, ok, err := store.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected absent key, got ok=%v err=%v", ok, err)
	}

	if err := store.Set(ctx, "sync_queue", []byte(`[{"id":"a"}]`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value, ok, err := store.Get(ctx, "sync_queue")
	if err != nil || !ok {
		t.Fatalf("Get failed: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(value, []byte(`[{"id":"a"}]`)) {
		t.Fatalf("unexpected value %q", value)
	}

	if err := store.Set(ctx, "sync_queue", []byte(`[]`)); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	value, _, _ = store.Get(ctx, "sync_queue")
	if !bytes.Equal(value, []byte(`[]`)) {
		t.Fatalf("expected overwrite, got %q", value)
	}

	if err := store.Delete(ctx, "sync_queue"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "sync_queue"); ok {
		t.Fatal("expected key removed")
	}
	// Deleting again must not error.
	if err := store.Delete(ctx, "sync_queue"); err != nil {
		t.Fatalf("repeat Delete failed: %v", err)
	}
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blobs.db")
	ctx := context.Background()

	store, err := kvstore.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath failed: %v", err)
	}
	if err := store.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := kvstore.OpenPath(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()
	value, ok, err := reopened.Get(ctx, "k")
	if err != nil || !ok || string(value) != "v" {
		t.Fatalf("expected persisted value, got %q ok=%v err=%v", value, ok, err)
	}
}

func TestEnsureDeviceIDStable(t *testing.T) {
	store := kvstore.NewMemory()
	ctx := context.Background()

	first, err := kvstore.EnsureDeviceID(ctx, store)
	if err != nil {
		t.Fatalf("EnsureDeviceID failed: %v", err)
	}
	if first == "" {
		t.Fatal("expected generated device id")
	}
	second, err := kvstore.EnsureDeviceID(ctx, store)
	if err != nil {
		t.Fatalf("EnsureDeviceID failed: %v", err)
	}
	if second != first {
		t.Fatalf("device id changed between calls: %q vs %q", first, second)
	}
}
