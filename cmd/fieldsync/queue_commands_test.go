package main

import (
	"testing"
	"time"

	"fieldsync/internal/ipc"
)

func TestEnqueueListSyncFlow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"enqueue", "responses", "rec-1", "--op", "create", "--data", `{"answer":42}`}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	requireContains(t, out, "Queued create responses/rec-1")

	out, _, err = runCLI(t, []string{"queue", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "responses")
	requireContains(t, out, "rec-1")
	requireContains(t, out, "pending")

	out, _, err = runCLI(t, []string{"queue", "stats"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue stats: %v", err)
	}
	requireContains(t, out, "Pending")

	out, _, err = runCLI(t, []string{"sync"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	requireContains(t, out, "1 synced, 0 failed")

	out, _, err = runCLI(t, []string{"queue", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list after sync: %v", err)
	}
	requireContains(t, out, "Queue is empty")
}

func TestQueueRetryAndClearFailed(t *testing.T) {
	env := setupCLITestEnv(t)
	env.deliverer.setFailAll(true)

	if _, _, err := runCLI(t, []string{"enqueue", "responses", "rec-1"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, _, err := runCLI(t, []string{"sync"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("sync: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "retry"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue retry: %v", err)
	}
	requireContains(t, out, "Reset 1 item(s) to pending")

	if _, _, err := runCLI(t, []string{"sync"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("second sync: %v", err)
	}

	out, _, err = runCLI(t, []string{"queue", "clear-failed"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue clear-failed: %v", err)
	}
	requireContains(t, out, "Removed 1 failed item(s)")
}

func TestEnqueueRejectsInvalidData(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"enqueue", "responses", "rec-1", "--data", "{not json"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected invalid JSON payload to be rejected")
	}
}

func TestBuildQueueListRows(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	rows := buildQueueListRows([]ipc.QueueItem{
		{
			ID:          "0f4d2a88-3f6e-4cf0-9f62-1f8f3f1c9ab2",
			TableName:   "responses",
			RecordID:    "rec-1",
			Operation:   "create",
			Status:      "pending",
			Attempts:    1,
			MaxAttempts: 3,
			Priority:    5,
			CreatedAt:   created,
		},
	})
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	if row[0] != "0f4d2a88" {
		t.Fatalf("expected truncated id, got %q", row[0])
	}
	if row[5] != "1/3" {
		t.Fatalf("expected attempts 1/3, got %q", row[5])
	}
	if row[6] != "5" {
		t.Fatalf("expected priority 5, got %q", row[6])
	}
}
