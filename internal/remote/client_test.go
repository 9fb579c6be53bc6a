package remote_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fieldsync/internal/config"
	"fieldsync/internal/queue"
	"fieldsync/internal/remote"
)

func newClient(t *testing.T, serverURL string) *remote.Client {
	t.Helper()
	cfg := config.Default()
	cfg.Remote.BaseURL = serverURL
	cfg.Remote.APIToken = "secret"
	cfg.Remote.RequestTimeout = 2
	return remote.NewClient(&cfg, "device-1")
}

func sampleItem() *queue.Item {
	return &queue.Item{
		ID:        "item-1",
		TableName: "surveys",
		RecordID:  "rec-1",
		Operation: queue.OpCreate,
		Data:      json.RawMessage(`{"answer":42}`),
	}
}

func TestDeliverSendsMutation(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/sync/records" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("missing bearer token, got %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	if err := client.Deliver(context.Background(), sampleItem()); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if captured["table_name"] != "surveys" || captured["record_id"] != "rec-1" {
		t.Fatalf("unexpected payload %v", captured)
	}
	if captured["device_id"] != "device-1" {
		t.Fatalf("expected device id in payload, got %v", captured["device_id"])
	}
}

func TestDeliverReportsRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "record conflict"})
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	err := client.Deliver(context.Background(), sampleItem())
	if !errors.Is(err, remote.ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
	if !strings.Contains(err.Error(), "record conflict") {
		t.Fatalf("expected server reason in error, got %v", err)
	}
}

func TestDeliverSurfacesHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	err := client.Deliver(context.Background(), sampleItem())
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestFinalizePending(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	if err := client.FinalizePending(context.Background()); err != nil {
		t.Fatalf("FinalizePending failed: %v", err)
	}
	if path != "/v1/sync/finalize" {
		t.Fatalf("unexpected path %s", path)
	}
}
