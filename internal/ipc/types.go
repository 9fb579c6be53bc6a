package ipc

import (
	"encoding/json"
	"time"
)

// QueueItem is the wire representation of a queue entry.
type QueueItem struct {
	ID           string          `json:"id"`
	TableName    string          `json:"table_name"`
	RecordID     string          `json:"record_id"`
	Operation    string          `json:"operation"`
	Data         json.RawMessage `json:"data,omitempty"`
	Status       string          `json:"status"`
	Attempts     int             `json:"attempts"`
	MaxAttempts  int             `json:"max_attempts"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Priority     int             `json:"priority"`
	CreatedAt    time.Time       `json:"created_at"`
}

// StatusRequest asks for daemon runtime information.
type StatusRequest struct{}

// StatusResponse carries daemon runtime information.
type StatusResponse struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	Syncing      bool           `json:"syncing"`
	Online       bool           `json:"online"`
	LastSync     time.Time      `json:"last_sync"`
	QueueStats   map[string]int `json:"queue_stats"`
	DatabasePath string         `json:"database_path"`
	LockPath     string         `json:"lock_path"`
}

// SyncRequest triggers an immediate sync run.
type SyncRequest struct{}

// SyncResponse reports the outcome of a sync run.
type SyncResponse struct {
	Status string   `json:"status"`
	Synced int      `json:"synced"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors,omitempty"`
}

// EnqueueRequest adds a mutation to the queue.
type EnqueueRequest struct {
	TableName string          `json:"table_name"`
	RecordID  string          `json:"record_id"`
	Operation string          `json:"operation"`
	Data      json.RawMessage `json:"data,omitempty"`
	Priority  int             `json:"priority"`
}

// EnqueueResponse returns the stored item.
type EnqueueResponse struct {
	Item QueueItem `json:"item"`
}

// QueueListRequest asks for queue items, optionally filtered by status.
type QueueListRequest struct {
	Statuses []string `json:"statuses,omitempty"`
}

// QueueListResponse carries queue items.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueStatsRequest asks for aggregate queue counters.
type QueueStatsRequest struct{}

// QueueStatsResponse carries aggregate queue counters.
type QueueStatsResponse struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Syncing int `json:"syncing"`
	Failed  int `json:"failed"`
}

// QueueRetryRequest resets failed items back to pending. An empty ID list
// retries every failed item.
type QueueRetryRequest struct {
	IDs []string `json:"ids,omitempty"`
}

// QueueRetryResponse reports the number of items reset.
type QueueRetryResponse struct {
	Updated int `json:"updated"`
}

// QueueClearFailedRequest removes failed items from the queue.
type QueueClearFailedRequest struct{}

// QueueClearFailedResponse reports the number of items removed.
type QueueClearFailedResponse struct {
	Removed int `json:"removed"`
}

// StopRequest asks the daemon to shut down background processing.
type StopRequest struct{}

// StopResponse confirms shutdown.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}
