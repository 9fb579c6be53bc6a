package queue

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item. Completed items are removed
// from the queue rather than retained in a terminal state.
type Status string

const (
	StatusPending Status = "pending"
	StatusSyncing Status = "syncing"
	StatusFailed  Status = "failed"
)

// MaxAttemptsMessage is the error message recorded when an item is abandoned
// because its attempt ceiling was reached.
const MaxAttemptsMessage = "Max attempts reached"

var allStatuses = []Status{
	StatusPending,
	StatusSyncing,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Operation identifies the kind of mutation a queue item carries.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// ParseOperation converts a string into a known Operation.
func ParseOperation(value string) (Operation, bool) {
	normalized := Operation(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case OpCreate, OpUpdate, OpDelete:
		return normalized, true
	}
	return "", false
}

// Item represents one pending mutation awaiting delivery to the backend.
type Item struct {
	ID           string          `json:"id"`
	TableName    string          `json:"table_name"`
	RecordID     string          `json:"record_id"`
	Operation    Operation       `json:"operation"`
	Data         json.RawMessage `json:"data,omitempty"`
	Status       Status          `json:"status"`
	Attempts     int             `json:"attempts"`
	MaxAttempts  int             `json:"max_attempts"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Priority     int             `json:"priority"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Exhausted reports whether the item has reached its attempt ceiling and must
// never be submitted for delivery again.
func (i Item) Exhausted() bool {
	return i.Attempts >= i.MaxAttempts
}

// Spec describes a mutation to enqueue. ID, status, attempt count, and
// creation time are assigned by the store.
type Spec struct {
	TableName   string
	RecordID    string
	Operation   Operation
	Data        json.RawMessage
	Priority    int
	MaxAttempts int
}

// Validate checks that the spec identifies a deliverable mutation.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.TableName) == "" {
		return errors.New("table name is required")
	}
	if strings.TrimSpace(s.RecordID) == "" {
		return errors.New("record id is required")
	}
	if _, ok := ParseOperation(string(s.Operation)); !ok {
		return errors.New("operation must be create, update, or delete")
	}
	if s.MaxAttempts < 0 {
		return errors.New("max attempts must not be negative")
	}
	return nil
}

// Stats aggregates queue counts per status.
type Stats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Syncing int `json:"syncing"`
	Failed  int `json:"failed"`
}
