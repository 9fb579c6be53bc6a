package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fieldsync/internal/config"
	"fieldsync/internal/queue"
)

const userAgent = "Fieldsync-Go/0.1.0"

// ErrRejected indicates the backend refused a mutation. The wrapped message
// carries the server-reported reason.
var ErrRejected = errors.New("remote rejected mutation")

// Deliverer accepts queued mutations one at a time.
type Deliverer interface {
	// Deliver submits a single mutation. A nil return means the backend
	// accepted it; a rejection is an error wrapping ErrRejected.
	Deliver(ctx context.Context, item *queue.Item) error
	// FinalizePending asks the backend to finalize everything delivered so
	// far. Best-effort; callers treat failures as non-fatal.
	FinalizePending(ctx context.Context) error
}

// Client delivers mutations to the sync backend over HTTPS.
type Client struct {
	baseURL  string
	token    string
	deviceID string
	client   *http.Client
}

// NewClient builds a backend client from configuration. deviceID tags every
// delivery so the backend can attribute mutations to this device.
func NewClient(cfg *config.Config, deviceID string) *Client {
	timeout := time.Duration(cfg.Remote.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.Remote.BaseURL, "/"),
		token:    cfg.Remote.APIToken,
		deviceID: deviceID,
		client:   &http.Client{Timeout: timeout},
	}
}

type deliverRequest struct {
	ID        string          `json:"id"`
	TableName string          `json:"table_name"`
	RecordID  string          `json:"record_id"`
	Operation string          `json:"operation"`
	Data      json.RawMessage `json:"data,omitempty"`
	DeviceID  string          `json:"device_id"`
	CreatedAt time.Time       `json:"created_at"`
}

type deliverResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Deliver submits one queued mutation to the backend.
func (c *Client) Deliver(ctx context.Context, item *queue.Item) error {
	if item == nil {
		return errors.New("item is nil")
	}

	body := deliverRequest{
		ID:        item.ID,
		TableName: item.TableName,
		RecordID:  item.RecordID,
		Operation: string(item.Operation),
		Data:      item.Data,
		DeviceID:  c.deviceID,
		CreatedAt: item.CreatedAt,
	}

	var result deliverResponse
	if err := c.post(ctx, "/v1/sync/records", body, &result); err != nil {
		return err
	}
	if !result.Success {
		reason := strings.TrimSpace(result.Error)
		if reason == "" {
			reason = "no reason given"
		}
		return fmt.Errorf("%w: %s", ErrRejected, reason)
	}
	return nil
}

// FinalizePending asks the backend to finalize delivered mutations in bulk.
func (c *Client) FinalizePending(ctx context.Context) error {
	payload := struct {
		DeviceID string `json:"device_id"`
	}{DeviceID: c.deviceID}

	var result deliverResponse
	if err := c.post(ctx, "/v1/sync/finalize", payload, &result); err != nil {
		return err
	}
	if !result.Success {
		reason := strings.TrimSpace(result.Error)
		if reason == "" {
			reason = "no reason given"
		}
		return fmt.Errorf("finalize pending: %s", reason)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload, result any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("backend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
