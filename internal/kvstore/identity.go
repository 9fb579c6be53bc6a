package kvstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// deviceIDKey is the fixed key the device identity is stored under.
const deviceIDKey = "device_id"

// EnsureDeviceID returns the persisted device identity, generating and storing
// a fresh UUID on first use. Deliveries are tagged with this identifier so the
// backend can attribute mutations to a device.
func EnsureDeviceID(ctx context.Context, store Store) (string, error) {
	value, ok, err := store.Get(ctx, deviceIDKey)
	if err != nil {
		return "", fmt.Errorf("read device id: %w", err)
	}
	if ok {
		id := strings.TrimSpace(string(value))
		if id != "" {
			return id, nil
		}
	}

	id := uuid.NewString()
	if err := store.Set(ctx, deviceIDKey, []byte(id)); err != nil {
		return "", fmt.Errorf("persist device id: %w", err)
	}
	return id, nil
}
