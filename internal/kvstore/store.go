package kvstore

import "context"

// Store is durable key-value blob storage. Implementations must keep a Set
// visible to any later Get across process restarts.
type Store interface {
	// Get returns the blob stored under key. The second result is false when
	// the key has never been set or was deleted.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key, replacing any previous blob.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases underlying resources.
	Close() error
}
