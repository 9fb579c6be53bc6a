package testsupport

import (
	"path/filepath"
	"testing"

	"fieldsync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Remote.BaseURL = "http://127.0.0.1:0"
	cfg.Remote.APIToken = "test-token"
	cfg.Connectivity.ProbeURL = "http://127.0.0.1:0/v1/ping"

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithBaseURL overrides the backend base URL on the test config.
func WithBaseURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Remote.BaseURL = url
		cfg.Connectivity.ProbeURL = url + "/v1/ping"
	}
}

// WithAutoSync toggles automatic background syncing on the test config.
func WithAutoSync(enabled bool) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Sync.Auto = enabled
	}
}
