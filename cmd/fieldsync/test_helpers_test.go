package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"fieldsync/internal/config"
	"fieldsync/internal/daemon"
	"fieldsync/internal/events"
	"fieldsync/internal/ipc"
	"fieldsync/internal/logging"
	"fieldsync/internal/queue"
	"fieldsync/internal/syncer"
	"fieldsync/internal/testsupport"
)

type stubNetwork struct {
	mu     sync.Mutex
	online bool
}

func (s *stubNetwork) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

func (s *stubNetwork) Check(ctx context.Context) (bool, error) { return s.IsConnected(), nil }
func (s *stubNetwork) OnChange(fn func(bool)) func()           { return func() {} }
func (s *stubNetwork) Watch(ctx context.Context)               { <-ctx.Done() }

type stubDeliverer struct {
	mu      sync.Mutex
	failAll bool
	count   int
}

func (s *stubDeliverer) Deliver(ctx context.Context, item *queue.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return fmt.Errorf("backend unavailable")
	}
	s.count++
	return nil
}

func (s *stubDeliverer) FinalizePending(ctx context.Context) error { return nil }

func (s *stubDeliverer) setFailAll(fail bool) {
	s.mu.Lock()
	s.failAll = fail
	s.mu.Unlock()
}

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	daemon     *daemon.Daemon
	server     *ipc.Server
	deliverer  *stubDeliverer
	socketPath string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	cfg := testsupport.NewConfig(t, testsupport.WithAutoSync(false))

	configPath := filepath.Join(homeDir, ".config", "fieldsync", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	network := &stubNetwork{online: true}
	deliverer := &stubDeliverer{}
	engine := syncer.NewEngine(store, deliverer, network, events.NewBus(), logger,
		syncer.WithScheduler(func(time.Duration, func()) func() { return func() {} }))

	d, err := daemon.New(cfg, store, engine, network, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	socketPath := cfg.SocketPath()
	srv, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Close()
	})

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		daemon:     d,
		server:     srv,
		deliverer:  deliverer,
		socketPath: socketPath,
		configPath: configPath,
	}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\ndata_dir = %q\nlog_dir = %q\n\n[remote]\nbase_url = %q\napi_token = %q\n\n[sync]\nauto = false\n",
		cfg.Paths.DataDir,
		cfg.Paths.LogDir,
		cfg.Remote.BaseURL,
		cfg.Remote.APIToken,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
