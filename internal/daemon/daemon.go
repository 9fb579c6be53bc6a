package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"fieldsync/internal/config"
	"fieldsync/internal/connectivity"
	"fieldsync/internal/logging"
	"fieldsync/internal/queue"
	"fieldsync/internal/syncer"
)

// Network is the connectivity surface the daemon drives: the checker plus the
// background polling loop.
type Network interface {
	connectivity.Checker
	Watch(ctx context.Context)
}

// Daemon coordinates background syncing and enforces single-instance
// execution through a lock file.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *queue.Store
	engine  *syncer.Engine
	network Network

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	offHook func()
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool        `json:"running"`
	PID          int         `json:"pid"`
	Syncing      bool        `json:"syncing"`
	Online       bool        `json:"online"`
	LastSync     time.Time   `json:"last_sync"`
	Queue        queue.Stats `json:"queue"`
	DatabasePath string      `json:"database_path"`
	LockFilePath string      `json:"lock_file_path"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, engine *syncer.Engine, network Network, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || engine == nil || network == nil {
		return nil, errors.New("daemon requires config, store, engine, and network")
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		engine:   engine,
		network:  network,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the background loops. With
// automatic sync disabled, only the connectivity watcher runs and syncs wait
// for explicit triggers.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another fieldsync daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.network.Watch(runCtx)
	}()

	d.offHook = d.network.OnChange(func(online bool) {
		if !online || !d.cfg.Sync.Auto {
			return
		}
		d.logger.Info("connectivity restored, triggering sync",
			logging.String(logging.FieldEventType, "connectivity_restored"),
		)
		go d.engine.Run(runCtx)
	})

	if d.cfg.Sync.Auto {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.runPeriodic(runCtx)
		}()
	}

	d.running.Store(true)
	d.logger.Info("fieldsync daemon started",
		logging.String("lock", d.lockPath),
		logging.Bool("auto_sync", d.cfg.Sync.Auto),
	)
	return nil
}

// runPeriodic triggers a sync on a fixed interval. Runs that overlap an
// in-flight drain are rejected by the engine, so a slow backend cannot stack
// work.
func (d *Daemon) runPeriodic(ctx context.Context) {
	interval := time.Duration(d.cfg.Sync.Interval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.engine.Run(ctx)
		}
	}
}

// Stop halts background loops and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.offHook != nil {
		d.offHook()
		d.offHook = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	d.engine.Stop()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("fieldsync daemon stopped")
}

// Close stops the daemon and releases the queue store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Sync triggers an immediate sync run.
func (d *Daemon) Sync(ctx context.Context) syncer.Result {
	return d.engine.Run(ctx)
}

// Enqueue adds a mutation to the queue.
func (d *Daemon) Enqueue(ctx context.Context, spec queue.Spec) (*queue.Item, error) {
	return d.store.Enqueue(ctx, spec)
}

// ListQueue returns queue items in insertion order.
func (d *Daemon) ListQueue(ctx context.Context) ([]*queue.Item, error) {
	return d.store.List(ctx)
}

// QueueStats returns aggregate queue counters.
func (d *Daemon) QueueStats(ctx context.Context) (queue.Stats, error) {
	return d.store.Stats(ctx)
}

// RetryFailed resets failed items (optionally a subset) back to pending.
func (d *Daemon) RetryFailed(ctx context.Context, ids []string) (int, error) {
	return d.store.RetryFailed(ctx, ids...)
}

// ClearFailed removes failed items from the queue.
func (d *Daemon) ClearFailed(ctx context.Context) (int, error) {
	return d.store.ClearFailed(ctx)
}

// Status reports the current daemon state.
func (d *Daemon) Status(ctx context.Context) Status {
	stats, err := d.store.Stats(ctx)
	if err != nil {
		d.logger.Warn("failed to read queue stats", logging.Error(err))
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Syncing:      d.engine.IsSyncing(),
		Online:       d.network.IsConnected(),
		LastSync:     d.engine.LastSync(),
		Queue:        stats,
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
	}
}
