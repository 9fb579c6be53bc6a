package connectivity

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"fieldsync/internal/config"
	"fieldsync/internal/logging"
)

// Checker reports device connectivity.
type Checker interface {
	// IsConnected returns the cached result of the most recent check.
	IsConnected() bool
	// Check performs a fresh probe and updates the cached state.
	Check(ctx context.Context) (bool, error)
	// OnChange registers a callback invoked when the cached state flips.
	// The returned function removes the callback.
	OnChange(func(online bool)) func()
}

// Probe checks connectivity by issuing HTTP requests against a probe URL.
type Probe struct {
	url      string
	client   *http.Client
	interval time.Duration
	logger   *slog.Logger

	online atomic.Bool

	mu        sync.Mutex
	nextID    int
	callbacks map[int]func(bool)
}

// NewProbe builds a connectivity probe from configuration.
func NewProbe(cfg *config.Config, logger *slog.Logger) *Probe {
	timeout := time.Duration(cfg.Connectivity.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	interval := time.Duration(cfg.Connectivity.CheckInterval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Probe{
		url:       cfg.Connectivity.ProbeURL,
		client:    &http.Client{Timeout: timeout},
		interval:  interval,
		logger:    logging.NewComponentLogger(logger, "connectivity"),
		callbacks: make(map[int]func(bool)),
	}
}

// IsConnected returns the cached state from the most recent check. A probe
// that has never checked reports offline.
func (p *Probe) IsConnected() bool {
	return p.online.Load()
}

// Check probes the configured URL and updates the cached state. Any transport
// error or 5xx response counts as offline.
func (p *Probe) Check(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return false, fmt.Errorf("build probe request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.setOnline(false)
		return false, nil
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	online := resp.StatusCode < 500
	p.setOnline(online)
	return online, nil
}

// OnChange registers a callback for connectivity transitions. Callbacks run
// synchronously on the goroutine that observed the change.
func (p *Probe) OnChange(callback func(bool)) func() {
	if callback == nil {
		return func() {}
	}
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.callbacks[id] = callback
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.callbacks, id)
			p.mu.Unlock()
		})
	}
}

// Watch polls the probe URL until the context is canceled, notifying OnChange
// subscribers on every transition. An immediate check runs before the first
// interval elapses.
func (p *Probe) Watch(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	if _, err := p.Check(ctx); err != nil {
		p.logger.Warn("connectivity check failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "connectivity_check_failed"),
		)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.Check(ctx); err != nil {
				p.logger.Warn("connectivity check failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "connectivity_check_failed"),
				)
			}
		}
	}
}

func (p *Probe) setOnline(online bool) {
	previous := p.online.Swap(online)
	if previous == online {
		return
	}

	p.logger.Info("connectivity changed", logging.Bool("online", online))

	p.mu.Lock()
	callbacks := make([]func(bool), 0, len(p.callbacks))
	for _, callback := range p.callbacks {
		callbacks = append(callbacks, callback)
	}
	p.mu.Unlock()

	for _, callback := range callbacks {
		callback(online)
	}
}
