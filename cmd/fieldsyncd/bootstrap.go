package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fieldsync/internal/config"
	"fieldsync/internal/connectivity"
	"fieldsync/internal/events"
	"fieldsync/internal/kvstore"
	"fieldsync/internal/logging"
	"fieldsync/internal/queue"
	"fieldsync/internal/remote"
	"fieldsync/internal/syncer"
)

// dependencies bundles the wired collaborators the daemon needs.
type dependencies struct {
	kv       *kvstore.SQLite
	store    *queue.Store
	network  *connectivity.Probe
	engine   *syncer.Engine
	bus      *events.Bus
	deviceID string
}

func (d *dependencies) close() {
	if d.store != nil {
		d.store.Close()
	}
	if d.kv != nil {
		d.kv.Close()
	}
}

// buildDependencies opens storage, establishes the device identity, and wires
// the queue store, connectivity probe, backend client, and sync engine.
func buildDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dependencies, error) {
	kv, err := kvstore.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	deviceID, err := kvstore.EnsureDeviceID(ctx, kv)
	if err != nil {
		kv.Close()
		return nil, fmt.Errorf("ensure device id: %w", err)
	}
	logger.Info("device identity established", logging.String("device_id", deviceID))

	store := queue.NewStore(kv, logger, cfg.Sync.MaxAttempts)
	probe := connectivity.NewProbe(cfg, logger)
	client := remote.NewClient(cfg, deviceID)
	bus := events.NewBus()
	bus.Subscribe(syncEventLogger(logger))

	engine := syncer.NewEngine(store, client, probe, bus, logger,
		syncer.WithFollowupDelay(followupDelay(cfg)))

	return &dependencies{
		kv:       kv,
		store:    store,
		network:  probe,
		engine:   engine,
		bus:      bus,
		deviceID: deviceID,
	}, nil
}

// syncEventLogger mirrors sync lifecycle events into the daemon log.
func syncEventLogger(logger *slog.Logger) events.Handler {
	log := logging.NewComponentLogger(logger, "sync-events")
	return func(ev events.Event) {
		switch ev.Kind {
		case events.KindItemSynced:
			if ev.Item != nil {
				log.Debug("item synced",
					logging.String(logging.FieldItemID, ev.Item.ID),
					logging.String(logging.FieldTable, ev.Item.TableName))
			}
		case events.KindItemFailed:
			if ev.Item != nil {
				log.Warn("item failed",
					logging.String(logging.FieldItemID, ev.Item.ID),
					logging.String(logging.FieldTable, ev.Item.TableName),
					logging.String("reason", ev.Error))
			}
		case events.KindCompleted:
			log.Info("sync completed",
				logging.Int("synced", ev.Synced),
				logging.Int("failed", ev.Failed),
				logging.Int("errors", len(ev.Errors)))
		}
	}
}

func followupDelay(cfg *config.Config) time.Duration {
	if cfg == nil || cfg.Sync.FollowupDelayMS <= 0 {
		return syncer.DefaultFollowupDelay
	}
	return time.Duration(cfg.Sync.FollowupDelayMS) * time.Millisecond
}
