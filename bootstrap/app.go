package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"outpost/config"
	"outpost/core"
	"outpost/forward"
	"outpost/metrics"
	"outpost/storage"
	"outpost/telemetry"
)

// App is the long-running outpost agent: the store plus its background
// workers (retention, and optionally the drainer).
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	Store    *storage.Store
	Recorder *telemetry.Recorder

	Retention *storage.RetentionManager
	Drainer   *forward.Drainer

	shutdownCh chan struct{}
}

// NewApp initializes all components. The agent requires a configured service
// name; the read-only CLI paths do not go through here.
func NewApp(ctx context.Context) (*App, error) {
	app := &App{
		shutdownCh: make(chan struct{}),
	}

	logger, sugar, err := InitLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.Logger = logger
	app.Sugar = sugar

	sugar.Info("Outpost agent starting...")

	cfg, err := InitConfig(sugar)
	if err != nil {
		return nil, err
	}
	app.Config = cfg

	if cfg.Service.Name == "" {
		return nil, fmt.Errorf("service.name is required (set it in config.yaml or OUTPOST_SERVICE_NAME)")
	}

	if err := EnsureDataDirectories(cfg, sugar); err != nil {
		return nil, fmt.Errorf("pre-flight check failed: %w", err)
	}

	store := storage.NewStoreWithPragmas(cfg.GetSQLitePath(), storage.Pragmas{
		BusyTimeout:       cfg.Storage.BusyTimeout,
		CacheKB:           cfg.Storage.CacheKB,
		MmapBytes:         cfg.Storage.MmapBytes,
		WALAutoCheckpoint: cfg.Storage.WALAutoCheckpoint,
	}, sugar)
	if err := store.Initialize(ctx); err != nil {
		return nil, err
	}
	app.Store = store

	recorder, err := telemetry.NewRecorder(store, cfg.Service.Name, cfg.Service.NodeID, sugar)
	if err != nil {
		return nil, fmt.Errorf("failed to create recorder: %w", err)
	}
	recorder.Mirror = func(e *core.Event) {
		metrics.EventsRecorded.WithLabelValues(e.ServiceName, e.EventType, e.Severity).Inc()
	}
	app.Recorder = recorder

	app.Retention = storage.NewRetentionManager(
		store,
		cfg.RetentionWindow(),
		cfg.Retention.CheckInterval,
		cfg.Retention.CompactAfterCleanup,
		sugar,
	)

	if cfg.Forward.Enabled {
		app.Drainer = forward.NewDrainer(
			store,
			&forward.LogSink{Logger: sugar},
			cfg.Forward.BatchSize,
			cfg.Forward.Interval,
			sugar,
		)
	}

	return app, nil
}

// Start launches the background workers.
func (a *App) Start(ctx context.Context) error {
	a.Retention.Start()
	if a.Drainer != nil {
		a.Drainer.Start()
	}

	if err := a.Recorder.Health(ctx, "outpost agent started", map[string]interface{}{
		"pid": os.Getpid(),
	}); err != nil {
		a.Sugar.Warnw("Failed to record startup event", "error", err)
	}

	a.Sugar.Infow("Outpost agent running",
		"store", a.Store.Path(),
		"service", a.Config.Service.Name,
		"node", a.Config.Service.NodeID,
	)
	return nil
}

// WaitForShutdown blocks until SIGINT/SIGTERM.
func (a *App) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.Sugar.Infow("Shutdown signal received", "signal", sig)
	case <-a.shutdownCh:
	}
}

// Shutdown stops the background workers and flushes the logger.
func (a *App) Shutdown() {
	a.Sugar.Info("Shutting down...")

	if a.Drainer != nil {
		a.Drainer.Stop()
	}
	if a.Retention != nil {
		a.Retention.Stop()
	}

	_ = a.Logger.Sync()
}
