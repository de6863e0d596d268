package storage

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RetentionManager periodically deletes forwarded events older than the
// retention window and optionally compacts the file afterwards. It is an
// explicit scheduler loop with its own cancellation signal; cleanup errors
// are logged and retried naturally on the next tick, never in-cycle.
type RetentionManager struct {
	store               *Store
	window              time.Duration
	checkInterval       time.Duration
	compactAfterCleanup bool
	logger              *zap.SugaredLogger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewRetentionManager creates a retention manager. window is how long
// forwarded events are kept; checkInterval is how often cleanup runs.
func NewRetentionManager(store *Store, window, checkInterval time.Duration, compactAfterCleanup bool, logger *zap.SugaredLogger) *RetentionManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &RetentionManager{
		store:               store,
		window:              window,
		checkInterval:       checkInterval,
		compactAfterCleanup: compactAfterCleanup,
		logger:              logger,
		ctx:                 ctx,
		cancel:              cancel,
	}
}

// Start launches the background cleanup loop.
func (rm *RetentionManager) Start() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.running {
		rm.logger.Warn("Retention manager already running")
		return
	}

	rm.logger.Infow("Starting retention manager",
		"window", rm.window, "check_interval", rm.checkInterval)
	rm.running = true
	rm.wg.Add(1)
	go rm.run()
}

// Stop cancels the loop and waits for the in-flight cycle to finish.
func (rm *RetentionManager) Stop() {
	rm.mu.Lock()
	if !rm.running {
		rm.mu.Unlock()
		return
	}
	rm.running = false
	rm.mu.Unlock()

	rm.cancel()
	rm.wg.Wait()
	rm.logger.Info("Retention manager stopped")
}

func (rm *RetentionManager) run() {
	defer rm.wg.Done()

	ticker := time.NewTicker(rm.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rm.Cleanup(rm.ctx)
		case <-rm.ctx.Done():
			return
		}
	}
}

// Cleanup runs one retention pass: delete forwarded events past the window,
// then compact if configured and anything was deleted. Exported so the CLI
// can trigger a pass on demand.
func (rm *RetentionManager) Cleanup(ctx context.Context) {
	cutoff := time.Now().Add(-rm.window).Unix()

	deleted, err := rm.store.DeleteForwardedOlderThan(ctx, cutoff)
	if err != nil {
		rm.logger.Errorw("Retention cleanup failed", "error", err)
		return
	}
	if deleted == 0 {
		return
	}

	rm.logger.Infow("Retention cleanup completed", "deleted", deleted, "cutoff", cutoff)

	if rm.compactAfterCleanup {
		if err := rm.store.Compact(ctx); err != nil {
			rm.logger.Errorw("Compaction after cleanup failed", "error", err)
		}
	}
}
