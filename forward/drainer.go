package forward

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"outpost/storage"
)

// Drainer is a background worker that repeatedly moves batches of
// unforwarded events through a Sink and marks them forwarded. Like the
// retention manager it owns its cancellation signal and shuts down cleanly.
type Drainer struct {
	store     *storage.Store
	sink      Sink
	batchSize int
	interval  time.Duration
	logger    *zap.SugaredLogger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewDrainer creates a drainer that pulls up to batchSize events every
// interval.
func NewDrainer(store *storage.Store, sink Sink, batchSize int, interval time.Duration, logger *zap.SugaredLogger) *Drainer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Drainer{
		store:     store,
		sink:      sink,
		batchSize: batchSize,
		interval:  interval,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the drain loop.
func (d *Drainer) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		d.logger.Warn("Drainer already running")
		return
	}

	d.logger.Infow("Starting drainer", "batch_size", d.batchSize, "interval", d.interval)
	d.running = true
	d.wg.Add(1)
	go d.run()
}

// Stop cancels the loop and waits for the in-flight cycle.
func (d *Drainer) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
	d.logger.Info("Drainer stopped")
}

func (d *Drainer) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := d.DrainOnce(d.ctx); err != nil {
				d.logger.Errorw("Drain cycle failed", "error", err)
			}
		case <-d.ctx.Done():
			return
		}
	}
}

// DrainOnce runs a single fetch/deliver/mark cycle and returns how many
// events were forwarded. Events are marked forwarded only after the sink
// accepted the whole batch; a sink failure leaves them unforwarded for the
// next cycle.
func (d *Drainer) DrainOnce(ctx context.Context) (int, error) {
	events, err := d.store.FetchUnforwarded(ctx, d.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch unforwarded: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	if err := d.sink.Deliver(ctx, events); err != nil {
		return 0, fmt.Errorf("deliver batch of %d: %w", len(events), err)
	}

	ids := make([]int64, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	if err := d.store.MarkForwarded(ctx, ids); err != nil {
		// The sink has the batch but the flags did not stick; the next cycle
		// re-delivers, which the hand-off protocol allows (at-least-once).
		return 0, fmt.Errorf("mark forwarded: %w", err)
	}

	return len(events), nil
}
