/*
scheduler.go - Automated retention scheduler

PURPOSE:
  Periodically deletes score records older than the retention window so
  the store does not grow without bound.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Prunes through the handler so the session snapshot is reloaded
  - Catalog, users and messages are never touched
  - Failures are logged and retried on the next tick

CONFIGURATION:
  - Interval: How often to prune (retention.auto_prune_interval)
  - Days:     Retention window (retention.default_days)
  - Disabled when Interval is zero

USAGE:
  scheduler := NewRetentionScheduler(handler, 24*time.Hour, 365)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: Prune endpoint (manual pruning)
  - persistence/engine.go: PruneOlderThan
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RetentionScheduler prunes old records on a timer.
type RetentionScheduler struct {
	Handler  *Handler
	Interval time.Duration
	Days     int

	logger *zap.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRetentionScheduler creates a scheduler that prunes records older than
// days every interval.
func NewRetentionScheduler(h *Handler, interval time.Duration, days int) *RetentionScheduler {
	return &RetentionScheduler{
		Handler:  h,
		Interval: interval,
		Days:     days,
		logger:   h.logger.Named("retention"),
	}
}

// Start begins the scheduler. It is a no-op when Interval is zero or the
// scheduler is already running.
func (rs *RetentionScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.Interval <= 0 {
		rs.logger.Info("disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.Interval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)

	go rs.run(rs.ticker, rs.stop)

	rs.logger.Info("started", zap.Duration("interval", rs.Interval), zap.Int("days", rs.Days))
}

// Stop stops the scheduler and waits for a running prune to finish.
func (rs *RetentionScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker == nil {
		return
	}
	rs.ticker.Stop()
	close(rs.stop)
	rs.wg.Wait()
	rs.ticker = nil
	rs.logger.Info("stopped")
}

// RunOnce prunes immediately and returns the number of deleted records.
func (rs *RetentionScheduler) RunOnce(ctx context.Context) (int, error) {
	deleted, err := rs.Handler.pruneRecords(ctx, rs.Days)
	if err != nil {
		rs.logger.Error("prune failed", zap.Int("days", rs.Days), zap.Error(err))
		return 0, err
	}
	if deleted > 0 {
		rs.logger.Info("pruned records", zap.Int("days", rs.Days), zap.Int("deleted", deleted))
	}
	return deleted, nil
}

func (rs *RetentionScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer rs.wg.Done()

	// Run immediately on start
	rs.RunOnce(context.Background())

	for {
		select {
		case <-ticker.C:
			rs.RunOnce(context.Background())
		case <-stop:
			return
		}
	}
}
