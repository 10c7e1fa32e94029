/*
scheduler.go - Pending closure watcher

PURPOSE:
  Periodically checks whether last month's closure has been published.
  Until it is, payouts for that month are live estimates, so the watcher
  logs a warning and raises the sales_closure_pending gauge once the grace
  period has passed.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Months are evaluated in the configured business timezone
  - Never publishes anything itself; publication needs the admin's revenue
    total and attendance overrides

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - GraceDays: Days into the new month before warning (default: 5)

USAGE:
  watcher := NewClosureWatcher(handler)
  watcher.Start()
  // ... later
  watcher.Stop()

SEE ALSO:
  - handlers.go: PublishClosure endpoint
  - closure/service.go: PublishMonth
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/sales-engine/generic"
)

// ClosureWatcher reports months left unpublished.
type ClosureWatcher struct {
	Handler       *Handler
	CheckInterval time.Duration
	GraceDays     int

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewClosureWatcher(h *Handler) *ClosureWatcher {
	return &ClosureWatcher{
		Handler:       h,
		CheckInterval: time.Hour,
		GraceDays:     5,
	}
}

// Start begins the watcher. Calling Start twice is a no-op.
func (cw *ClosureWatcher) Start() {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.ticker != nil {
		return
	}

	cw.ticker = time.NewTicker(cw.CheckInterval)
	cw.stop = make(chan struct{})
	cw.wg.Add(1)
	go cw.run()

	cw.Handler.logger.Info("closure watcher started", zap.Duration("interval", cw.CheckInterval))
}

// Stop stops the watcher and waits for a running check to finish.
func (cw *ClosureWatcher) Stop() {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.ticker == nil {
		return
	}
	cw.ticker.Stop()
	close(cw.stop)
	cw.wg.Wait()
	cw.ticker = nil
	cw.Handler.logger.Info("closure watcher stopped")
}

func (cw *ClosureWatcher) run() {
	defer cw.wg.Done()

	// Run immediately on start
	cw.Check(context.Background())

	for {
		select {
		case <-cw.ticker.C:
			cw.Check(context.Background())
		case <-cw.stop:
			return
		}
	}
}

// Check looks at the previous month once. It returns the month when it is
// overdue, or "" when it is published or still within the grace period.
func (cw *ClosureWatcher) Check(ctx context.Context) generic.Month {
	h := cw.Handler
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	loc, _, err := h.location(ctx)
	if err != nil {
		h.logger.Warn("closure watcher: config unavailable", zap.Error(err))
		return ""
	}
	now := h.now().In(loc)
	if now.Day() <= cw.GraceDays {
		h.metrics.SetClosurePending(false)
		return ""
	}
	previous := generic.MonthOf(time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc).AddDate(0, -1, 0))

	record, err := h.Service.Closure(ctx, previous)
	if err != nil {
		h.logger.Warn("closure watcher: fetch failed", zap.String("month", string(previous)), zap.Error(err))
		return ""
	}
	if record != nil {
		h.metrics.SetClosurePending(false)
		return ""
	}

	h.metrics.SetClosurePending(true)
	h.logger.Warn("closure not published",
		zap.String("month", string(previous)),
		zap.Int("days_overdue", now.Day()-cw.GraceDays),
	)
	return previous
}
