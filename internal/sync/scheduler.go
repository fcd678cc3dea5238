package sync

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler re-runs a sync function on a fixed interval. The engine
// itself holds no timer state; this is the only place that decides when
// syncs happen.
type Scheduler struct {
	interval time.Duration
	fn       func(context.Context) error
	logger   *slog.Logger
}

// NewScheduler creates a scheduler invoking fn every interval.
func NewScheduler(interval time.Duration, fn func(context.Context) error, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{interval: interval, fn: fn, logger: logger}
}

// Run blocks until ctx is canceled, invoking the sync function on each
// tick. Errors are logged, not fatal; the next tick retries. Callers
// must track the goroutine with a WaitGroup.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.fn(ctx); err != nil {
				s.logger.Warn("scheduled sync failed", "error", err)
			}
		}
	}
}
