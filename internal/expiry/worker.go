// Package expiry runs the background sweep that completes reservations whose
// window has ended.
package expiry

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/microwave-booking/internal/metrics"
)

// Sweeper releases every active reservation due at the reference time.
type Sweeper interface {
	Expire(ctx context.Context, reference time.Time) (int, error)
}

// Worker periodically invokes the sweeper until its context is cancelled.
type Worker struct {
	sweeper  Sweeper
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewWorker constructs a worker. A non-positive interval falls back to 30s.
func NewWorker(sweeper Sweeper, interval time.Duration, now func() time.Time, logger *slog.Logger) *Worker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{sweeper: sweeper, interval: interval, now: now, logger: logger}
}

// Run blocks, sweeping once immediately and then on every tick, until ctx is
// done. Sweep errors are logged and the loop continues.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.sweeper == nil {
		return
	}

	logger := w.logger.With("component", "expiry_worker")
	logger.InfoContext(ctx, "expiry worker started", "interval", w.interval)

	w.sweep(ctx, logger)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "expiry worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx, logger)
		}
	}
}

func (w *Worker) sweep(ctx context.Context, logger *slog.Logger) {
	expired, err := w.sweeper.Expire(ctx, w.now())
	if err != nil {
		logger.ErrorContext(ctx, "expiry sweep failed", "error", err)
		return
	}
	metrics.ObserveExpirySweep(expired)
}
