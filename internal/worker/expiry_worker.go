package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ExpiredTokenPurger removes tokens whose TTL has elapsed.
type ExpiredTokenPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// ExpiryWorker sweeps expired tokens on a fixed interval. Lookups already ignore expired
// tokens, so the sweep only reclaims storage.
type ExpiryWorker struct {
	purger   ExpiredTokenPurger
	interval time.Duration
	logger   *zap.Logger
}

// NewExpiryWorker creates the worker.
func NewExpiryWorker(purger ExpiredTokenPurger, interval time.Duration, logger *zap.Logger) *ExpiryWorker {
	return &ExpiryWorker{purger: purger, interval: interval, logger: logger.Named("expiry_worker")}
}

// Run blocks until ctx is cancelled. It returns nil on cancellation; sweep failures are
// logged and retried on the next tick.
func (w *ExpiryWorker) Run(ctx context.Context) error {
	if w.interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("expiry worker started", zap.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("expiry worker stopped")
			return nil
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpiryWorker) sweep(ctx context.Context) {
	removed, err := w.purger.PurgeExpired(ctx)
	if err != nil {
		w.logger.Warn("expired token sweep failed", zap.Error(err))
		return
	}
	if removed > 0 {
		w.logger.Info("expired tokens purged", zap.Int64("count", removed))
	}
}
