package service

import (
	"context"
	"time"

	"github.com/smallbiznis/esimgate/internal/config"
	"go.uber.org/zap"
)

const refreshTaskTimeout = 15 * time.Second

// Refresher runs detached best-effort work behind a bounded semaphore so
// fire-and-forget refreshes can never accumulate unbounded goroutines.
// Tasks share no failure state with the request that spawned them.
type Refresher struct {
	sem chan struct{}
	log *zap.Logger
}

func NewRefresher(cfg config.Config, log *zap.Logger) *Refresher {
	workers := cfg.Refresh.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Refresher{
		sem: make(chan struct{}, workers),
		log: log.Named("esim.refresher"),
	}
}

// Submit schedules fn on its own goroutine with a bounded timeout. It
// never blocks: when all workers are busy the task is dropped, which is
// acceptable for a refresh the next poll will redo anyway.
func (r *Refresher) Submit(name string, fn func(ctx context.Context) error) bool {
	select {
	case r.sem <- struct{}{}:
	default:
		r.log.Debug("refresh dropped, workers busy", zap.String("task", name))
		return false
	}

	go func() {
		defer func() { <-r.sem }()
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("refresh panicked", zap.String("task", name), zap.Any("panic", rec))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), refreshTaskTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			r.log.Debug("refresh failed", zap.String("task", name), zap.Error(err))
		}
	}()
	return true
}
