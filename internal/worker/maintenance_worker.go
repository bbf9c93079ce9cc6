package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zapret-labs/tracker/internal/repository"
)

// MaintenanceWorker periodically expires stale sessions.
type MaintenanceWorker struct {
	sessions   repository.SessionRepository
	logger     *zap.Logger
	interval   time.Duration
	sessionTTL time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewMaintenanceWorker constructs the worker.
func NewMaintenanceWorker(sessions repository.SessionRepository, logger *zap.Logger, interval, sessionTTL time.Duration) *MaintenanceWorker {
	return &MaintenanceWorker{
		sessions:   sessions,
		logger:     logger,
		interval:   interval,
		sessionTTL: sessionTTL,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start launches the cleanup loop.
func (w *MaintenanceWorker) Start() {
	go func() {
		defer close(w.doneCh)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.cleanup()
			case <-w.stopCh:
				return
			}
		}
	}()
}

// Stop halts the loop and waits for it to exit.
func (w *MaintenanceWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.doneCh
}

func (w *MaintenanceWorker) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	removed, err := w.sessions.DeleteExpired(ctx, w.sessionTTL)
	if err != nil {
		w.logger.Warn("session cleanup failed", zap.Error(err))
		return
	}
	if removed > 0 {
		w.logger.Info("expired sessions removed", zap.Int64("count", removed))
	}
}
