package bootstrap

import (
	"context"
	"time"

	"tripmind/pkg/errors"
	"tripmind/pkg/logger"
)

// Lifecycle manages graceful shutdown of components
type Lifecycle struct {
	shutdownTimeout time.Duration
}

// NewLifecycle creates a new lifecycle manager
func NewLifecycle() *Lifecycle {
	return &Lifecycle{shutdownTimeout: 15 * time.Second}
}

// SetTimeout overrides the overall shutdown budget
func (l *Lifecycle) SetTimeout(d time.Duration) {
	if d > 0 {
		l.shutdownTimeout = d
	}
}

// Shutdown performs coordinated cleanup in order:
// 1. HTTP server and open websockets (in-flight turns get cancelled)
// 2. Telegram polling and workers via the container context
// 3. In-flight turns, so their events are published
// 4. Kafka producer
// 5. Error tracker and logs
// 6. Redis last
func (l *Lifecycle) Shutdown(c *Container) {
	log := c.Log
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer shutdownCancel()

	log.Info("[1/6] Stopping HTTP server...")
	if c.Application.HTTPServer != nil {
		httpCtx, httpCancel := context.WithTimeout(shutdownCtx, 5*time.Second)
		if err := c.Application.HTTPServer.Shutdown(httpCtx); err != nil {
			log.Errorw("HTTP server shutdown failed", "error", err)
		}
		httpCancel()
	}

	log.Info("[2/6] Stopping Telegram transport and workers...")
	c.Cancel()
	if c.Background.WorkerScheduler != nil {
		if err := c.Background.WorkerScheduler.Stop(shutdownCtx); err != nil {
			log.Warnw("Workers shutdown failed", "error", err)
		} else {
			log.Info("✓ Workers stopped")
		}
	}
	if c.group != nil {
		l.wait(shutdownCtx, "transports", func() { _ = c.group.Wait() }, log)
	}

	log.Info("[3/6] Waiting for in-flight turns...")
	if o := c.Business.Orchestrator; o != nil {
		l.wait(shutdownCtx, "turns", o.Wait, log)
	}

	log.Info("[4/6] Closing Kafka producer...")
	if c.KafkaProducer != nil {
		if err := c.KafkaProducer.Close(); err != nil {
			log.Errorw("Kafka producer close failed", "error", err)
		} else {
			log.Info("✓ Kafka producer closed")
		}
	}

	log.Info("[5/6] Flushing error tracker and logs...")
	l.flushErrorTracker(shutdownCtx, c.ErrorTracker, log)
	if err := logger.Sync(); err != nil {
		log.Debug("Log sync completed with warnings")
	}

	log.Info("[6/6] Closing Redis...")
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			log.Errorw("Redis close failed", "error", errors.Wrap(err, "redis"))
		} else {
			log.Info("✓ Redis closed")
		}
	}

	log.Info("✅ Graceful shutdown complete")
}

// wait runs fn and gives up when ctx expires
func (l *Lifecycle) wait(ctx context.Context, what string, fn func(), log *logger.Logger) {
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()

	select {
	case <-done:
		log.Infof("✓ All %s finished", what)
	case <-ctx.Done():
		log.Warnw("⚠ Shutdown deadline reached", "waiting_for", what)
	}
}

// flushErrorTracker flushes the error tracker (Sentry, etc.)
func (l *Lifecycle) flushErrorTracker(ctx context.Context, tracker errors.Tracker, log *logger.Logger) {
	if tracker == nil {
		return
	}

	flushCtx, flushCancel := context.WithTimeout(ctx, 3*time.Second)
	defer flushCancel()

	if err := tracker.Flush(flushCtx); err != nil {
		log.Warnw("Error tracker flush failed", "error", err)
	}
}
