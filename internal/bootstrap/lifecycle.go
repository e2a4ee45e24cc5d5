package bootstrap

import (
	"context"
	"sync"
	"time"

	chclient "orpheus/internal/adapters/clickhouse"
	"orpheus/internal/adapters/kafka"
	pgclient "orpheus/internal/adapters/postgres"
	redisclient "orpheus/internal/adapters/redis"
	"orpheus/internal/api"
	"orpheus/internal/realtime"
	"orpheus/internal/workers"
	"orpheus/pkg/errors"
	"orpheus/pkg/logger"
)

// Lifecycle manages graceful startup and shutdown of components
type Lifecycle struct {
	shutdownTimeout time.Duration
	drainTimeout    time.Duration
}

// NewLifecycle creates a new lifecycle manager
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		shutdownTimeout: 120 * time.Second,
		drainTimeout:    30 * time.Second, // Live calls get this long to say goodbye
	}
}

// Shutdown performs coordinated cleanup of all components in the correct order.
// Callers are mid-conversation when this runs, so:
// 1. No new calls accepted
// 2. Live calls are ended and their records flushed
// 3. Workers finish their current iteration
// 4. Kafka consumers unblock before waiting for goroutines
// 5. Producer closes after everything that publishes
// 6. Logs and errors flushed
// 7. Database connections last (earlier steps still write to them)
func (l *Lifecycle) Shutdown(
	wg *sync.WaitGroup,
	httpServer *api.Server,
	sessionManager *realtime.Manager,
	workerScheduler *workers.Scheduler,
	completedConsumer *kafka.Consumer,
	kafkaProducer *kafka.Producer,
	pgClient *pgclient.Client,
	chClient *chclient.Client,
	redisClient *redisclient.Client,
	errorTracker errors.Tracker,
	log *logger.Logger,
) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer shutdownCancel()

	// ========================================
	// Step 1: Stop HTTP Server (5s timeout)
	// ========================================
	log.Info("[1/9] Stopping HTTP server...")
	httpCtx, httpCancel := context.WithTimeout(shutdownCtx, 5*time.Second)
	defer httpCancel()

	if err := httpServer.Shutdown(httpCtx); err != nil {
		log.Errorw("HTTP server shutdown failed", "error", err)
	}

	// ========================================
	// Step 2: End Live Calls
	// ========================================
	log.Info("[2/9] Ending live calls...")
	if sessionManager != nil {
		sessionManager.Shutdown(l.drainTimeout)
		log.Info("✓ Live calls ended")
	}

	// ========================================
	// Step 3: Stop Background Workers
	// ========================================
	log.Info("[3/9] Stopping background workers...")
	if err := workerScheduler.Stop(); err != nil {
		log.Errorw("Workers shutdown failed", "error", err)
	} else {
		log.Info("✓ Workers stopped")
	}

	// ========================================
	// Step 4: Close Kafka Consumers
	// Critical: Close consumers BEFORE waiting for goroutines
	// This unblocks ReadMessage() calls
	// ========================================
	log.Info("[4/9] Closing Kafka consumers...")
	l.closeKafkaConsumers(map[string]*kafka.Consumer{
		"calls_completed": completedConsumer,
	}, log)
	log.Info("✓ Kafka consumers closed")

	// ========================================
	// Step 5: Wait for Remaining Goroutines
	// ========================================
	log.Info("[5/9] Waiting for goroutines...")
	l.waitForGoroutines(wg, 5*time.Second, log)

	// ========================================
	// Step 6: Close Kafka Producer
	// ========================================
	log.Info("[6/9] Closing Kafka producer...")
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Errorw("Kafka producer close failed", "error", err)
		} else {
			log.Info("✓ Kafka producer closed")
		}
	}

	// ========================================
	// Step 7: Flush Error Tracker
	// ========================================
	log.Info("[7/9] Flushing error tracker...")
	l.flushErrorTracker(errorTracker, shutdownCtx, log)

	// ========================================
	// Step 8: Sync Logs
	// ========================================
	log.Info("[8/9] Syncing logs...")
	if err := logger.Sync(); err != nil {
		log.Warn("Log sync completed with warnings")
	} else {
		log.Info("✓ Logs synced")
	}

	// ========================================
	// Step 9: Close Database Connections
	// LAST - other components may need them during shutdown
	// ========================================
	log.Info("[9/9] Closing database connections...")
	l.closeDatabases(pgClient, chClient, redisClient, log)

	log.Info("✅ Graceful shutdown complete")
}

// closeKafkaConsumers closes all Kafka consumers
func (l *Lifecycle) closeKafkaConsumers(consumers map[string]*kafka.Consumer, log *logger.Logger) {
	for name, consumer := range consumers {
		if consumer != nil {
			if err := consumer.Close(); err != nil {
				log.Errorw("Kafka consumer close failed", "consumer", name, "error", err)
			}
		}
	}
}

// waitForGoroutines waits for all goroutines with a timeout
func (l *Lifecycle) waitForGoroutines(wg *sync.WaitGroup, timeout time.Duration, log *logger.Logger) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("✓ All goroutines finished")
	case <-time.After(timeout):
		log.Warnw("⚠ Some goroutines did not finish within timeout", "timeout", timeout)
	}
}

// flushErrorTracker flushes the error tracker (Sentry, etc.)
func (l *Lifecycle) flushErrorTracker(tracker errors.Tracker, ctx context.Context, log *logger.Logger) {
	if tracker == nil {
		return
	}

	flushCtx, flushCancel := context.WithTimeout(ctx, 3*time.Second)
	defer flushCancel()

	if err := tracker.Flush(flushCtx); err != nil {
		log.Errorw("Error tracker flush failed", "error", err)
	} else {
		log.Info("✓ Error tracker flushed")
	}
}

// closeDatabases closes all database connections
func (l *Lifecycle) closeDatabases(
	pgClient *pgclient.Client,
	chClient *chclient.Client,
	redisClient *redisclient.Client,
	log *logger.Logger,
) {
	var dbErrors []error

	if pgClient != nil {
		if err := pgClient.Close(); err != nil {
			dbErrors = append(dbErrors, errors.Wrap(err, "postgres"))
		}
	}

	if chClient != nil {
		if err := chClient.Close(); err != nil {
			dbErrors = append(dbErrors, errors.Wrap(err, "clickhouse"))
		}
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			dbErrors = append(dbErrors, errors.Wrap(err, "redis"))
		}
	}

	if len(dbErrors) > 0 {
		log.Errorw("Database close errors", "errors", dbErrors)
	} else {
		log.Info("✓ Database connections closed")
	}
}
