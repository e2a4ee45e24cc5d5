package bootstrap

import (
	"orpheus/internal/adapters/config"
	"orpheus/internal/adapters/kafka"
	"orpheus/internal/adapters/telegram"
	"orpheus/internal/domain/memory"
	domainsession "orpheus/internal/domain/session"
	"orpheus/internal/domain/stats"
	"orpheus/internal/events"
	"orpheus/internal/realtime"
	"orpheus/internal/workers"
	"orpheus/pkg/logger"
)

// provideWorkers initializes the background workers along with the health
// registry the /health endpoint reports on
func provideWorkers(
	sessions domainsession.Store,
	manager *realtime.Manager,
	publisher events.Publisher,
	toolUsage stats.Repository,
	notifier *telegram.Notifier,
	completedConsumer *kafka.Consumer,
	memories *memory.Service,
	cfg *config.Config,
	log *logger.Logger,
) (*workers.Scheduler, *workers.Registry) {
	log.Info("Initializing workers...")

	scheduler := workers.NewScheduler()
	registry := workers.NewRegistry()

	// Session reaper: expires call records whose node died without
	// cleaning up. Calls live on this node are skipped, the manager
	// knows which ones those are.
	reaper := workers.NewSessionReaper(
		sessions,
		manager,
		publisher,
		cfg.Workers.SessionReaperInterval,
		cfg.Session.MaxIdle,
	)

	// Usage reporter: periodic tool usage digest for operators
	reporter := workers.NewUsageReporter(
		toolUsage,
		notifier,
		cfg.Workers.UsageReporterInterval,
	)
	if !notifier.Enabled() {
		// The digest has nowhere to go without a bot token
		reporter.SetEnabled(false)
	}

	// Memory compiler: distills completed calls into long-term memories
	compiler := workers.NewMemoryCompiler(
		completedConsumer,
		memories,
		cfg.Workers.MemoryCompilerInterval,
		cfg.Workers.MemoryCompilerEnabled,
	)

	for _, w := range []workers.WorkerWithHealth{reaper, reporter, compiler} {
		if err := registry.Register(w); err != nil {
			log.Fatalf("failed to register worker %s: %v", w.Name(), err)
		}
		scheduler.RegisterWorker(w)
	}

	log.Infow("Worker intervals configured",
		"session_reaper", cfg.Workers.SessionReaperInterval,
		"usage_reporter", cfg.Workers.UsageReporterInterval,
		"memory_compiler", cfg.Workers.MemoryCompilerInterval,
	)

	log.Infof("✓ Workers initialized: %d registered", len(scheduler.GetWorkers()))

	return scheduler, registry
}
