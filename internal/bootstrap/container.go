package bootstrap

import (
	"context"
	"sync"

	chclient "orpheus/internal/adapters/clickhouse"
	"orpheus/internal/adapters/config"
	"orpheus/internal/adapters/embeddings"
	"orpheus/internal/adapters/kafka"
	pgclient "orpheus/internal/adapters/postgres"
	redisclient "orpheus/internal/adapters/redis"
	"orpheus/internal/adapters/telegram"
	"orpheus/internal/api"
	"orpheus/internal/api/health"
	"orpheus/internal/domain/caller"
	"orpheus/internal/domain/memory"
	domainsession "orpheus/internal/domain/session"
	"orpheus/internal/domain/stats"
	"orpheus/internal/domain/transcript"
	"orpheus/internal/events"
	"orpheus/internal/realtime"
	redisrepo "orpheus/internal/repository/redis"
	"orpheus/internal/tools"
	"orpheus/internal/workers"
	"orpheus/pkg/auth"
	"orpheus/pkg/errors"
	"orpheus/pkg/logger"
)

// Container holds all application dependencies and their lifecycle
// Components are organized in initialization order
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure Layer (Data stores)
	PG    *pgclient.Client
	CH    *chclient.Client
	Redis *redisclient.Client

	// Domain Layer - Repositories
	Repos *Repositories

	// External Adapters
	Adapters *Adapters

	// Domain Layer - Services
	Services *Services

	// Business Logic
	Business *Business

	// Application Layer
	Application *Application

	// Background Processing
	Background *Background

	// Lifecycle management
	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
	Context   context.Context
	Cancel    context.CancelFunc
}

// Repositories groups all domain repositories
type Repositories struct {
	Callers  caller.Repository
	Memories memory.Repository

	// Sessions keeps live call records in Redis; Counter backs the
	// greeting count tool from the same store.
	Sessions domainsession.Store
	Counter  *redisrepo.ConversationCounter

	Transcripts transcript.Repository
	ToolUsage   stats.Repository
}

// Adapters groups all external adapters
type Adapters struct {
	KafkaProducer *kafka.Producer
	Publisher     events.Publisher

	// CompletedConsumer feeds the memory compiler with finished calls
	CompletedConsumer *kafka.Consumer

	Embeddings embeddings.Provider
	Notifier   *telegram.Notifier
}

// Services groups all domain services
type Services struct {
	Memory     *memory.Service
	Auth       *auth.JWTService
	Summarizer realtime.Summarizer // nil when the summarizer is disabled
}

// Business groups the call-serving components
type Business struct {
	ToolRegistry   *tools.Registry
	SessionManager *realtime.Manager
	SessionFactory api.SessionFactory
}

// Application groups application layer components
type Application struct {
	HTTPServer    *api.Server
	HealthHandler *health.Handler
	CallHandler   *api.CallHandler
}

// Background groups background processing components
type Background struct {
	WorkerScheduler *workers.Scheduler
	WorkerRegistry  *workers.Registry
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Repos:       &Repositories{},
		Adapters:    &Adapters{},
		Services:    &Services{},
		Business:    &Business{},
		Application: &Application{},
		Background:  &Background{},
		Lifecycle:   NewLifecycle(),
		WG:          &sync.WaitGroup{},
		Context:     ctx,
		Cancel:      cancel,
	}
}

// MustInit initializes all components in the correct order
// Panics on any initialization error (fail-fast at startup)
func (c *Container) MustInit() {
	c.MustInitConfig()
	c.MustInitInfrastructure()
	c.MustInitRepositories()
	c.MustInitAdapters()
	c.MustInitServices()
	c.MustInitBusiness()
	// Background before Application: the health endpoint reports worker
	// states, so the registry must exist when the handler is built.
	c.MustInitBackground()
	c.MustInitApplication()
}

// Start starts all background components
func (c *Container) Start() error {
	c.Log.Info("Starting all systems...")

	// Duration watchdog for live calls
	c.Business.SessionManager.Start()

	// Background workers
	if err := c.Background.WorkerScheduler.Start(c.Context); err != nil {
		return errors.Wrap(err, "failed to start workers")
	}

	// HTTP server
	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.Application.HTTPServer.Start(); err != nil {
			c.Log.Errorf("HTTP server failed: %v", err)
			c.Cancel() // Trigger shutdown on fatal HTTP error
		}
	}()

	c.Log.Info("✓ All systems operational")
	return nil
}

// Shutdown performs graceful shutdown in the correct order
func (c *Container) Shutdown() {
	c.Log.Info("Initiating graceful shutdown...")

	// Cancel application context to signal all components to stop
	c.Cancel()

	c.Lifecycle.Shutdown(
		c.WG,
		c.Application.HTTPServer,
		c.Business.SessionManager,
		c.Background.WorkerScheduler,
		c.Adapters.CompletedConsumer,
		c.Adapters.KafkaProducer,
		c.PG,
		c.CH,
		c.Redis,
		c.ErrorTracker,
		c.Log,
	)
}
