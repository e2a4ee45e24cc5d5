package bootstrap

import (
	"context"
	"time"

	chclient "orpheus/internal/adapters/clickhouse"
	"orpheus/internal/adapters/config"
	"orpheus/internal/adapters/embeddings"
	errnoop "orpheus/internal/adapters/errors/noop"
	"orpheus/internal/adapters/errors/sentry"
	"orpheus/internal/adapters/kafka"
	"orpheus/internal/adapters/llm"
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
	"orpheus/internal/metrics"
	"orpheus/internal/realtime"
	chrepo "orpheus/internal/repository/clickhouse"
	pgrepo "orpheus/internal/repository/postgres"
	redisrepo "orpheus/internal/repository/redis"
	"orpheus/internal/tools"
	"orpheus/internal/tools/builtin"
	"orpheus/pkg/auth"
	"orpheus/pkg/errors"
	"orpheus/pkg/logger"
)

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// MustInitConfig loads configuration and initializes logger
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	// Initialize logger
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}

	c.Log = logger.Get()
	c.Log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	// Initialize error tracker
	c.ErrorTracker = provideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)
}

// ========================================
// Phase 2: Infrastructure Layer
// ========================================

// MustInitInfrastructure initializes data stores (Postgres, ClickHouse, Redis)
func (c *Container) MustInitInfrastructure() {
	var err error

	// PostgreSQL
	c.Log.Info("Connecting to PostgreSQL...")
	c.PG, err = pgclient.NewClient(c.Config.Postgres)
	if err != nil {
		c.Log.Fatalf("failed to connect postgres: %v", err)
	}
	c.Log.Info("✓ PostgreSQL connected")

	// ClickHouse
	c.Log.Info("Connecting to ClickHouse...")
	c.CH, err = chclient.NewClient(c.Config.ClickHouse)
	if err != nil {
		c.Log.Fatalf("failed to connect clickhouse: %v", err)
	}
	c.Log.Info("✓ ClickHouse connected")

	// Redis
	c.Log.Info("Connecting to Redis...")
	c.Redis, err = redisclient.NewClient(c.Config.Redis)
	if err != nil {
		c.Log.Fatalf("failed to connect redis: %v", err)
	}
	c.Log.Info("✓ Redis connected")
}

// ========================================
// Phase 3: Domain Layer - Repositories
// ========================================

// MustInitRepositories initializes all domain repositories
func (c *Container) MustInitRepositories() {
	c.Repos.Callers = pgrepo.NewCallerRepository(c.PG.DB())
	c.Repos.Memories = pgrepo.NewMemoryRepository(c.PG.DB())
	c.Repos.Sessions = redisrepo.NewSessionStore(c.Redis.RDB(), c.Config.Session.RedisTTL)
	c.Repos.Counter = redisrepo.NewConversationCounter(c.Redis.RDB())
	c.Repos.Transcripts = chrepo.NewTranscriptRepository(c.CH.Conn())
	c.Repos.ToolUsage = chrepo.NewToolUsageRepository(c.CH.Conn())

	c.Log.Info("✓ Repositories initialized")
}

// ========================================
// Phase 4: External Adapters
// ========================================

// MustInitAdapters initializes external adapters (Kafka, Embeddings, Telegram)
func (c *Container) MustInitAdapters() {
	var err error

	// Kafka
	c.Adapters.KafkaProducer = provideKafkaProducer(c.Config, c.Log)
	c.Adapters.Publisher = events.NewKafkaPublisher(c.Adapters.KafkaProducer, c.Log)
	c.Adapters.CompletedConsumer = provideKafkaConsumer(c.Config, kafka.TopicCallCompleted, c.Log)

	// Embeddings. EMBEDDINGS_API_KEY overrides, otherwise the realtime
	// key is reused since both talk to the same OpenAI account.
	embeddingsKey := c.Config.Embeddings.APIKey
	if embeddingsKey == "" {
		embeddingsKey = c.Config.Realtime.APIKey
	}
	c.Adapters.Embeddings, err = embeddings.NewProvider(embeddings.Config{
		Provider: embeddings.ProviderType(c.Config.Embeddings.Provider),
		APIKey:   embeddingsKey,
		Model:    c.Config.Embeddings.Model,
		Timeout:  30 * time.Second,
	})
	if err != nil {
		c.Log.Fatalf("failed to create embedding provider: %v", err)
	}
	c.Log.Infof("✓ Embedding provider initialized: %s (%d dimensions)",
		c.Adapters.Embeddings.Name(),
		c.Adapters.Embeddings.Dimensions(),
	)

	// Telegram alerts
	c.Adapters.Notifier, err = telegram.NewNotifier(c.Config.Telegram, c.Log)
	if err != nil {
		c.Log.Fatalf("failed to initialize telegram notifier: %v", err)
	}
}

// ========================================
// Phase 5: Domain Services
// ========================================

// MustInitServices initializes domain services
func (c *Container) MustInitServices() {
	c.Services.Memory = memory.NewService(c.Repos.Memories, c.Adapters.Embeddings)
	c.Services.Auth = auth.NewJWTService(c.Config.Auth.JWTSecret, c.Config.Auth.Issuer, c.Config.Auth.TokenTTL)
	c.Services.Summarizer = provideSummarizer(c.Context, c.Config, c.Log)

	c.Log.Info("✓ Services initialized")
}

// ========================================
// Phase 6: Business Logic
// ========================================

// MustInitBusiness initializes call-serving logic (tools, session management)
func (c *Container) MustInitBusiness() {
	c.Business.ToolRegistry = provideToolRegistry(
		c.Repos.Callers,
		c.Repos.Counter,
		c.Services.Memory,
		c.Log,
	)

	c.Business.SessionManager = realtime.NewManager(c.Config.Session)

	c.Business.SessionFactory = provideSessionFactory(
		c.Config.Realtime,
		c.Repos.Sessions,
		c.Business.ToolRegistry,
		c.Adapters.Publisher,
		c.Repos.Transcripts,
		c.Repos.ToolUsage,
		c.Repos.Callers,
		c.Repos.Counter,
		c.Services.Summarizer,
	)

	c.Log.With("tools", c.Business.ToolRegistry.Len()).Info("✓ Business logic initialized")
}

// ========================================
// Phase 7: Background Processing
// ========================================

// MustInitBackground initializes background workers
func (c *Container) MustInitBackground() {
	c.Background.WorkerScheduler, c.Background.WorkerRegistry = provideWorkers(
		c.Repos.Sessions,
		c.Business.SessionManager,
		c.Adapters.Publisher,
		c.Repos.ToolUsage,
		c.Adapters.Notifier,
		c.Adapters.CompletedConsumer,
		c.Services.Memory,
		c.Config,
		c.Log,
	)

	c.Log.Info("✓ Background processing initialized")
}

// ========================================
// Phase 8: Application Layer
// ========================================

// MustInitApplication initializes the application layer (HTTP)
func (c *Container) MustInitApplication() {
	// Health handler
	c.Application.HealthHandler = health.New(
		c.Log,
		c.PG.DB(),
		c.CH.Conn(),
		c.Redis.RDB(),
		c.Background.WorkerRegistry,
		c.Business.SessionManager,
		c.Config.App.Name,
		c.Config.App.Version,
	)

	// Inbound call endpoint
	c.Application.CallHandler = api.NewCallHandler(api.CallHandlerParams{
		Auth:     c.Services.Auth,
		Callers:  c.Repos.Callers,
		Manager:  c.Business.SessionManager,
		Sessions: c.Business.SessionFactory,
		Notifier: c.Adapters.Notifier,
		Realtime: c.Config.Realtime,
		VAD:      c.Config.VAD,
	})

	// HTTP server
	c.Application.HTTPServer = api.NewServer(api.ServerConfig{
		Addr:        c.Config.Server.Addr(),
		ServiceName: c.Config.App.Name,
		Version:     c.Config.App.Version,
	}, c.Application.HealthHandler, c.Application.CallHandler, c.Log)

	// Initialize metrics
	metrics.Init()
	customCollector := metrics.NewCustomCollector(c.Log, c.PG.DB(), c.CH.Conn(), c.Redis.RDB())
	metrics.RegisterCustomCollector(customCollector)
	c.Log.Info("✓ Metrics initialized")

	c.Log.Info("✓ Application layer initialized")
}

// ========================================
// Helper Provider Functions
// ========================================

func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return errnoop.New()
	}

	log.Info("✓ Error tracking initialized (Sentry)")
	return tracker
}

func provideKafkaProducer(cfg *config.Config, log *logger.Logger) *kafka.Producer {
	log.Info("Initializing Kafka producer...")
	if len(cfg.Kafka.Brokers) == 0 {
		log.Warn("Kafka brokers not configured, using default localhost:9092")
		cfg.Kafka.Brokers = []string{"localhost:9092"}
	}

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
		Async:   false,
	})
	log.Info("✓ Kafka producer initialized")
	return producer
}

func provideKafkaConsumer(cfg *config.Config, topic string, log *logger.Logger) *kafka.Consumer {
	log.Infow("Initializing Kafka consumer", "topic", topic)
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{"localhost:9092"}
	}

	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
		Topic:   topic,
	})
	log.Infow("✓ Kafka consumer initialized", "topic", topic)
	return consumer
}

// provideSummarizer builds the Gemini summarizer, or nil when it is not
// configured. Sessions treat a nil summarizer as "skip the summary".
func provideSummarizer(ctx context.Context, cfg *config.Config, log *logger.Logger) realtime.Summarizer {
	if !cfg.Summarizer.Enabled {
		log.Info("Call summaries disabled")
		return nil
	}

	summarizer, err := llm.NewSummarizer(ctx, cfg.Summarizer)
	if err != nil {
		log.Warnf("Failed to initialize summarizer, calls will not be summarized: %v", err)
		return nil
	}

	log.Infof("✓ Summarizer initialized (%s)", cfg.Summarizer.Model)
	return summarizer
}

func provideToolRegistry(
	callers caller.Repository,
	counter *redisrepo.ConversationCounter,
	memories *memory.Service,
	log *logger.Logger,
) *tools.Registry {
	log.Info("Registering tools...")

	registry := tools.NewRegistry(builtin.Catalog(builtin.Deps{
		Callers:  callers,
		Counter:  counter,
		Memories: memories,
	})...)

	log.Infof("✓ Registered %d tools", registry.Len())
	return registry
}

func provideSessionFactory(
	cfg config.RealtimeConfig,
	store domainsession.Store,
	registry *tools.Registry,
	publisher events.Publisher,
	transcripts transcript.Repository,
	toolUsage stats.Repository,
	callers caller.Repository,
	counter *redisrepo.ConversationCounter,
	summarizer realtime.Summarizer,
) api.SessionFactory {
	return func(rec *domainsession.CallSession, serverVAD bool) *realtime.Session {
		return realtime.NewSession(realtime.SessionParams{
			Config:   cfg,
			Record:   rec,
			Store:    store,
			Registry: registry,
			// Tools see the call identity and the hang-up trigger,
			// nothing else.
			MakeShared: func(endCall func(reason string)) interface{} {
				return &builtin.Env{
					CallID:   rec.ID,
					CallerID: rec.CallerID,
					EndCall:  endCall,
				}
			},
			Publisher:   publisher,
			Transcripts: transcripts,
			ToolUsage:   toolUsage,
			Callers:     callers,
			Counter:     counter,
			Summarizer:  summarizer,
			ServerVAD:   serverVAD,
		})
	}
}

// provideWorkers is defined in workers.go
