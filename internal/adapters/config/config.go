package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"orpheus/pkg/errors"
)

type Config struct {
	App           AppConfig
	Server        ServerConfig
	Postgres      PostgresConfig
	ClickHouse    ClickHouseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Realtime      RealtimeConfig
	Embeddings    EmbeddingsConfig
	Summarizer    SummarizerConfig
	VAD           VADConfig
	Auth          AuthConfig
	Crypto        CryptoConfig
	Telegram      TelegramConfig
	ErrorTracking ErrorTrackingConfig
	Session       SessionConfig
	Workers       WorkerConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"orpheus"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type ClickHouseConfig struct {
	Host     string `envconfig:"CLICKHOUSE_HOST" required:"true"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"voice"`
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" required:"true"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS" required:"true"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"orpheus"`
}

// RealtimeConfig configures the upstream realtime speech model connection
type RealtimeConfig struct {
	APIKey       string        `envconfig:"OPENAI_API_KEY" required:"true"`
	BaseURL      string        `envconfig:"REALTIME_BASE_URL" default:"wss://api.openai.com/v1/realtime"`
	Model        string        `envconfig:"REALTIME_MODEL" default:"gpt-4o-realtime-preview"`
	Voice        string        `envconfig:"REALTIME_VOICE" default:"alloy"`
	Instructions string        `envconfig:"REALTIME_INSTRUCTIONS" default:"You are a helpful voice assistant."`
	Temperature  float64       `envconfig:"REALTIME_TEMPERATURE" default:"0.8"`
	PingInterval time.Duration `envconfig:"REALTIME_PING_INTERVAL" default:"20s"`
	ReadTimeout  time.Duration `envconfig:"REALTIME_READ_TIMEOUT" default:"60s"`
}

type EmbeddingsConfig struct {
	Provider string `envconfig:"EMBEDDINGS_PROVIDER" default:"openai"`
	APIKey   string `envconfig:"EMBEDDINGS_API_KEY"`
	Model    string `envconfig:"EMBEDDINGS_MODEL" default:"text-embedding-3-small"`
}

type SummarizerConfig struct {
	Enabled   bool   `envconfig:"SUMMARIZER_ENABLED" default:"true"`
	GeminiKey string `envconfig:"GEMINI_API_KEY"`
	Model     string `envconfig:"SUMMARIZER_MODEL" default:"gemini-2.0-flash"`
}

// VADConfig configures local voice activity detection.
// When disabled the upstream model's server-side VAD is used instead.
type VADConfig struct {
	Enabled   bool    `envconfig:"VAD_ENABLED" default:"false"`
	ModelPath string  `envconfig:"VAD_MODEL_PATH" default:"models/silero_vad.onnx"`
	Threshold float32 `envconfig:"VAD_THRESHOLD" default:"0.5"`
}

type AuthConfig struct {
	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	Issuer    string        `envconfig:"JWT_ISSUER" default:"orpheus"`
	TokenTTL  time.Duration `envconfig:"JWT_TOKEN_TTL" default:"24h"`
}

type CryptoConfig struct {
	EncryptionKey string `envconfig:"ENCRYPTION_KEY" required:"true"` // 32 bytes for AES-256
}

type TelegramConfig struct {
	Enabled  bool    `envconfig:"TELEGRAM_ALERTS_ENABLED" default:"false"`
	BotToken string  `envconfig:"TELEGRAM_BOT_TOKEN"`
	ChatIDs  []int64 `envconfig:"TELEGRAM_CHAT_IDS"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// SessionConfig bounds live call sessions
type SessionConfig struct {
	MaxConcurrent int           `envconfig:"SESSION_MAX_CONCURRENT" default:"50"`
	MaxDuration   time.Duration `envconfig:"SESSION_MAX_DURATION" default:"30m"`
	MaxIdle       time.Duration `envconfig:"SESSION_MAX_IDLE" default:"5m"` // Reaper threshold for dead connections
	RedisTTL      time.Duration `envconfig:"SESSION_REDIS_TTL" default:"2h"`
}

// WorkerConfig contains intervals for all background workers
type WorkerConfig struct {
	SessionReaperInterval  time.Duration `envconfig:"WORKER_SESSION_REAPER_INTERVAL" default:"1m"`   // Expire dead sessions every minute
	UsageReporterInterval  time.Duration `envconfig:"WORKER_USAGE_REPORTER_INTERVAL" default:"24h"`  // Daily tool usage digest
	MemoryCompilerInterval time.Duration `envconfig:"WORKER_MEMORY_COMPILER_INTERVAL" default:"5m"`  // Distill memories from finished calls
	MemoryCompilerEnabled  bool          `envconfig:"WORKER_MEMORY_COMPILER_ENABLED" default:"true"` // Requires embeddings credentials
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
