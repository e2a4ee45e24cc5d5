package metrics

import (
	"context"
	"time"

	"orpheus/pkg/logger"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

const activeSessionsKey = "orpheus:sessions:active"

// CustomCollector collects gauge-style metrics straight from the
// datastores on every scrape
type CustomCollector struct {
	log        *logger.Logger
	postgres   *sqlx.DB
	clickhouse driver.Conn
	redis      *redis.Client

	// Descriptors
	totalCallers    *prometheus.Desc
	totalMemories   *prometheus.Desc
	sessionsTracked *prometheus.Desc
	toolCalls24h    *prometheus.Desc
	transcripts24h  *prometheus.Desc
}

// NewCustomCollector creates a collector backed by the live database handles
func NewCustomCollector(log *logger.Logger, postgres *sqlx.DB, clickhouse driver.Conn, redis *redis.Client) *CustomCollector {
	return &CustomCollector{
		log:        log,
		postgres:   postgres,
		clickhouse: clickhouse,
		redis:      redis,

		totalCallers: prometheus.NewDesc(
			"orpheus_total_callers",
			"Total number of known callers",
			nil, nil,
		),
		totalMemories: prometheus.NewDesc(
			"orpheus_total_memories",
			"Total number of stored long-term memories",
			nil, nil,
		),
		sessionsTracked: prometheus.NewDesc(
			"orpheus_sessions_tracked",
			"Number of session records in the active set",
			nil, nil,
		),
		toolCalls24h: prometheus.NewDesc(
			"orpheus_tool_calls_24h",
			"Tool executions recorded in the last 24h",
			nil, nil,
		),
		transcripts24h: prometheus.NewDesc(
			"orpheus_transcript_entries_24h",
			"Transcript entries recorded in the last 24h",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *CustomCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalCallers
	ch <- c.totalMemories
	ch <- c.sessionsTracked
	ch <- c.toolCalls24h
	ch <- c.transcripts24h
}

// Collect implements prometheus.Collector
func (c *CustomCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.collectCallerCount(ctx, ch)
	c.collectMemoryCount(ctx, ch)
	c.collectTrackedSessions(ctx, ch)
	c.collectToolCalls(ctx, ch)
	c.collectTranscriptEntries(ctx, ch)
}

func (c *CustomCollector) collectCallerCount(ctx context.Context, ch chan<- prometheus.Metric) {
	var count int
	err := c.postgres.GetContext(ctx, &count, "SELECT COUNT(*) FROM callers")
	if err != nil {
		c.log.Errorw("Failed to collect caller count metric", "error", err)
		return
	}

	ch <- prometheus.MustNewConstMetric(
		c.totalCallers,
		prometheus.GaugeValue,
		float64(count),
	)
}

func (c *CustomCollector) collectMemoryCount(ctx context.Context, ch chan<- prometheus.Metric) {
	var count int
	err := c.postgres.GetContext(ctx, &count, "SELECT COUNT(*) FROM memories")
	if err != nil {
		c.log.Errorw("Failed to collect memory count metric", "error", err)
		return
	}

	ch <- prometheus.MustNewConstMetric(
		c.totalMemories,
		prometheus.GaugeValue,
		float64(count),
	)
}

func (c *CustomCollector) collectTrackedSessions(ctx context.Context, ch chan<- prometheus.Metric) {
	count, err := c.redis.SCard(ctx, activeSessionsKey).Result()
	if err != nil {
		c.log.Errorw("Failed to collect tracked session metric", "error", err)
		return
	}

	ch <- prometheus.MustNewConstMetric(
		c.sessionsTracked,
		prometheus.GaugeValue,
		float64(count),
	)
}

func (c *CustomCollector) collectToolCalls(ctx context.Context, ch chan<- prometheus.Metric) {
	var count uint64
	row := c.clickhouse.QueryRow(ctx,
		"SELECT count() FROM tool_usage WHERE timestamp > now() - INTERVAL 24 HOUR")
	if err := row.Scan(&count); err != nil {
		c.log.Errorw("Failed to collect tool call metric", "error", err)
		return
	}

	ch <- prometheus.MustNewConstMetric(
		c.toolCalls24h,
		prometheus.GaugeValue,
		float64(count),
	)
}

func (c *CustomCollector) collectTranscriptEntries(ctx context.Context, ch chan<- prometheus.Metric) {
	var count uint64
	row := c.clickhouse.QueryRow(ctx,
		"SELECT count() FROM transcripts WHERE at > now() - INTERVAL 24 HOUR")
	if err := row.Scan(&count); err != nil {
		c.log.Errorw("Failed to collect transcript metric", "error", err)
		return
	}

	ch <- prometheus.MustNewConstMetric(
		c.transcripts24h,
		prometheus.GaugeValue,
		float64(count),
	)
}

// RegisterCustomCollector registers the custom collector
func RegisterCustomCollector(collector *CustomCollector) {
	prometheus.MustRegister(collector)
}
