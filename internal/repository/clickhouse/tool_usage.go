package clickhouse

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"orpheus/internal/domain/stats"
)

// Compile-time check
var _ stats.Repository = (*ToolUsageRepository)(nil)

// ToolUsageRepository implements stats.Repository using ClickHouse
type ToolUsageRepository struct {
	conn driver.Conn
}

// NewToolUsageRepository creates a new tool usage repository
func NewToolUsageRepository(conn driver.Conn) *ToolUsageRepository {
	return &ToolUsageRepository{conn: conn}
}

// InsertToolUsageBatch inserts dispatched tool call events
func (r *ToolUsageRepository) InsertToolUsageBatch(ctx context.Context, events []stats.ToolUsageEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, `
		INSERT INTO tool_usage (
			timestamp, call_id, caller_id, tool_name,
			latency_ms, success, output_bytes, error_message
		)
	`)
	if err != nil {
		return err
	}

	for _, event := range events {
		err := batch.Append(
			event.Timestamp, event.CallID, event.CallerID, event.ToolName,
			event.LatencyMs, event.Success, event.OutputBytes, event.ErrorMessage,
		)
		if err != nil {
			return err
		}
	}

	return batch.Send()
}

// AggregateSince rolls up per-tool usage from `since` to now.
// Feeds the daily usage digest posted to operators.
func (r *ToolUsageRepository) AggregateSince(ctx context.Context, since time.Time) ([]stats.ToolUsageAggregated, error) {
	var usage []stats.ToolUsageAggregated

	query := `
		SELECT
			tool_name,
			count() AS call_count,
			countIf(success) AS success_count,
			countIf(NOT success) AS error_count,
			avg(latency_ms) AS avg_latency_ms,
			quantile(0.95)(latency_ms) AS p95_latency_ms,
			sum(toUInt64(output_bytes)) AS output_bytes
		FROM tool_usage
		WHERE timestamp >= ?
		GROUP BY tool_name
		ORDER BY call_count DESC`

	err := r.conn.Select(ctx, &usage, query, since)
	return usage, err
}
