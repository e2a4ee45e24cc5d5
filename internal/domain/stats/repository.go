package stats

import (
	"context"
	"time"
)

// Repository defines the interface for tool usage statistics data access
// (ClickHouse)
type Repository interface {
	InsertToolUsageBatch(ctx context.Context, events []ToolUsageEvent) error

	// AggregateSince rolls up per-tool usage from `since` to now.
	AggregateSince(ctx context.Context, since time.Time) ([]ToolUsageAggregated, error)
}
