package stats

import (
	"time"

	"github.com/google/uuid"
)

// ToolUsageEvent represents a single dispatched tool call (for insertion)
type ToolUsageEvent struct {
	Timestamp time.Time `ch:"timestamp"`
	CallID    uuid.UUID `ch:"call_id"`
	CallerID  uuid.UUID `ch:"caller_id"`
	ToolName  string    `ch:"tool_name"`

	LatencyMs   int64 `ch:"latency_ms"`
	Success     bool  `ch:"success"`
	OutputBytes int32 `ch:"output_bytes"`

	ErrorMessage string `ch:"error_message"`
}

// ToolUsageAggregated represents per-tool usage rolled up over a window
type ToolUsageAggregated struct {
	ToolName string `ch:"tool_name"`

	CallCount    uint64  `ch:"call_count"`
	SuccessCount uint64  `ch:"success_count"`
	ErrorCount   uint64  `ch:"error_count"`
	AvgLatencyMs float64 `ch:"avg_latency_ms"`
	P95LatencyMs float64 `ch:"p95_latency_ms"`
	OutputBytes  uint64  `ch:"output_bytes"`
}
