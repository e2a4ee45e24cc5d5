package workers

import (
	"context"
	"time"

	"orpheus/internal/domain/stats"
)

const reporterName = "usage_reporter"

// DigestSink receives the periodic usage rollup. Satisfied by the
// Telegram notifier.
type DigestSink interface {
	UsageDigest(ctx context.Context, since time.Time, rows []stats.ToolUsageAggregated) error
}

// UsageReporter aggregates tool usage over the reporting window and
// posts the digest to operators.
type UsageReporter struct {
	*BaseWorker
	usage stats.Repository
	sink  DigestSink
}

// NewUsageReporter creates the usage digest worker. The reporting
// window equals the run interval, so consecutive digests tile.
func NewUsageReporter(usage stats.Repository, sink DigestSink, interval time.Duration) *UsageReporter {
	return &UsageReporter{
		BaseWorker: NewBaseWorker(reporterName, interval, true),
		usage:      usage,
		sink:       sink,
	}
}

// Run rolls up the last window of tool usage and sends the digest
func (w *UsageReporter) Run(ctx context.Context) error {
	since := time.Now().Add(-w.Interval())

	rows, err := w.usage.AggregateSince(ctx, since)
	if err != nil {
		return err
	}

	w.Log().Infow("Aggregated tool usage", "tools", len(rows), "since", since)

	return w.sink.UsageDigest(ctx, since, rows)
}
