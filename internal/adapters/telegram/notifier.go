package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"orpheus/internal/adapters/config"
	"orpheus/internal/domain/stats"
	"orpheus/pkg/logger"
)

// Notifier sends structured operator alerts. When alerts are disabled in
// config it is a no-op, so callers never need to check for nil.
type Notifier struct {
	bot *Bot
	log *logger.Logger
}

// CallFailedData carries the details of a call that ended abnormally
type CallFailedData struct {
	CallID    uuid.UUID
	CallerID  uuid.UUID
	Reason    string
	Duration  time.Duration
	ToolCalls int
}

// NewNotifier creates the alert notifier. With alerts disabled it returns
// a notifier that silently drops everything.
func NewNotifier(cfg config.TelegramConfig, log *logger.Logger) (*Notifier, error) {
	n := &Notifier{log: log.With("component", "telegram_notifier")}

	if !cfg.Enabled {
		log.Infow("Telegram alerts disabled")
		return n, nil
	}

	bot, err := NewBot(cfg, log)
	if err != nil {
		return nil, err
	}
	n.bot = bot

	return n, nil
}

// Enabled reports whether alerts actually go anywhere
func (n *Notifier) Enabled() bool {
	return n != nil && n.bot != nil
}

// CallFailed alerts operators about a call that ended abnormally
func (n *Notifier) CallFailed(ctx context.Context, data CallFailedData) error {
	if !n.Enabled() {
		return nil
	}
	return n.bot.Broadcast(ctx, formatCallFailed(data))
}

// SessionLimitReached alerts operators that a new call was rejected
// because the gateway is at its concurrency cap
func (n *Notifier) SessionLimitReached(ctx context.Context, limit int) error {
	if !n.Enabled() {
		return nil
	}
	return n.bot.Broadcast(ctx, formatSessionLimit(limit))
}

// UpstreamCircuitOpen alerts operators that reconnection to the realtime
// provider gave up mid-call
func (n *Notifier) UpstreamCircuitOpen(ctx context.Context, callID uuid.UUID, reason string) error {
	if !n.Enabled() {
		return nil
	}
	return n.bot.Broadcast(ctx, formatCircuitOpen(callID, reason))
}

// UsageDigest sends the periodic tool-usage rollup
func (n *Notifier) UsageDigest(ctx context.Context, since time.Time, rows []stats.ToolUsageAggregated) error {
	if !n.Enabled() {
		return nil
	}
	return n.bot.Broadcast(ctx, formatUsageDigest(since, rows))
}

func formatCallFailed(data CallFailedData) string {
	var sb strings.Builder

	sb.WriteString("🚨 *Call failed*\n\n")
	fmt.Fprintf(&sb, "Call: `%s`\n", data.CallID)
	fmt.Fprintf(&sb, "Caller: `%s`\n", data.CallerID)
	fmt.Fprintf(&sb, "Reason: %s\n", data.Reason)
	fmt.Fprintf(&sb, "Duration: %s\n", data.Duration.Round(time.Second))
	fmt.Fprintf(&sb, "Tool calls: %d", data.ToolCalls)

	return sb.String()
}

func formatSessionLimit(limit int) string {
	return fmt.Sprintf("⚠️ *Session limit reached*\n\nGateway is at its cap of %d concurrent calls; a new call was rejected.", limit)
}

func formatCircuitOpen(callID uuid.UUID, reason string) string {
	var sb strings.Builder

	sb.WriteString("🔌 *Upstream circuit open*\n\n")
	fmt.Fprintf(&sb, "Call: `%s`\n", callID)
	fmt.Fprintf(&sb, "Reason: %s\n", reason)
	sb.WriteString("Reconnection to the realtime provider gave up; the call was failed.")

	return sb.String()
}

func formatUsageDigest(since time.Time, rows []stats.ToolUsageAggregated) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "📊 *Tool usage since %s*\n\n", since.UTC().Format("Jan 2 15:04 MST"))

	if len(rows) == 0 {
		sb.WriteString("No tool calls in this window.")
		return sb.String()
	}

	var totalCalls, totalErrors uint64
	for _, row := range rows {
		totalCalls += row.CallCount
		totalErrors += row.ErrorCount

		successPct := 0.0
		if row.CallCount > 0 {
			successPct = float64(row.SuccessCount) / float64(row.CallCount) * 100
		}

		fmt.Fprintf(&sb, "`%s`: %s calls, %.1f%% ok, avg %.0fms, p95 %.0fms\n",
			row.ToolName,
			humanize.Comma(int64(row.CallCount)),
			successPct,
			row.AvgLatencyMs,
			row.P95LatencyMs,
		)
	}

	fmt.Fprintf(&sb, "\nTotal: %s calls across %d tools, %s errors",
		humanize.Comma(int64(totalCalls)),
		len(rows),
		humanize.Comma(int64(totalErrors)),
	)

	return sb.String()
}
