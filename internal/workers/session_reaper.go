package workers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"orpheus/internal/domain/session"
	"orpheus/internal/events"
	"orpheus/internal/metrics"
)

const reaperName = "session_reaper"

// LocalCalls reports which calls this process is actively serving.
// Satisfied by the realtime session manager.
type LocalCalls interface {
	Has(id uuid.UUID) bool
}

// SessionReaper fails session records whose connection died without
// cleanup: still non-terminal, no activity past the idle threshold,
// and not served by this process.
type SessionReaper struct {
	*BaseWorker
	store     session.Store
	local     LocalCalls
	publisher events.Publisher
	maxIdle   time.Duration
}

// NewSessionReaper creates the reaper worker
func NewSessionReaper(
	store session.Store,
	local LocalCalls,
	publisher events.Publisher,
	interval time.Duration,
	maxIdle time.Duration,
) *SessionReaper {
	return &SessionReaper{
		BaseWorker: NewBaseWorker(reaperName, interval, true),
		store:      store,
		local:      local,
		publisher:  publisher,
		maxIdle:    maxIdle,
	}
}

// Run sweeps active session records and fails the orphaned ones
func (w *SessionReaper) Run(ctx context.Context) error {
	active, err := w.store.ListActive(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	reaped := 0

	for _, rec := range active {
		if !session.Stale(rec, w.maxIdle, now) {
			continue
		}
		if w.local != nil && w.local.Has(rec.ID) {
			// A live session updates its own activity; if it stops,
			// the manager's duration watchdog cuts it.
			continue
		}

		if err := w.reap(ctx, rec); err != nil {
			w.Log().Errorw("Failed to reap session",
				"call_id", rec.ID,
				"error", err,
			)
			continue
		}
		reaped++
	}

	if reaped > 0 {
		w.Log().Infow("Reaped orphaned sessions", "count", reaped, "scanned", len(active))
	}

	return nil
}

func (w *SessionReaper) reap(ctx context.Context, rec *session.CallSession) error {
	idle := time.Since(rec.LastActivityAt).Round(time.Second)

	rec.EndReason = "reaped: no activity for " + idle.String()
	rec.Transition(session.StateFailed)

	if err := w.store.Save(ctx, rec); err != nil {
		return err
	}

	metrics.SessionsTotal.WithLabelValues("reaped").Inc()

	if w.publisher != nil {
		if err := w.publisher.PublishCallFailed(ctx, rec.ID, rec.CallerID, events.CallFailed{
			Reason:          rec.EndReason,
			DurationSeconds: rec.Duration().Seconds(),
		}); err != nil {
			w.Log().Warnw("Failed to publish reap event", "call_id", rec.ID, "error", err)
		}
	}

	return nil
}
