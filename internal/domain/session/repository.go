package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store defines the interface for call session persistence (Redis)
type Store interface {
	// Save upserts the session record with the configured TTL
	Save(ctx context.Context, s *CallSession) error

	// Get retrieves a session by call ID
	Get(ctx context.Context, id uuid.UUID) (*CallSession, error)

	// Delete removes a session record
	Delete(ctx context.Context, id uuid.UUID) error

	// ListActive returns all sessions currently in a non-terminal state
	ListActive(ctx context.Context) ([]*CallSession, error)
}

// Stale reports whether the session's last activity is older than maxIdle.
// Used by the reaper to spot calls whose WebSocket died without cleanup.
func Stale(s *CallSession, maxIdle time.Duration, now time.Time) bool {
	return now.Sub(s.LastActivityAt) > maxIdle
}
