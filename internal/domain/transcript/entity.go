package transcript

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Role identifies the speaker of a transcript entry
type Role string

const (
	RoleCaller    Role = "caller"
	RoleAssistant Role = "assistant"
)

// Entry is one finalized utterance within a call
type Entry struct {
	CallID   uuid.UUID `ch:"call_id"`
	CallerID uuid.UUID `ch:"caller_id"`
	Seq      uint32    `ch:"seq"`
	Role     Role      `ch:"role"`
	Text     string    `ch:"text"`
	At       time.Time `ch:"at"`
}

// Repository defines the interface for transcript analytics storage
// (ClickHouse)
type Repository interface {
	InsertBatch(ctx context.Context, entries []Entry) error

	// GetByCall returns the full transcript of one call in order.
	GetByCall(ctx context.Context, callID uuid.UUID) ([]Entry, error)
}
