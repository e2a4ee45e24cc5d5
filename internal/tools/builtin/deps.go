package builtin

import (
	"context"

	"github.com/google/uuid"

	"orpheus/internal/domain/caller"
	"orpheus/internal/domain/memory"
)

// ConversationCounter tracks greetings per caller. Satisfied by the
// Redis counter repository.
type ConversationCounter interface {
	Increment(ctx context.Context, callerID uuid.UUID) (int64, error)
	Get(ctx context.Context, callerID uuid.UUID) (int64, error)
}

// Deps holds the static dependencies shared by the builtin catalog.
// Per-call data travels separately via Env.
type Deps struct {
	Callers  caller.Repository
	Counter  ConversationCounter
	Memories *memory.Service
}
