package caller

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for caller profile data access (Postgres)
type Repository interface {
	Create(ctx context.Context, c *Caller) error
	GetByID(ctx context.Context, id uuid.UUID) (*Caller, error)
	GetByPhoneHash(ctx context.Context, phoneHash string) (*Caller, error)
	UpdateLastSeen(ctx context.Context, id uuid.UUID) error
	UpdateConversationCount(ctx context.Context, id uuid.UUID, count int64) error
}
