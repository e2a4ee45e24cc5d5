package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Repository defines the interface for caller memory data access
// (Postgres + pgvector)
type Repository interface {
	Store(ctx context.Context, m *Memory) error
	GetByID(ctx context.Context, id uuid.UUID) (*Memory, error)

	// SearchSimilar returns the caller's memories nearest to the query
	// embedding, ordered by cosine distance.
	SearchSimilar(ctx context.Context, callerID uuid.UUID, embedding pgvector.Vector, limit int) ([]*Recall, error)

	// MarkRecalled stamps last_recalled_at for retrieval bookkeeping.
	MarkRecalled(ctx context.Context, ids []uuid.UUID) error

	CountByCaller(ctx context.Context, callerID uuid.UUID) (int64, error)
}
