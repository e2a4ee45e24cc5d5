package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"orpheus/internal/domain/memory"
	"orpheus/pkg/errors"
)

// Compile-time check
var _ memory.Repository = (*MemoryRepository)(nil)

// MemoryRepository implements memory.Repository using sqlx and pgvector
type MemoryRepository struct {
	db DBTX
}

// NewMemoryRepository creates a new memory repository
func NewMemoryRepository(db DBTX) *MemoryRepository {
	return &MemoryRepository{db: db}
}

// Store inserts a new memory
func (r *MemoryRepository) Store(ctx context.Context, m *memory.Memory) error {
	query := `
		INSERT INTO memories (
			id, caller_id, source_call_id, content, embedding,
			embedding_model, embedding_dimensions, importance, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)`

	_, err := r.db.ExecContext(ctx, query,
		m.ID, m.CallerID, m.SourceCallID, m.Content, m.Embedding,
		m.EmbeddingModel, m.EmbeddingDimensions, m.Importance, m.CreatedAt,
	)

	return err
}

// GetByID retrieves a memory by ID
func (r *MemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*memory.Memory, error) {
	var m memory.Memory

	query := `
		SELECT id, caller_id, source_call_id, content, embedding,
			   embedding_model, embedding_dimensions, importance,
			   created_at, last_recalled_at
		FROM memories
		WHERE id = $1`

	err := r.db.GetContext(ctx, &m, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(errors.ErrNotFound, "memory not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "get memory by id")
	}

	return &m, nil
}

// SearchSimilar performs semantic search using pgvector cosine similarity.
// Results are scoped to one caller; memories never leak across callers.
func (r *MemoryRepository) SearchSimilar(ctx context.Context, callerID uuid.UUID, embedding pgvector.Vector, limit int) ([]*memory.Recall, error) {
	var recalls []*memory.Recall

	query := `
		SELECT id, caller_id, source_call_id, content, embedding,
			   embedding_model, embedding_dimensions, importance,
			   created_at, last_recalled_at,
			   1 - (embedding <=> $2) AS similarity
		FROM memories
		WHERE caller_id = $1
		ORDER BY embedding <=> $2
		LIMIT $3`

	err := r.db.SelectContext(ctx, &recalls, query, callerID, embedding, limit)
	if err != nil {
		return nil, errors.Wrap(err, "search similar memories")
	}

	return recalls, nil
}

// MarkRecalled stamps last_recalled_at for retrieval bookkeeping
func (r *MemoryRepository) MarkRecalled(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE memories SET last_recalled_at = NOW() WHERE id = ANY($1)`,
		pq.Array(ids),
	)

	return err
}

// CountByCaller returns the number of memories stored for a caller
func (r *MemoryRepository) CountByCaller(ctx context.Context, callerID uuid.UUID) (int64, error) {
	var count int64

	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM memories WHERE caller_id = $1`, callerID)
	if err != nil {
		return 0, errors.Wrap(err, "count memories")
	}

	return count, nil
}
