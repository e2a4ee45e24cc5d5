package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"orpheus/pkg/errors"
	"orpheus/pkg/logger"
)

// Embedder produces vector embeddings for memory contents and recall
// queries. Satisfied by the embeddings adapter's provider.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Name() string
}

// Service provides remember/recall operations over caller memories.
type Service struct {
	repo     Repository
	embedder Embedder
	log      *logger.Logger
}

// NewService constructs a memory service.
func NewService(repo Repository, embedder Embedder) *Service {
	return &Service{
		repo:     repo,
		embedder: embedder,
		log:      logger.Get().With("component", "memory_service"),
	}
}

// Remember embeds content and stores it as a durable memory for the caller.
func (s *Service) Remember(ctx context.Context, callerID uuid.UUID, sourceCallID *uuid.UUID, content string, importance float64) (*Memory, error) {
	if callerID == uuid.Nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "caller id is required")
	}
	if content == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "memory content is empty")
	}
	if importance <= 0 || importance > 1 {
		importance = 0.5
	}

	vec, err := s.embedder.GenerateEmbedding(ctx, content)
	if err != nil {
		return nil, errors.Wrap(err, "failed to embed memory content")
	}

	m := &Memory{
		ID:                  uuid.New(),
		CallerID:            callerID,
		SourceCallID:        sourceCallID,
		Content:             content,
		Embedding:           pgvector.NewVector(vec),
		EmbeddingModel:      s.embedder.Name(),
		EmbeddingDimensions: s.embedder.Dimensions(),
		Importance:          importance,
		CreatedAt:           time.Now().UTC(),
	}

	if err := s.repo.Store(ctx, m); err != nil {
		return nil, errors.Wrap(err, "failed to store memory")
	}

	s.log.Debugw("Memory stored", "caller_id", callerID, "memory_id", m.ID)
	return m, nil
}

// Recall embeds the query and returns the caller's nearest memories.
// Recalled memories are stamped so retrieval frequency can inform later
// compaction.
func (s *Service) Recall(ctx context.Context, callerID uuid.UUID, query string, limit int) ([]*Recall, error) {
	if callerID == uuid.Nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "caller id is required")
	}
	if query == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "recall query is empty")
	}
	if limit <= 0 {
		limit = 5
	}

	vec, err := s.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to embed recall query")
	}

	hits, err := s.repo.SearchSimilar(ctx, callerID, pgvector.NewVector(vec), limit)
	if err != nil {
		return nil, errors.Wrap(err, "memory search failed")
	}

	if len(hits) > 0 {
		ids := make([]uuid.UUID, len(hits))
		for i, h := range hits {
			ids[i] = h.ID
		}
		if err := s.repo.MarkRecalled(ctx, ids); err != nil {
			// Bookkeeping only; the recall itself succeeded.
			s.log.Warnw("Failed to mark memories recalled", "error", err)
		}
	}

	return hits, nil
}
