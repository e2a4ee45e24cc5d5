package memory

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Memory is one durable fact about a caller, distilled from finished
// calls and recalled by vector similarity during later conversations.
type Memory struct {
	ID       uuid.UUID `db:"id"`
	CallerID uuid.UUID `db:"caller_id"`

	// SourceCallID links the memory to the call it was distilled from.
	SourceCallID *uuid.UUID `db:"source_call_id"`

	Content string `db:"content"`

	// Embedding metadata; model name is kept so a provider change does
	// not silently mix vector spaces.
	Embedding           pgvector.Vector `db:"embedding"`
	EmbeddingModel      string          `db:"embedding_model"`
	EmbeddingDimensions int             `db:"embedding_dimensions"`

	// Importance ranks recall candidates (0-1).
	Importance float64 `db:"importance"`

	CreatedAt      time.Time  `db:"created_at"`
	LastRecalledAt *time.Time `db:"last_recalled_at"`
}

// Recall is a search hit: the memory plus its cosine similarity to the
// query embedding.
type Recall struct {
	Memory
	Similarity float64 `db:"similarity"`
}
