package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orpheus/internal/domain/memory"
	"orpheus/internal/testsupport"
)

// createTestEmbedding creates a dummy embedding vector for testing
func createTestEmbedding(dimensions int, seed float32) pgvector.Vector {
	slice := make([]float32, dimensions)
	for i := range slice {
		slice[i] = seed + float32(i)*0.001
	}
	return pgvector.NewVector(slice)
}

func TestMemoryRepository_StoreAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	defer testDB.Close()

	fixtures := NewTestFixtures(t, testDB.DB())
	callerID := fixtures.CreateCaller()
	callID := fixtures.CreateCallSession(callerID)

	repo := NewMemoryRepository(testDB.DB())
	ctx := context.Background()

	m := &memory.Memory{
		ID:                  uuid.New(),
		CallerID:            callerID,
		SourceCallID:        &callID,
		Content:             "Prefers to be called by first name",
		Embedding:           createTestEmbedding(1536, 0.1),
		EmbeddingModel:      "text-embedding-3-small",
		EmbeddingDimensions: 1536,
		Importance:          0.8,
		CreatedAt:           time.Now().UTC(),
	}

	err := repo.Store(ctx, m)
	require.NoError(t, err)

	retrieved, err := repo.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, retrieved.ID)
	assert.Equal(t, callerID, retrieved.CallerID)
	assert.Equal(t, m.Content, retrieved.Content)
	assert.Nil(t, retrieved.LastRecalledAt)
}

func TestMemoryRepository_SearchSimilar(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	defer testDB.Close()

	fixtures := NewTestFixtures(t, testDB.DB())
	callerID := fixtures.CreateCaller()
	otherCallerID := fixtures.CreateCaller()

	repo := NewMemoryRepository(testDB.DB())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		m := &memory.Memory{
			ID:                  uuid.New(),
			CallerID:            callerID,
			Content:             "Memory for caller under test",
			Embedding:           createTestEmbedding(1536, float32(i)),
			EmbeddingModel:      "text-embedding-3-small",
			EmbeddingDimensions: 1536,
			Importance:          0.5,
			CreatedAt:           time.Now().UTC(),
		}
		require.NoError(t, repo.Store(ctx, m))
	}

	// A memory belonging to a different caller must never surface
	foreign := &memory.Memory{
		ID:                  uuid.New(),
		CallerID:            otherCallerID,
		Content:             "Memory for another caller",
		Embedding:           createTestEmbedding(1536, 0),
		EmbeddingModel:      "text-embedding-3-small",
		EmbeddingDimensions: 1536,
		Importance:          0.5,
		CreatedAt:           time.Now().UTC(),
	}
	require.NoError(t, repo.Store(ctx, foreign))

	results, err := repo.SearchSimilar(ctx, callerID, createTestEmbedding(1536, 0), 3)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 3)
	require.NotEmpty(t, results)

	for _, r := range results {
		assert.Equal(t, callerID, r.CallerID)
	}

	// Nearest-first ordering: similarity never increases down the list
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Similarity, results[i].Similarity)
	}
}

func TestMemoryRepository_MarkRecalled(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	defer testDB.Close()

	fixtures := NewTestFixtures(t, testDB.DB())
	callerID := fixtures.CreateCaller()
	memID := fixtures.CreateMemory(callerID)

	repo := NewMemoryRepository(testDB.DB())
	ctx := context.Background()

	err := repo.MarkRecalled(ctx, []uuid.UUID{memID})
	require.NoError(t, err)

	retrieved, err := repo.GetByID(ctx, memID)
	require.NoError(t, err)
	assert.NotNil(t, retrieved.LastRecalledAt)

	// Empty batch is a no-op, not an error
	require.NoError(t, repo.MarkRecalled(ctx, nil))
}

func TestMemoryRepository_CountByCaller(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	defer testDB.Close()

	fixtures := NewTestFixtures(t, testDB.DB())
	callerID := fixtures.CreateCaller()

	fixtures.CreateMemory(callerID)
	fixtures.CreateMemory(callerID)
	fixtures.CreateMemory(callerID)

	repo := NewMemoryRepository(testDB.DB())
	ctx := context.Background()

	count, err := repo.CountByCaller(ctx, callerID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	count, err = repo.CountByCaller(ctx, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
