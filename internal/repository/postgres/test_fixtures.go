package postgres

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/require"
)

// randomPhoneHash generates unique phone hashes for tests
func randomPhoneHash() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("+1555%07d", rand.Intn(10000000))))
	return hex.EncodeToString(sum[:])
}

// TestFixtures provides factory methods for creating test data
type TestFixtures struct {
	db *sqlx.DB
	t  *testing.T
}

// NewTestFixtures creates a new test fixtures factory
func NewTestFixtures(t *testing.T, db *sqlx.DB) *TestFixtures {
	t.Helper()
	return &TestFixtures{
		db: db,
		t:  t,
	}
}

// CreateCaller creates a test caller in the database
func (f *TestFixtures) CreateCaller(opts ...func(*CallerFixture)) uuid.UUID {
	f.t.Helper()

	fixture := &CallerFixture{
		PhoneHash:   randomPhoneHash(),
		DisplayName: fmt.Sprintf("Test Caller %d", rand.Intn(999999)),
		Locale:      "en-US",
	}

	for _, opt := range opts {
		opt(fixture)
	}

	id := uuid.New()
	query := `INSERT INTO callers (id, phone_hash, phone_encrypted, display_name, locale, conversation_count, created_at, last_seen_at)
			  VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())`

	_, err := f.db.Exec(query, id, fixture.PhoneHash, []byte("encrypted_phone"),
		fixture.DisplayName, fixture.Locale, fixture.ConversationCount)
	require.NoError(f.t, err, "Failed to create test caller")

	return id
}

// CreateMemory creates a test memory in the database
func (f *TestFixtures) CreateMemory(callerID uuid.UUID, opts ...func(*MemoryFixture)) uuid.UUID {
	f.t.Helper()

	fixture := &MemoryFixture{
		Content:    "Test memory content",
		Importance: 0.5,
		Embedding:  zeroEmbedding(1536),
	}

	for _, opt := range opts {
		opt(fixture)
	}

	id := uuid.New()
	query := `INSERT INTO memories (id, caller_id, source_call_id, content, embedding, embedding_model, embedding_dimensions, importance, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`

	_, err := f.db.Exec(query, id, callerID, fixture.SourceCallID, fixture.Content,
		fixture.Embedding, "text-embedding-3-small", 1536, fixture.Importance)
	require.NoError(f.t, err, "Failed to create test memory")

	return id
}

// CreateCallSession creates a finished call session row for analytics tests
func (f *TestFixtures) CreateCallSession(callerID uuid.UUID) uuid.UUID {
	f.t.Helper()

	id := uuid.New()
	query := `INSERT INTO call_sessions (id, caller_id, channel, state, model, voice, started_at, last_activity_at, ended_at, tool_calls, cost_usd)
			  VALUES ($1, $2, 'phone', 'completed', 'gpt-4o-realtime-preview', 'alloy', $3, NOW(), NOW(), 0, 0)`

	_, err := f.db.Exec(query, id, callerID, time.Now().Add(-5*time.Minute))
	require.NoError(f.t, err, "Failed to create test call session")

	return id
}

// zeroEmbedding builds a constant vector for tests that do not assert on similarity
func zeroEmbedding(dimensions int) pgvector.Vector {
	return pgvector.NewVector(make([]float32, dimensions))
}

// Fixture option types
type CallerFixture struct {
	PhoneHash         string
	DisplayName       string
	Locale            string
	ConversationCount int64
}

type MemoryFixture struct {
	SourceCallID *uuid.UUID
	Content      string
	Importance   float64
	Embedding    pgvector.Vector
}

// Option builders for common customizations
func WithPhoneHash(hash string) func(*CallerFixture) {
	return func(f *CallerFixture) {
		f.PhoneHash = hash
	}
}

func WithDisplayName(name string) func(*CallerFixture) {
	return func(f *CallerFixture) {
		f.DisplayName = name
	}
}

func WithConversationCount(count int64) func(*CallerFixture) {
	return func(f *CallerFixture) {
		f.ConversationCount = count
	}
}

func WithMemoryContent(content string) func(*MemoryFixture) {
	return func(f *MemoryFixture) {
		f.Content = content
	}
}

func WithMemoryEmbedding(embedding pgvector.Vector) func(*MemoryFixture) {
	return func(f *MemoryFixture) {
		f.Embedding = embedding
	}
}

func WithMemoryImportance(importance float64) func(*MemoryFixture) {
	return func(f *MemoryFixture) {
		f.Importance = importance
	}
}
