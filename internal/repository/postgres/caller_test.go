package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orpheus/internal/domain/caller"
	"orpheus/internal/testsupport"
	"orpheus/pkg/errors"
)

func TestCallerRepository_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	defer testDB.Close()

	repo := NewCallerRepository(testDB.DB())
	ctx := context.Background()

	c := &caller.Caller{
		ID:             uuid.New(),
		PhoneHash:      randomPhoneHash(),
		PhoneEncrypted: []byte("ciphertext-bytes"),
		DisplayName:    "Ada",
		Locale:         "en-GB",
		CreatedAt:      time.Now().UTC(),
		LastSeenAt:     time.Now().UTC(),
	}

	err := repo.Create(ctx, c)
	require.NoError(t, err)

	retrieved, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, retrieved.ID)
	assert.Equal(t, c.PhoneHash, retrieved.PhoneHash)
	assert.Equal(t, c.PhoneEncrypted, retrieved.PhoneEncrypted)
	assert.Equal(t, "Ada", retrieved.DisplayName)
	assert.Equal(t, int64(0), retrieved.ConversationCount)
}

func TestCallerRepository_GetByPhoneHash(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	defer testDB.Close()

	fixtures := NewTestFixtures(t, testDB.DB())
	hash := randomPhoneHash()
	id := fixtures.CreateCaller(WithPhoneHash(hash))

	repo := NewCallerRepository(testDB.DB())
	ctx := context.Background()

	retrieved, err := repo.GetByPhoneHash(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, id, retrieved.ID)

	// Unknown hash maps to the caller-not-found sentinel
	_, err = repo.GetByPhoneHash(ctx, randomPhoneHash())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCallerNotFound))
}

func TestCallerRepository_UpdateLastSeen(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	defer testDB.Close()

	fixtures := NewTestFixtures(t, testDB.DB())
	id := fixtures.CreateCaller()

	repo := NewCallerRepository(testDB.DB())
	ctx := context.Background()

	err := repo.UpdateLastSeen(ctx, id)
	require.NoError(t, err)

	// Unknown caller is reported, not silently ignored
	err = repo.UpdateLastSeen(ctx, uuid.New())
	assert.True(t, errors.Is(err, errors.ErrCallerNotFound))
}

func TestCallerRepository_UpdateConversationCount(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	defer testDB.Close()

	fixtures := NewTestFixtures(t, testDB.DB())
	id := fixtures.CreateCaller(WithConversationCount(2))

	repo := NewCallerRepository(testDB.DB())
	ctx := context.Background()

	err := repo.UpdateConversationCount(ctx, id, 7)
	require.NoError(t, err)

	retrieved, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(7), retrieved.ConversationCount)
}
