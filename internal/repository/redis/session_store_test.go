package redis

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orpheus/internal/domain/session"
	"orpheus/internal/testsupport"
	"orpheus/pkg/errors"
)

func TestSessionStore_SaveAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	client := testsupport.NewTestRedis(t)
	store := NewSessionStore(client, time.Hour)
	ctx := context.Background()

	cs := session.New(uuid.New(), "phone", "gpt-4o-realtime-preview", "alloy")

	err := store.Save(ctx, cs)
	require.NoError(t, err)

	retrieved, err := store.Get(ctx, cs.ID)
	require.NoError(t, err)
	assert.Equal(t, cs.ID, retrieved.ID)
	assert.Equal(t, cs.CallerID, retrieved.CallerID)
	assert.Equal(t, session.StateActive, retrieved.State)
}

func TestSessionStore_GetMissing(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	client := testsupport.NewTestRedis(t)
	store := NewSessionStore(client, time.Hour)

	_, err := store.Get(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSessionNotFound))
}

func TestSessionStore_ListActive(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	client := testsupport.NewTestRedis(t)
	store := NewSessionStore(client, time.Hour)
	ctx := context.Background()

	active1 := session.New(uuid.New(), "phone", "gpt-4o-realtime-preview", "alloy")
	active2 := session.New(uuid.New(), "web", "gpt-4o-realtime-preview", "verse")
	require.NoError(t, store.Save(ctx, active1))
	require.NoError(t, store.Save(ctx, active2))

	// A completed session must drop out of the active listing
	done := session.New(uuid.New(), "phone", "gpt-4o-realtime-preview", "alloy")
	require.NoError(t, store.Save(ctx, done))
	require.True(t, done.Transition(session.StateCompleting))
	require.True(t, done.Transition(session.StateCompleted))
	require.NoError(t, store.Save(ctx, done))

	sessions, err := store.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	ids := map[uuid.UUID]bool{}
	for _, s := range sessions {
		ids[s.ID] = true
		assert.False(t, s.State.Terminal())
	}
	assert.True(t, ids[active1.ID])
	assert.True(t, ids[active2.ID])
}

func TestSessionStore_Delete(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	client := testsupport.NewTestRedis(t)
	store := NewSessionStore(client, time.Hour)
	ctx := context.Background()

	cs := session.New(uuid.New(), "phone", "gpt-4o-realtime-preview", "alloy")
	require.NoError(t, store.Save(ctx, cs))

	require.NoError(t, store.Delete(ctx, cs.ID))

	_, err := store.Get(ctx, cs.ID)
	assert.True(t, errors.Is(err, errors.ErrSessionNotFound))

	sessions, err := store.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestConversationCounter(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	client := testsupport.NewTestRedis(t)
	counter := NewConversationCounter(client)
	ctx := context.Background()

	callerID := uuid.New()

	count, err := counter.Get(ctx, callerID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	count, err = counter.Increment(ctx, callerID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = counter.Increment(ctx, callerID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// Counts are per caller
	other, err := counter.Increment(ctx, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, int64(1), other)
}
