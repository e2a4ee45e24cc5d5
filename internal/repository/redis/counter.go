package redis

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"orpheus/pkg/errors"
)

// ConversationCounter tracks how many conversations each caller has had.
// Backs the greet_user_and_count tool; the counter is authoritative and
// periodically synced onto the Postgres profile.
type ConversationCounter struct {
	client *redis.Client
}

// NewConversationCounter creates a new conversation counter
func NewConversationCounter(client *redis.Client) *ConversationCounter {
	return &ConversationCounter{client: client}
}

// Increment bumps the caller's conversation count and returns the new value
func (c *ConversationCounter) Increment(ctx context.Context, callerID uuid.UUID) (int64, error) {
	count, err := c.client.Incr(ctx, c.getKey(callerID)).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "failed to increment conversation count: caller_id=%s", callerID)
	}
	return count, nil
}

// Get returns the caller's current conversation count (0 if never greeted)
func (c *ConversationCounter) Get(ctx context.Context, callerID uuid.UUID) (int64, error) {
	count, err := c.client.Get(ctx, c.getKey(callerID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrapf(err, "failed to get conversation count: caller_id=%s", callerID)
	}
	return count, nil
}

func (c *ConversationCounter) getKey(callerID uuid.UUID) string {
	return fmt.Sprintf("orpheus:conv_count:%s", callerID)
}
