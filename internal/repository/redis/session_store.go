package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"orpheus/internal/domain/session"
	"orpheus/pkg/errors"
	"orpheus/pkg/logger"
)

const activeSetKey = "orpheus:sessions:active"

// Compile-time check
var _ session.Store = (*SessionStore)(nil)

// SessionStore implements session.Store using Redis.
// Each session is a JSON value under orpheus:session:<id> with a TTL;
// a companion set tracks the IDs of non-terminal sessions so the
// reaper can enumerate them without SCAN.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewSessionStore creates a new call session store
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client: client,
		ttl:    ttl,
		log:    logger.Get().With("component", "session_store"),
	}
}

// Save upserts the session record with the configured TTL
func (s *SessionStore) Save(ctx context.Context, cs *session.CallSession) error {
	key := s.getKey(cs.ID)

	data, err := json.Marshal(cs)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal session: call_id=%s", cs.ID)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, data, s.ttl)
	if cs.State.Terminal() {
		pipe.SRem(ctx, activeSetKey, cs.ID.String())
	} else {
		pipe.SAdd(ctx, activeSetKey, cs.ID.String())
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrapf(err, "failed to save session to redis: call_id=%s", cs.ID)
	}

	return nil
}

// Get retrieves a session by call ID
func (s *SessionStore) Get(ctx context.Context, id uuid.UUID) (*session.CallSession, error) {
	data, err := s.client.Get(ctx, s.getKey(id)).Result()
	if err == redis.Nil {
		return nil, errors.Wrapf(errors.ErrSessionNotFound, "session not found: call_id=%s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get session from redis: call_id=%s", id)
	}

	var cs session.CallSession
	if err := json.Unmarshal([]byte(data), &cs); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal session: call_id=%s", id)
	}

	return &cs, nil
}

// Delete removes a session record
func (s *SessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.getKey(id))
	pipe.SRem(ctx, activeSetKey, id.String())

	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrapf(err, "failed to delete session from redis: call_id=%s", id)
	}

	return nil
}

// ListActive returns all sessions currently in a non-terminal state.
// Entries whose JSON key expired are pruned from the active set as a
// side effect.
func (s *SessionStore) ListActive(ctx context.Context) ([]*session.CallSession, error) {
	ids, err := s.client.SMembers(ctx, activeSetKey).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list active session ids")
	}

	sessions := make([]*session.CallSession, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.log.Warnf("Dropping malformed session id from active set: %s", raw)
			s.client.SRem(ctx, activeSetKey, raw)
			continue
		}

		cs, err := s.Get(ctx, id)
		if errors.Is(err, errors.ErrSessionNotFound) {
			// TTL outlived the set entry
			s.client.SRem(ctx, activeSetKey, raw)
			continue
		}
		if err != nil {
			return nil, err
		}

		sessions = append(sessions, cs)
	}

	return sessions, nil
}

func (s *SessionStore) getKey(id uuid.UUID) string {
	return fmt.Sprintf("orpheus:session:%s", id)
}
