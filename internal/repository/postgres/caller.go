package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"orpheus/internal/domain/caller"
	"orpheus/pkg/errors"
)

// Compile-time check that we implement the interface
var _ caller.Repository = (*CallerRepository)(nil)

// CallerRepository implements caller.Repository using sqlx
type CallerRepository struct {
	db DBTX
}

// NewCallerRepository creates a new caller repository
func NewCallerRepository(db DBTX) *CallerRepository {
	return &CallerRepository{db: db}
}

// Create inserts a new caller profile
func (r *CallerRepository) Create(ctx context.Context, c *caller.Caller) error {
	query := `
		INSERT INTO callers (
			id, phone_hash, phone_encrypted, display_name, locale,
			conversation_count, created_at, last_seen_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)`

	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.PhoneHash, c.PhoneEncrypted, c.DisplayName, c.Locale,
		c.ConversationCount, c.CreatedAt, c.LastSeenAt,
	)

	return err
}

// GetByID retrieves a caller by ID
func (r *CallerRepository) GetByID(ctx context.Context, id uuid.UUID) (*caller.Caller, error) {
	var c caller.Caller

	query := `
		SELECT id, phone_hash, phone_encrypted, display_name, locale,
			   conversation_count, created_at, last_seen_at
		FROM callers
		WHERE id = $1`

	err := r.db.GetContext(ctx, &c, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(errors.ErrCallerNotFound, "caller not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "get caller by id")
	}

	return &c, nil
}

// GetByPhoneHash retrieves a caller by the hashed phone number
func (r *CallerRepository) GetByPhoneHash(ctx context.Context, phoneHash string) (*caller.Caller, error) {
	var c caller.Caller

	query := `
		SELECT id, phone_hash, phone_encrypted, display_name, locale,
			   conversation_count, created_at, last_seen_at
		FROM callers
		WHERE phone_hash = $1`

	err := r.db.GetContext(ctx, &c, query, phoneHash)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(errors.ErrCallerNotFound, "caller not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "get caller by phone hash")
	}

	return &c, nil
}

// UpdateLastSeen stamps last_seen_at on call start
func (r *CallerRepository) UpdateLastSeen(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE callers SET last_seen_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "update last seen")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.ErrCallerNotFound
	}

	return nil
}

// UpdateConversationCount syncs the Redis greeting counter onto the profile
func (r *CallerRepository) UpdateConversationCount(ctx context.Context, id uuid.UUID, count int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE callers SET conversation_count = $2 WHERE id = $1`, id, count)
	if err != nil {
		return errors.Wrap(err, "update conversation count")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.ErrCallerNotFound
	}

	return nil
}
