package test

import (
	"context"
	"time"

	"github.com/google/uuid"

	"orpheus/internal/domain/caller"
	"orpheus/internal/seeds"
	"orpheus/pkg/errors"
)

// TestCallerPhone is the fixture number end-to-end tests dial in with
const TestCallerPhone = "+19995550100"

// SeedCallers provisions the single deterministic caller the
// integration environment expects
func SeedCallers(ctx context.Context, d *seeds.Deps) error {
	normalized, err := caller.NormalizePhone(TestCallerPhone)
	if err != nil {
		return err
	}

	hash := caller.HashPhone(normalized)
	if _, err := d.Callers.GetByPhoneHash(ctx, hash); err == nil {
		return nil
	} else if !errors.Is(err, errors.ErrCallerNotFound) {
		return errors.Wrap(err, "lookup test caller")
	}

	ciphertext, err := d.Encryptor.Encrypt(normalized)
	if err != nil {
		return errors.Wrap(err, "encrypt phone")
	}

	now := time.Now().UTC()
	return d.Callers.Create(ctx, &caller.Caller{
		ID:             uuid.New(),
		PhoneHash:      hash,
		PhoneEncrypted: ciphertext,
		DisplayName:    "Test Caller",
		Locale:         "en-US",
		CreatedAt:      now,
		LastSeenAt:     now,
	})
}
