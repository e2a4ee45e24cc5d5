package dev

import (
	"context"
	"time"

	"github.com/google/uuid"

	"orpheus/internal/domain/caller"
	"orpheus/internal/seeds"
	"orpheus/pkg/errors"
)

// SeedCallers provisions demo caller profiles for local development.
// Numbers are stable so repeated runs are no-ops, and the logged UUIDs
// feed straight into scripts/mint_token.go.
func SeedCallers(ctx context.Context, d *seeds.Deps) error {
	demo := []struct {
		phone       string
		displayName string
		locale      string
	}{
		{"+14155550101", "Ada", "en-US"},
		{"+14155550102", "Grace", "en-GB"},
		{"+34600555103", "Jorge", "es-ES"},
	}

	for _, row := range demo {
		normalized, err := caller.NormalizePhone(row.phone)
		if err != nil {
			return errors.Wrapf(err, "normalize %s", row.phone)
		}

		hash := caller.HashPhone(normalized)
		existing, err := d.Callers.GetByPhoneHash(ctx, hash)
		if err == nil {
			d.Log.Infow("Caller already provisioned",
				"caller_id", existing.ID,
				"display_name", existing.DisplayName,
			)
			continue
		}
		if !errors.Is(err, errors.ErrCallerNotFound) {
			return errors.Wrapf(err, "lookup %s", row.displayName)
		}

		ciphertext, err := d.Encryptor.Encrypt(normalized)
		if err != nil {
			return errors.Wrap(err, "encrypt phone")
		}

		now := time.Now().UTC()
		c := &caller.Caller{
			ID:             uuid.New(),
			PhoneHash:      hash,
			PhoneEncrypted: ciphertext,
			DisplayName:    row.displayName,
			Locale:         row.locale,
			CreatedAt:      now,
			LastSeenAt:     now,
		}
		if err := d.Callers.Create(ctx, c); err != nil {
			return errors.Wrapf(err, "create %s", row.displayName)
		}

		d.Log.Infow("Provisioned caller",
			"caller_id", c.ID,
			"display_name", c.DisplayName,
			"locale", c.Locale,
		)
	}

	return nil
}
