package seeds

import (
	"context"

	"orpheus/internal/domain/caller"
	"orpheus/pkg/crypto"
	"orpheus/pkg/logger"
)

// Deps carries what seed functions may touch. Seeds go through the same
// repositories as the service so schema constraints stay honest.
type Deps struct {
	Callers   caller.Repository
	Encryptor *crypto.Encryptor
	Log       *logger.Logger
}

// Func is one ordered seeding step
type Func func(ctx context.Context, d *Deps) error
