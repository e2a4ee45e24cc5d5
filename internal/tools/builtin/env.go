package builtin

import (
	"github.com/google/uuid"

	"orpheus/internal/tools"
	"orpheus/pkg/errors"
)

// Env is the per-call environment delivered to context-aware tools
// through CallContext.Value. The session layer builds one per call;
// tools only read it.
type Env struct {
	CallID   uuid.UUID
	CallerID uuid.UUID

	// EndCall asks the owning session to wind the conversation down
	// after the current response finishes.
	EndCall func(reason string)
}

// envFromCallContext extracts the call environment. Context-aware tools
// fail closed when invoked without one rather than guessing a caller.
func envFromCallContext(cc *tools.CallContext) (*Env, error) {
	if cc == nil {
		return nil, errors.Wrap(errors.ErrInternal, "tool requires call context but received none")
	}
	env, ok := cc.Value.(*Env)
	if !ok || env == nil {
		return nil, errors.Wrap(errors.ErrInternal, "call context carries no environment")
	}
	return env, nil
}
