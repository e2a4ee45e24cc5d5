package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// State is the lifecycle state of a call session
type State string

const (
	// StateActive means the caller and upstream model are connected
	StateActive State = "active"

	// StateCompleting means the call is winding down (summary, flush)
	StateCompleting State = "completing"

	// StateCompleted means the call finished cleanly
	StateCompleted State = "completed"

	// StateFailed means the call was terminated by an error
	StateFailed State = "failed"
)

// Valid checks if the state is a known value
func (s State) Valid() bool {
	switch s {
	case StateActive, StateCompleting, StateCompleted, StateFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// String returns string representation
func (s State) String() string {
	return string(s)
}

// CallSession is the persisted record of one realtime voice call
type CallSession struct {
	ID       uuid.UUID `json:"id"`
	CallerID uuid.UUID `json:"caller_id"`
	Channel  string    `json:"channel"` // "phone" or "web"

	State State `json:"state"`

	Model string `json:"model"`
	Voice string `json:"voice"`

	StartedAt      time.Time  `json:"started_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`

	ToolCalls int             `json:"tool_calls"`
	CostUSD   decimal.Decimal `json:"cost_usd"`

	Summary   string `json:"summary,omitempty"`
	EndReason string `json:"end_reason,omitempty"`
}

// New creates a fresh active session for a caller
func New(callerID uuid.UUID, channel, model, voice string) *CallSession {
	now := time.Now().UTC()
	return &CallSession{
		ID:             uuid.New(),
		CallerID:       callerID,
		Channel:        channel,
		State:          StateActive,
		Model:          model,
		Voice:          voice,
		StartedAt:      now,
		LastActivityAt: now,
		CostUSD:        decimal.Zero,
	}
}

// Transition moves the session into the next state. Transitions out of a
// terminal state are rejected so a failed call cannot be resurrected by a
// late cleanup path.
func (s *CallSession) Transition(next State) bool {
	if s.State.Terminal() || !next.Valid() {
		return false
	}
	s.State = next
	s.LastActivityAt = time.Now().UTC()
	if next.Terminal() {
		now := time.Now().UTC()
		s.EndedAt = &now
	}
	return true
}

// Touch refreshes the activity timestamp; the session reaper treats stale
// activity as a dead connection.
func (s *CallSession) Touch() {
	s.LastActivityAt = time.Now().UTC()
}

// Duration returns the call length so far (or final length once ended)
func (s *CallSession) Duration() time.Duration {
	if s.EndedAt != nil {
		return s.EndedAt.Sub(s.StartedAt)
	}
	return time.Since(s.StartedAt)
}
