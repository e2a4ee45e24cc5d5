package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"orpheus/pkg/errors"
)

// Event type constants
const (
	TypeCallStarted   = "call.started"
	TypeCallCompleted = "call.completed"
	TypeCallFailed    = "call.failed"
	TypeToolExecuted  = "tool.executed"
)

// Envelope wraps every published event with routing metadata. Payload
// is pre-marshaled so consumers can decode it lazily by Type.
type Envelope struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Source   string          `json:"source"`
	CallID   uuid.UUID       `json:"call_id"`
	CallerID uuid.UUID       `json:"caller_id"`
	At       time.Time       `json:"at"`
	Version  string          `json:"version"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope builds an envelope around a payload struct
func NewEnvelope(eventType, source string, callID, callerID uuid.UUID, payload interface{}) (Envelope, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, errors.Wrapf(err, "failed to marshal %s payload", eventType)
		}
		raw = data
	}

	return Envelope{
		ID:       generateEventID(),
		Type:     eventType,
		Source:   source,
		CallID:   callID,
		CallerID: callerID,
		At:       time.Now().UTC(),
		Version:  "1.0",
		Payload:  raw,
	}, nil
}

// generateEventID generates a unique event ID
func generateEventID() string {
	// Format: timestamp_nanoseconds
	now := time.Now()
	return fmt.Sprintf("%d_%d", now.Unix(), now.Nanosecond())
}

// CallStarted is published when a session goes live
type CallStarted struct {
	Channel string `json:"channel"`
	Model   string `json:"model"`
	Voice   string `json:"voice"`
}

// CallCompleted is published when a call ends cleanly. Summary feeds
// the memory compiler downstream.
type CallCompleted struct {
	DurationSeconds   float64         `json:"duration_seconds"`
	ToolCalls         int             `json:"tool_calls"`
	CostUSD           decimal.Decimal `json:"cost_usd"`
	TranscriptEntries int             `json:"transcript_entries"`
	Summary           string          `json:"summary,omitempty"`
	EndReason         string          `json:"end_reason,omitempty"`
}

// CallFailed is published when a call terminates on an error
type CallFailed struct {
	Reason          string  `json:"reason"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// ToolExecuted is published once per dispatched tool call
type ToolExecuted struct {
	ToolName    string `json:"tool_name"`
	LatencyMs   int64  `json:"latency_ms"`
	Success     bool   `json:"success"`
	OutputBytes int    `json:"output_bytes"`
}
