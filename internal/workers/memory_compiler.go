package workers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	kafkaadapter "orpheus/internal/adapters/kafka"
	"orpheus/internal/domain/memory"
	"orpheus/internal/events"
	"orpheus/internal/metrics"
	"orpheus/pkg/errors"
)

const (
	compilerName = "memory_compiler"

	// At most one batch per tick; leftovers wait for the next run.
	compilerBatchLimit  = 100
	compilerReadTimeout = 2 * time.Second
)

// EventSource yields raw event messages. Satisfied by the Kafka
// consumer; faked in tests.
type EventSource interface {
	ReadMessageWithShutdownCheck(ctx context.Context) (kafka.Message, error)
}

// Memorizer persists a distilled memory. Satisfied by the memory
// service.
type Memorizer interface {
	Remember(ctx context.Context, callerID uuid.UUID, sourceCallID *uuid.UUID, content string, importance float64) (*memory.Memory, error)
}

// MemoryCompiler drains completed-call events and distills each call
// summary into a durable caller memory.
type MemoryCompiler struct {
	*BaseWorker
	source    EventSource
	memorizer Memorizer
}

// NewMemoryCompiler creates the memory compiler worker
func NewMemoryCompiler(source EventSource, memorizer Memorizer, interval time.Duration, enabled bool) *MemoryCompiler {
	return &MemoryCompiler{
		BaseWorker: NewBaseWorker(compilerName, interval, enabled),
		source:     source,
		memorizer:  memorizer,
	}
}

// Run drains one batch of completed-call events
func (w *MemoryCompiler) Run(ctx context.Context) error {
	compiled := 0

	for n := 0; n < compilerBatchLimit; n++ {
		readCtx, cancel := context.WithTimeout(ctx, compilerReadTimeout)
		msg, err := w.source.ReadMessageWithShutdownCheck(readCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				// Topic drained for this tick
				break
			}
			return errors.Wrap(err, "failed to read completed-call event")
		}

		if w.compile(ctx, msg.Value) {
			compiled++
		}
	}

	if compiled > 0 {
		w.Log().Infow("Compiled call summaries into memories", "count", compiled)
	}

	return nil
}

// compile turns one call.completed envelope into a memory. Returns
// false for events that carry nothing worth keeping.
func (w *MemoryCompiler) compile(ctx context.Context, raw []byte) bool {
	var env events.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		w.Log().Warnw("Skipping undecodable event", "error", err)
		metrics.RecordKafkaMessage(kafkaadapter.TopicCallCompleted, "consumed", err)
		return false
	}
	metrics.RecordKafkaMessage(kafkaadapter.TopicCallCompleted, "consumed", nil)

	if env.Type != events.TypeCallCompleted {
		w.Log().Debugw("Skipping event of unexpected type", "type", env.Type)
		return false
	}
	if env.CallerID == uuid.Nil {
		w.Log().Warnw("Skipping event without caller", "call_id", env.CallID)
		return false
	}

	var payload events.CallCompleted
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		w.Log().Warnw("Skipping event with undecodable payload", "call_id", env.CallID, "error", err)
		return false
	}

	if payload.Summary == "" {
		w.Log().Debugw("Call produced no summary", "call_id", env.CallID)
		return false
	}

	callID := env.CallID
	if _, err := w.memorizer.Remember(ctx, env.CallerID, &callID, payload.Summary, importanceFor(payload)); err != nil {
		w.Log().Errorw("Failed to store memory",
			"call_id", env.CallID,
			"caller_id", env.CallerID,
			"error", err,
		)
		return false
	}

	return true
}

// importanceFor weighs a summary by how substantial the call was.
// Longer calls and calls that used tools rank above quick check-ins.
func importanceFor(p events.CallCompleted) float64 {
	importance := 0.5
	if p.ToolCalls > 0 {
		importance += 0.1
	}
	if p.DurationSeconds > 120 {
		importance += 0.1
	}
	return importance
}
