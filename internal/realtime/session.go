package realtime

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"orpheus/internal/adapters/config"
	openairt "orpheus/internal/adapters/openai/realtime"
	"orpheus/internal/domain/caller"
	"orpheus/internal/domain/session"
	"orpheus/internal/domain/stats"
	"orpheus/internal/domain/transcript"
	"orpheus/internal/events"
	"orpheus/internal/metrics"
	"orpheus/internal/tools"
	"orpheus/pkg/errors"
	"orpheus/pkg/logger"
)

// AudioSink receives decoded model audio for relay to the caller
type AudioSink func(pcm []byte)

// Summarizer condenses a finished call transcript into a caller note
type Summarizer interface {
	Summarize(ctx context.Context, transcriptText string) (string, error)
}

// ConversationCounter reads the authoritative greeting counter so the
// Postgres profile can be synced at call end.
type ConversationCounter interface {
	Get(ctx context.Context, callerID uuid.UUID) (int64, error)
}

// SessionParams wires one live call. Publisher, Transcripts, ToolUsage,
// Callers, Counter and Summarizer are optional; a nil value skips that
// concern, which unit tests rely on.
type SessionParams struct {
	Config   config.RealtimeConfig
	Record   *session.CallSession
	Store    session.Store
	Registry *tools.Registry

	// MakeShared builds the per-call value handed to context-aware
	// tools, given the trigger a tool uses to end the call.
	MakeShared func(endCall func(reason string)) interface{}

	Publisher   events.Publisher
	Transcripts transcript.Repository
	ToolUsage   stats.Repository
	Callers     caller.Repository
	Counter     ConversationCounter
	Summarizer  Summarizer

	// ServerVAD delegates turn detection to the upstream model. When
	// false the gateway commits audio buffers from local VAD decisions.
	ServerVAD bool
}

// Session orchestrates one live call: it relays caller audio upstream,
// streams model audio back, dispatches tool calls, assembles the
// transcript, meters cost, and persists the session record.
type Session struct {
	cfg       config.RealtimeConfig
	store     session.Store
	registry  *tools.Registry
	serverVAD bool

	dispatcher *Dispatcher
	upstream   *openairt.Manager
	recorder   *TranscriptRecorder
	costs      *CostTracker

	publisher   events.Publisher
	transcripts transcript.Repository
	toolUsage   stats.Repository
	callers     caller.Repository
	counter     ConversationCounter
	summarizer  Summarizer

	log *logger.Logger

	mu        sync.Mutex
	rec       *session.CallSession
	usageBuf  []stats.ToolUsageEvent
	audioSink AudioSink
	endReq    bool
	endReason string

	runCtx    context.Context
	runCancel context.CancelFunc
	endOnce   sync.Once
	done      chan struct{}
}

// NewSession builds a session around an active call record
func NewSession(p SessionParams) *Session {
	s := &Session{
		cfg:         p.Config,
		store:       p.Store,
		registry:    p.Registry,
		serverVAD:   p.ServerVAD,
		recorder:    NewTranscriptRecorder(p.Record.ID, p.Record.CallerID),
		costs:       NewCostTracker(p.Record.Model),
		publisher:   p.Publisher,
		transcripts: p.Transcripts,
		toolUsage:   p.ToolUsage,
		callers:     p.Callers,
		counter:     p.Counter,
		summarizer:  p.Summarizer,
		rec:         p.Record,
		done:        make(chan struct{}),
		log: logger.Get().With(
			"component", "call_session",
			"call_id", p.Record.ID.String(),
		),
	}

	s.runCtx, s.runCancel = context.WithCancel(context.Background())

	var shared interface{}
	if p.MakeShared != nil {
		shared = p.MakeShared(s.RequestEnd)
	}
	s.dispatcher = NewDispatcher(p.Registry, shared, WithUsageRecorder(s.recordToolUsage))

	s.upstream = openairt.NewManager(p.Config, s.handleEvent)
	s.upstream.OnReconnect(s.sendSessionConfig)
	s.upstream.OnGiveUp(func(err error) {
		s.log.Errorw("Upstream unrecoverable, failing call", "error", err)
		s.Fail("upstream connection lost")
	})

	return s
}

// Start connects upstream, advertises the session configuration and
// persists the active record.
func (s *Session) Start(ctx context.Context) error {
	if err := s.upstream.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start upstream connection")
	}

	if err := s.sendSessionConfig(ctx); err != nil {
		_ = s.upstream.Stop()
		return errors.Wrap(err, "failed to configure upstream session")
	}

	if err := s.saveRecord(ctx); err != nil {
		_ = s.upstream.Stop()
		return errors.Wrap(err, "failed to persist session record")
	}

	metrics.ActiveSessions.Inc()

	if s.publisher != nil {
		s.mu.Lock()
		started := events.CallStarted{
			Channel: s.rec.Channel,
			Model:   s.rec.Model,
			Voice:   s.rec.Voice,
		}
		callID, callerID := s.rec.ID, s.rec.CallerID
		s.mu.Unlock()

		if err := s.publisher.PublishCallStarted(ctx, callID, callerID, started); err != nil {
			s.log.Warnw("Failed to publish call started event", "error", err)
		}
	}

	go s.activityLoop()

	s.log.Infow("Session started", "model", s.rec.Model, "channel", s.rec.Channel)
	return nil
}

// sendSessionConfig advertises instructions, voice and the tool catalog.
// Also re-sent after every upstream reconnect.
func (s *Session) sendSessionConfig(ctx context.Context) error {
	return s.upstream.Send(openairt.NewSessionUpdate(openairt.SessionConfig{
		Instructions: s.cfg.Instructions,
		Voice:        s.cfg.Voice,
		Temperature:  s.cfg.Temperature,
		Tools:        s.registry.Definitions(),
		ServerVAD:    s.serverVAD,
	}))
}

// AppendAudio relays one caller PCM16 frame upstream
func (s *Session) AppendAudio(pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}

	b64 := base64.StdEncoding.EncodeToString(pcm)
	if err := s.upstream.Send(openairt.NewInputAudioAppend(b64)); err != nil {
		return err
	}

	metrics.RecordAudioFrame("inbound", len(pcm))
	s.touch()
	return nil
}

// CommitAudio seals the current input buffer and requests a response.
// Used in local VAD mode when end of speech is detected.
func (s *Session) CommitAudio() error {
	if err := s.upstream.Send(openairt.NewInputAudioCommit()); err != nil {
		return err
	}
	return s.upstream.Send(openairt.NewResponseCreate())
}

// OnAudio registers the sink receiving model audio. Must be set before
// Start; the sink runs on the upstream read goroutine.
func (s *Session) OnAudio(sink AudioSink) {
	s.mu.Lock()
	s.audioSink = sink
	s.mu.Unlock()
}

// RequestEnd asks the session to finish after the in-flight response
// completes. This is the end_call tool's path: the model still speaks
// its goodbye before the connection drops.
func (s *Session) RequestEnd(reason string) {
	s.mu.Lock()
	s.endReq = true
	s.endReason = reason
	s.mu.Unlock()
	s.log.Infow("End of call requested", "reason", reason)
}

// End finishes the call now. Used when the caller hangs up.
func (s *Session) End(reason string) {
	s.finish(reason, false)
}

// Fail terminates the call on an unrecoverable error
func (s *Session) Fail(reason string) {
	s.finish(reason, true)
}

// Done is closed once the session has fully wound down
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// ID returns the call ID
func (s *Session) ID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.ID
}

// Snapshot returns a copy of the current session record
func (s *Session) Snapshot() session.CallSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.rec
}

// UpstreamStats exposes connection statistics for health reporting
func (s *Session) UpstreamStats() map[string]interface{} {
	return s.upstream.GetStats()
}

// handleEvent consumes one upstream event. Runs on the upstream read
// goroutine; everything slow is handed off.
func (s *Session) handleEvent(ev openairt.ServerEvent) {
	switch ev.Type {
	case openairt.EventTypeResponseAudioDelta:
		s.relayAudio(ev.Delta)

	case openairt.EventTypeResponseTranscriptDelta:
		s.recorder.AppendDelta(ev.ItemID, ev.Delta)

	case openairt.EventTypeResponseTranscriptDone:
		s.recorder.FinalizeItem(ev.ItemID, ev.Transcript)

	case openairt.EventTypeInputTranscriptDone:
		s.recorder.AddUtterance(transcript.RoleCaller, ev.Transcript)

	case openairt.EventTypeFunctionCallArgsDone:
		go s.dispatchToolCall(ev)

	case openairt.EventTypeResponseDone:
		s.handleResponseDone(ev)

	case openairt.EventTypeSpeechStarted:
		s.touch()

	case openairt.EventTypeError:
		s.handleUpstreamError(ev.Error)
	}
}

func (s *Session) relayAudio(deltaB64 string) {
	if deltaB64 == "" {
		return
	}

	pcm, err := base64.StdEncoding.DecodeString(deltaB64)
	if err != nil {
		s.log.Warnw("Failed to decode audio delta", "error", err)
		return
	}

	s.mu.Lock()
	sink := s.audioSink
	s.mu.Unlock()

	if sink != nil {
		sink(pcm)
	}
	metrics.RecordAudioFrame("outbound", len(pcm))
}

// dispatchToolCall runs one tool call and relays its output. Dispatch
// failures of every kind come back as the error-object string, so the
// model always receives a function_call_output.
func (s *Session) dispatchToolCall(ev openairt.ServerEvent) {
	var result string

	args, err := openairt.ParseToolArguments(ev.Arguments)
	if err != nil {
		s.log.Errorw("Tool arguments unparseable", "tool", ev.Name, "error", err)
		result = ToolErrorPayload(ev.Name, fmt.Sprintf("failed to parse arguments for tool '%s': %v", ev.Name, err))
	} else {
		result = s.dispatcher.Execute(s.runCtx, ToolCallEvent{
			CallID:    ev.CallID,
			Name:      ev.Name,
			Arguments: args,
		})
	}

	if err := s.upstream.Send(openairt.NewFunctionCallOutput(ev.CallID, result)); err != nil {
		s.log.Errorw("Failed to relay tool output", "tool", ev.Name, "error", err)
		return
	}
	if err := s.upstream.Send(openairt.NewResponseCreate()); err != nil {
		s.log.Errorw("Failed to request response after tool output", "tool", ev.Name, "error", err)
	}

	s.touch()
}

func (s *Session) handleResponseDone(ev openairt.ServerEvent) {
	if ev.Response != nil && ev.Response.Usage != nil {
		u := ev.Response.Usage
		delta := s.costs.AddUsage(
			u.InputTokenDetails.TextTokens,
			u.InputTokenDetails.AudioTokens,
			u.OutputTokenDetails.TextTokens,
			u.OutputTokenDetails.AudioTokens,
		)

		model := s.costs.Model()
		metrics.ModelTokens.WithLabelValues(model, "input", "text").Add(float64(u.InputTokenDetails.TextTokens))
		metrics.ModelTokens.WithLabelValues(model, "input", "audio").Add(float64(u.InputTokenDetails.AudioTokens))
		metrics.ModelTokens.WithLabelValues(model, "output", "text").Add(float64(u.OutputTokenDetails.TextTokens))
		metrics.ModelTokens.WithLabelValues(model, "output", "audio").Add(float64(u.OutputTokenDetails.AudioTokens))

		cost, _ := delta.Float64()
		metrics.ModelCost.WithLabelValues(model).Add(cost)
	}

	s.touch()

	s.mu.Lock()
	endReq, reason := s.endReq, s.endReason
	s.mu.Unlock()

	if endReq {
		go s.finish(reason, false)
	}
}

func (s *Session) handleUpstreamError(apiErr *openairt.APIError) {
	if apiErr == nil {
		return
	}

	code := apiErr.Code
	if code == "" {
		code = "unknown"
	}
	metrics.UpstreamErrors.WithLabelValues(code).Inc()

	// An expired upstream session cannot be resumed by reconnecting.
	if code == "session_expired" {
		go s.finish("upstream session expired", true)
	}
}

// recordToolUsage is the dispatcher's usage hook: one record per
// dispatched call, buffered for the analytics flush at call end.
func (s *Session) recordToolUsage(ctx context.Context, u ToolUsage) {
	status := "success"
	if !u.Success {
		status = "error"
	}
	metrics.ToolExecutions.WithLabelValues(u.ToolName, status).Inc()
	metrics.ToolLatency.WithLabelValues(u.ToolName).Observe(u.Latency.Seconds())

	s.mu.Lock()
	s.rec.ToolCalls++
	callID, callerID := s.rec.ID, s.rec.CallerID
	s.usageBuf = append(s.usageBuf, stats.ToolUsageEvent{
		Timestamp:    time.Now().UTC(),
		CallID:       callID,
		CallerID:     callerID,
		ToolName:     u.ToolName,
		LatencyMs:    u.Latency.Milliseconds(),
		Success:      u.Success,
		OutputBytes:  int32(u.OutputBytes),
		ErrorMessage: u.ErrorMessage,
	})
	s.mu.Unlock()

	if s.publisher != nil {
		pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.publisher.PublishToolExecuted(pubCtx, callID, callerID, events.ToolExecuted{
			ToolName:    u.ToolName,
			LatencyMs:   u.Latency.Milliseconds(),
			Success:     u.Success,
			OutputBytes: u.OutputBytes,
		})
	}
}

// activityLoop refreshes the persisted record (and with it the Redis
// TTL) while the call is live, so the reaper sees fresh activity.
func (s *Session) activityLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.runCtx.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.saveRecord(ctx); err != nil {
				s.log.Warnw("Failed to refresh session record", "error", err)
			}
			cancel()
		}
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.rec.Touch()
	s.mu.Unlock()
}

func (s *Session) saveRecord(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Save(ctx, s.rec)
}

// finish winds the call down exactly once: state transitions, upstream
// teardown, analytics flush, summary, profile sync, events.
func (s *Session) finish(reason string, failed bool) {
	s.endOnce.Do(func() {
		defer close(s.done)

		s.runCancel()

		// The caller's context may already be gone; wind-down gets its
		// own deadline.
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		s.mu.Lock()
		s.rec.EndReason = reason
		if failed {
			s.rec.Transition(session.StateFailed)
		} else {
			s.rec.Transition(session.StateCompleting)
		}
		s.mu.Unlock()

		if err := s.saveRecord(ctx); err != nil {
			s.log.Warnw("Failed to save session state", "error", err)
		}

		if err := s.upstream.Stop(); err != nil {
			s.log.Warnw("Upstream teardown failed", "error", err)
		}

		s.flushAnalytics(ctx)

		var summary string
		if !failed {
			summary = s.summarize(ctx)
		}

		s.mu.Lock()
		s.rec.Summary = summary
		s.rec.CostUSD = s.costs.Cost()
		if !failed {
			s.rec.Transition(session.StateCompleted)
		}
		duration := s.rec.Duration()
		s.mu.Unlock()

		if err := s.saveRecord(ctx); err != nil {
			s.log.Errorw("Failed to save final session record", "error", err)
		}

		s.syncCallerProfile(ctx)
		s.publishEnd(ctx, reason, failed, summary, duration)

		metrics.ActiveSessions.Dec()
		status := "completed"
		if failed {
			status = "failed"
		}
		metrics.RecordSessionEnd(status, duration)

		s.log.Infow("Session finished",
			"status", status,
			"reason", reason,
			"duration", duration,
			"tool_calls", s.Snapshot().ToolCalls,
			"cost_usd", s.costs.Cost().String(),
		)
	})
}

func (s *Session) flushAnalytics(ctx context.Context) {
	if entries := s.recorder.Entries(); len(entries) > 0 && s.transcripts != nil {
		if err := s.transcripts.InsertBatch(ctx, entries); err != nil {
			s.log.Errorw("Failed to flush transcript", "entries", len(entries), "error", err)
		}
	}

	s.mu.Lock()
	usage := s.usageBuf
	s.usageBuf = nil
	s.mu.Unlock()

	if len(usage) > 0 && s.toolUsage != nil {
		if err := s.toolUsage.InsertToolUsageBatch(ctx, usage); err != nil {
			s.log.Errorw("Failed to flush tool usage", "events", len(usage), "error", err)
		}
	}
}

func (s *Session) summarize(ctx context.Context) string {
	if s.summarizer == nil || s.recorder.Len() == 0 {
		return ""
	}

	sumCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	summary, err := s.summarizer.Summarize(sumCtx, s.recorder.Text())
	if err != nil {
		s.log.Warnw("Call summarization failed", "error", err)
		return ""
	}
	return summary
}

// syncCallerProfile mirrors the Redis greeting counter and last-seen
// stamp onto the Postgres profile. Best effort; the counter stays
// authoritative.
func (s *Session) syncCallerProfile(ctx context.Context) {
	if s.callers == nil {
		return
	}

	s.mu.Lock()
	callerID := s.rec.CallerID
	s.mu.Unlock()

	if err := s.callers.UpdateLastSeen(ctx, callerID); err != nil {
		s.log.Warnw("Failed to update caller last seen", "error", err)
	}

	if s.counter == nil {
		return
	}
	count, err := s.counter.Get(ctx, callerID)
	if err != nil || count == 0 {
		return
	}
	if err := s.callers.UpdateConversationCount(ctx, callerID, count); err != nil {
		s.log.Warnw("Failed to sync conversation count", "error", err)
	}
}

func (s *Session) publishEnd(ctx context.Context, reason string, failed bool, summary string, duration time.Duration) {
	if s.publisher == nil {
		return
	}

	s.mu.Lock()
	callID, callerID := s.rec.ID, s.rec.CallerID
	toolCalls := s.rec.ToolCalls
	s.mu.Unlock()

	if failed {
		err := s.publisher.PublishCallFailed(ctx, callID, callerID, events.CallFailed{
			Reason:          reason,
			DurationSeconds: duration.Seconds(),
		})
		if err != nil {
			s.log.Warnw("Failed to publish call failed event", "error", err)
		}
		return
	}

	err := s.publisher.PublishCallCompleted(ctx, callID, callerID, events.CallCompleted{
		DurationSeconds:   duration.Seconds(),
		ToolCalls:         toolCalls,
		CostUSD:           s.costs.Cost(),
		TranscriptEntries: s.recorder.Len(),
		Summary:           summary,
		EndReason:         reason,
	})
	if err != nil {
		s.log.Warnw("Failed to publish call completed event", "error", err)
	}
}
