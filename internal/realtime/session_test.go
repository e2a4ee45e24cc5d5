package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orpheus/internal/adapters/config"
	openairt "orpheus/internal/adapters/openai/realtime"
	"orpheus/internal/domain/session"
	"orpheus/internal/domain/stats"
	"orpheus/internal/domain/transcript"
	"orpheus/internal/tools"
	"orpheus/pkg/errors"
)

type fakeStore struct {
	mu    sync.Mutex
	saved []session.CallSession
}

func (f *fakeStore) Save(ctx context.Context, s *session.CallSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, *s)
	return nil
}

func (f *fakeStore) Get(ctx context.Context, id uuid.UUID) (*session.CallSession, error) {
	return nil, errors.ErrSessionNotFound
}

func (f *fakeStore) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func (f *fakeStore) ListActive(ctx context.Context) ([]*session.CallSession, error) {
	return nil, nil
}

func (f *fakeStore) last(t *testing.T) session.CallSession {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.saved, "no session record was saved")
	return f.saved[len(f.saved)-1]
}

type fakeTranscripts struct {
	mu      sync.Mutex
	batches [][]transcript.Entry
}

func (f *fakeTranscripts) InsertBatch(ctx context.Context, entries []transcript.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, entries)
	return nil
}

func (f *fakeTranscripts) GetByCall(ctx context.Context, callID uuid.UUID) ([]transcript.Entry, error) {
	return nil, nil
}

type fakeToolUsage struct {
	mu     sync.Mutex
	events []stats.ToolUsageEvent
}

func (f *fakeToolUsage) InsertToolUsageBatch(ctx context.Context, events []stats.ToolUsageEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeToolUsage) AggregateSince(ctx context.Context, since time.Time) ([]stats.ToolUsageAggregated, error) {
	return nil, nil
}

func newTestSession(t *testing.T, store session.Store, opts func(*SessionParams)) *Session {
	t.Helper()

	rec := session.New(uuid.New(), "web", "gpt-4o-realtime-preview", "alloy")
	p := SessionParams{
		Config:   config.RealtimeConfig{Model: rec.Model, Voice: rec.Voice},
		Record:   rec,
		Store:    store,
		Registry: tools.NewRegistry(),
	}
	if opts != nil {
		opts(&p)
	}
	return NewSession(p)
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish in time")
	}
}

func TestSessionEndFlushesTranscript(t *testing.T) {
	store := &fakeStore{}
	transcripts := &fakeTranscripts{}
	s := newTestSession(t, store, func(p *SessionParams) {
		p.Transcripts = transcripts
	})

	s.handleEvent(openairt.ServerEvent{Type: openairt.EventTypeInputTranscriptDone, Transcript: "hi there"})
	s.handleEvent(openairt.ServerEvent{Type: openairt.EventTypeResponseTranscriptDelta, ItemID: "it1", Delta: "hello "})
	s.handleEvent(openairt.ServerEvent{Type: openairt.EventTypeResponseTranscriptDelta, ItemID: "it1", Delta: "caller"})
	s.handleEvent(openairt.ServerEvent{Type: openairt.EventTypeResponseTranscriptDone, ItemID: "it1"})

	s.End("caller hung up")
	waitDone(t, s)

	require.Len(t, transcripts.batches, 1)
	entries := transcripts.batches[0]
	require.Len(t, entries, 2)
	assert.Equal(t, transcript.RoleCaller, entries[0].Role)
	assert.Equal(t, "hi there", entries[0].Text)
	assert.Equal(t, "hello caller", entries[1].Text)

	final := store.last(t)
	assert.Equal(t, session.StateCompleted, final.State)
	assert.Equal(t, "caller hung up", final.EndReason)
	require.NotNil(t, final.EndedAt)
}

func TestSessionAccumulatesCost(t *testing.T) {
	store := &fakeStore{}
	s := newTestSession(t, store, nil)

	s.handleEvent(openairt.ServerEvent{
		Type: openairt.EventTypeResponseDone,
		Response: &openairt.ResponsePayload{
			Usage: &openairt.Usage{
				InputTokenDetails:  openairt.TokenDetails{TextTokens: 1_000_000},
				OutputTokenDetails: openairt.TokenDetails{AudioTokens: 1_000_000},
			},
		},
	})

	s.End("caller hung up")
	waitDone(t, s)

	// 1M input text at $5 + 1M output audio at $80
	final := store.last(t)
	assert.True(t, final.CostUSD.Equal(decimal.RequireFromString("85")), "got %s", final.CostUSD)
}

func TestSessionEndRequestedFinishesAfterResponse(t *testing.T) {
	store := &fakeStore{}

	var endCall func(reason string)
	s := newTestSession(t, store, func(p *SessionParams) {
		p.MakeShared = func(end func(reason string)) interface{} {
			endCall = end
			return nil
		}
	})
	require.NotNil(t, endCall, "MakeShared must receive the end trigger")

	// The end_call tool fires mid-response; the session holds on until
	// the response completes.
	endCall("model requested end of call")

	select {
	case <-s.Done():
		t.Fatal("session must not finish before the response completes")
	case <-time.After(50 * time.Millisecond):
	}

	s.handleEvent(openairt.ServerEvent{Type: openairt.EventTypeResponseDone})
	waitDone(t, s)

	final := store.last(t)
	assert.Equal(t, session.StateCompleted, final.State)
	assert.Equal(t, "model requested end of call", final.EndReason)
}

func TestSessionFailMarksFailed(t *testing.T) {
	store := &fakeStore{}
	s := newTestSession(t, store, nil)

	s.Fail("upstream connection lost")
	waitDone(t, s)

	final := store.last(t)
	assert.Equal(t, session.StateFailed, final.State)
	assert.Equal(t, "upstream connection lost", final.EndReason)
}

func TestSessionExpiredUpstreamFailsCall(t *testing.T) {
	store := &fakeStore{}
	s := newTestSession(t, store, nil)

	s.handleEvent(openairt.ServerEvent{
		Type:  openairt.EventTypeError,
		Error: &openairt.APIError{Code: "session_expired", Message: "expired"},
	})
	waitDone(t, s)

	assert.Equal(t, session.StateFailed, store.last(t).State)
}

func TestSessionToolCallRecordsUsage(t *testing.T) {
	store := &fakeStore{}
	usage := &fakeToolUsage{}

	echo := tools.NewFunctionTool("echo", "", nil,
		func(ctx context.Context, cc *tools.CallContext, argsJSON string) (tools.Output, error) {
			return tools.TextOutput("ok"), nil
		})

	s := newTestSession(t, store, func(p *SessionParams) {
		p.Registry = tools.NewRegistry(echo)
		p.ToolUsage = usage
	})

	s.handleEvent(openairt.ServerEvent{
		Type:      openairt.EventTypeFunctionCallArgsDone,
		CallID:    "call_abc",
		Name:      "echo",
		Arguments: `{}`,
	})

	// Dispatch runs on its own goroutine
	require.Eventually(t, func() bool {
		return s.Snapshot().ToolCalls == 1
	}, 2*time.Second, 10*time.Millisecond)

	s.End("caller hung up")
	waitDone(t, s)

	require.Len(t, usage.events, 1)
	assert.Equal(t, "echo", usage.events[0].ToolName)
	assert.True(t, usage.events[0].Success)
	assert.Equal(t, s.ID(), usage.events[0].CallID)
	assert.Equal(t, 1, store.last(t).ToolCalls)
}

func TestSessionDoubleEndIsIdempotent(t *testing.T) {
	store := &fakeStore{}
	s := newTestSession(t, store, nil)

	s.End("caller hung up")
	s.End("second call")
	s.Fail("late error")
	waitDone(t, s)

	final := store.last(t)
	assert.Equal(t, session.StateCompleted, final.State)
	assert.Equal(t, "caller hung up", final.EndReason)
}
