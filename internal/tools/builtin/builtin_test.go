package builtin

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orpheus/internal/domain/caller"
	"orpheus/internal/domain/memory"
	"orpheus/internal/tools"
	"orpheus/pkg/errors"
)

// fakeCounter is an in-memory ConversationCounter
type fakeCounter struct {
	counts map[uuid.UUID]int64
	err    error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: make(map[uuid.UUID]int64)}
}

func (f *fakeCounter) Increment(_ context.Context, callerID uuid.UUID) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.counts[callerID]++
	return f.counts[callerID], nil
}

func (f *fakeCounter) Get(_ context.Context, callerID uuid.UUID) (int64, error) {
	return f.counts[callerID], nil
}

// fakeCallerRepo holds caller profiles keyed by ID
type fakeCallerRepo struct {
	callers map[uuid.UUID]*caller.Caller
}

func newFakeCallerRepo() *fakeCallerRepo {
	return &fakeCallerRepo{callers: make(map[uuid.UUID]*caller.Caller)}
}

func (f *fakeCallerRepo) Create(_ context.Context, c *caller.Caller) error {
	f.callers[c.ID] = c
	return nil
}

func (f *fakeCallerRepo) GetByID(_ context.Context, id uuid.UUID) (*caller.Caller, error) {
	c, ok := f.callers[id]
	if !ok {
		return nil, errors.ErrCallerNotFound
	}
	return c, nil
}

func (f *fakeCallerRepo) GetByPhoneHash(_ context.Context, _ string) (*caller.Caller, error) {
	return nil, errors.ErrCallerNotFound
}

func (f *fakeCallerRepo) UpdateLastSeen(_ context.Context, _ uuid.UUID) error { return nil }

func (f *fakeCallerRepo) UpdateConversationCount(_ context.Context, _ uuid.UUID, _ int64) error {
	return nil
}

// fakeMemoryRepo backs a real memory.Service in tests
type fakeMemoryRepo struct {
	stored []*memory.Memory
	hits   []*memory.Recall
}

func (f *fakeMemoryRepo) Store(_ context.Context, m *memory.Memory) error {
	f.stored = append(f.stored, m)
	return nil
}

func (f *fakeMemoryRepo) GetByID(_ context.Context, _ uuid.UUID) (*memory.Memory, error) {
	return nil, errors.ErrNotFound
}

func (f *fakeMemoryRepo) SearchSimilar(_ context.Context, _ uuid.UUID, _ pgvector.Vector, _ int) ([]*memory.Recall, error) {
	return f.hits, nil
}

func (f *fakeMemoryRepo) MarkRecalled(_ context.Context, _ []uuid.UUID) error { return nil }

func (f *fakeMemoryRepo) CountByCaller(_ context.Context, _ uuid.UUID) (int64, error) {
	return int64(len(f.stored)), nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) GenerateEmbedding(_ context.Context, _ string) ([]float32, error) {
	return make([]float32, 4), nil
}
func (fakeEmbedder) Dimensions() int { return 4 }
func (fakeEmbedder) Name() string    { return "fake-embedder" }

func testEnv(callerID uuid.UUID) *tools.CallContext {
	return &tools.CallContext{
		CallID: uuid.NewString(),
		Value: &Env{
			CallID:   uuid.New(),
			CallerID: callerID,
		},
	}
}

func decodeStructured(t *testing.T, out tools.Output) map[string]interface{} {
	t.Helper()
	require.Equal(t, tools.OutputStructured, out.Kind())
	data, err := json.Marshal(out.Value())
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestCatalogAwareness(t *testing.T) {
	deps := Deps{
		Callers:  newFakeCallerRepo(),
		Counter:  newFakeCounter(),
		Memories: memory.NewService(&fakeMemoryRepo{}, fakeEmbedder{}),
	}

	registry := tools.NewRegistry(Catalog(deps)...)
	require.Equal(t, 6, registry.Len())

	// Externally defined tools resolve through the allow-list
	assert.True(t, registry.ContextAware("greet_user_and_count"))
	assert.True(t, registry.ContextAware("get_user_details"))

	// Declared capabilities
	assert.True(t, registry.ContextAware("recall_memories"))
	assert.True(t, registry.ContextAware("store_memory"))
	assert.True(t, registry.ContextAware("end_call"))

	assert.False(t, registry.ContextAware("get_current_time"))
}

func TestGreetUserAndCount(t *testing.T) {
	callerID := uuid.New()
	counter := newFakeCounter()
	repo := newFakeCallerRepo()
	require.NoError(t, repo.Create(context.Background(), &caller.Caller{
		ID:          callerID,
		DisplayName: "Marta",
		CreatedAt:   time.Now(),
	}))

	tool := NewGreetUserAndCountTool(Deps{Callers: repo, Counter: counter})

	out, err := tool.Invoke(context.Background(), testEnv(callerID), "{}")
	require.NoError(t, err)

	result := decodeStructured(t, out)
	assert.Equal(t, "Marta", result["display_name"])
	assert.Equal(t, float64(1), result["conversation_count"])
	assert.Contains(t, result["greeting"], "1st conversation")

	// Second greeting advances the count
	out, err = tool.Invoke(context.Background(), testEnv(callerID), "{}")
	require.NoError(t, err)
	result = decodeStructured(t, out)
	assert.Equal(t, float64(2), result["conversation_count"])
}

func TestGreetUserAndCount_UnknownProfile(t *testing.T) {
	tool := NewGreetUserAndCountTool(Deps{Callers: newFakeCallerRepo(), Counter: newFakeCounter()})

	out, err := tool.Invoke(context.Background(), testEnv(uuid.New()), "{}")
	require.NoError(t, err)

	result := decodeStructured(t, out)
	assert.Equal(t, "", result["display_name"])
	assert.Equal(t, float64(1), result["conversation_count"])
}

func TestGreetUserAndCount_NoContext(t *testing.T) {
	tool := NewGreetUserAndCountTool(Deps{Counter: newFakeCounter()})

	_, err := tool.Invoke(context.Background(), nil, "{}")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInternal))
}

func TestGetUserDetails(t *testing.T) {
	callerID := uuid.New()
	repo := newFakeCallerRepo()
	require.NoError(t, repo.Create(context.Background(), &caller.Caller{
		ID:                callerID,
		DisplayName:       "Luis",
		Locale:            "es-ES",
		ConversationCount: 12,
		CreatedAt:         time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}))

	tool := NewGetUserDetailsTool(Deps{Callers: repo})

	out, err := tool.Invoke(context.Background(), testEnv(callerID), "{}")
	require.NoError(t, err)

	result := decodeStructured(t, out)
	assert.Equal(t, true, result["known"])
	assert.Equal(t, "Luis", result["display_name"])
	assert.Equal(t, "es-ES", result["locale"])
	assert.Equal(t, "2025-03-01", result["known_since"])
}

func TestGetUserDetails_Unknown(t *testing.T) {
	tool := NewGetUserDetailsTool(Deps{Callers: newFakeCallerRepo()})

	out, err := tool.Invoke(context.Background(), testEnv(uuid.New()), "{}")
	require.NoError(t, err)

	result := decodeStructured(t, out)
	assert.Equal(t, false, result["known"])
}

func TestRecallMemories(t *testing.T) {
	callerID := uuid.New()
	repo := &fakeMemoryRepo{
		hits: []*memory.Recall{
			{
				Memory: memory.Memory{
					ID:         uuid.New(),
					CallerID:   callerID,
					Content:    "Allergic to peanuts",
					Importance: 0.9,
					CreatedAt:  time.Now().Add(-48 * time.Hour),
				},
				Similarity: 0.87,
			},
		},
	}
	svc := memory.NewService(repo, fakeEmbedder{})
	tool := NewRecallMemoriesTool(Deps{Memories: svc})

	out, err := tool.Invoke(context.Background(), testEnv(callerID), `{"query":"allergies"}`)
	require.NoError(t, err)

	result := decodeStructured(t, out)
	assert.Equal(t, float64(1), result["count"])
	memories := result["memories"].([]interface{})
	first := memories[0].(map[string]interface{})
	assert.Equal(t, "Allergic to peanuts", first["content"])
	assert.InDelta(t, 0.87, first["similarity"], 0.001)
}

func TestRecallMemories_MissingQuery(t *testing.T) {
	svc := memory.NewService(&fakeMemoryRepo{}, fakeEmbedder{})
	tool := NewRecallMemoriesTool(Deps{Memories: svc})

	_, err := tool.Invoke(context.Background(), testEnv(uuid.New()), `{}`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestStoreMemory(t *testing.T) {
	callerID := uuid.New()
	repo := &fakeMemoryRepo{}
	svc := memory.NewService(repo, fakeEmbedder{})
	tool := NewStoreMemoryTool(Deps{Memories: svc})

	cc := testEnv(callerID)
	env := cc.Value.(*Env)

	out, err := tool.Invoke(context.Background(), cc, `{"content":"Has two dogs","importance":0.7}`)
	require.NoError(t, err)

	result := decodeStructured(t, out)
	assert.Equal(t, true, result["stored"])
	assert.NotEmpty(t, result["memory_id"])

	require.Len(t, repo.stored, 1)
	stored := repo.stored[0]
	assert.Equal(t, callerID, stored.CallerID)
	require.NotNil(t, stored.SourceCallID)
	assert.Equal(t, env.CallID, *stored.SourceCallID)
	assert.Equal(t, 0.7, stored.Importance)
}

func TestStoreMemory_MissingContent(t *testing.T) {
	svc := memory.NewService(&fakeMemoryRepo{}, fakeEmbedder{})
	tool := NewStoreMemoryTool(Deps{Memories: svc})

	_, err := tool.Invoke(context.Background(), testEnv(uuid.New()), `{}`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestGetCurrentTime(t *testing.T) {
	tool := NewGetCurrentTimeTool()

	t.Run("default UTC", func(t *testing.T) {
		out, err := tool.Invoke(context.Background(), nil, "{}")
		require.NoError(t, err)
		require.Equal(t, tools.OutputText, out.Kind())
		assert.Contains(t, out.Text(), "UTC")
	})

	t.Run("explicit timezone", func(t *testing.T) {
		out, err := tool.Invoke(context.Background(), nil, `{"timezone":"America/New_York"}`)
		require.NoError(t, err)
		assert.NotEmpty(t, out.Text())
	})

	t.Run("unknown timezone", func(t *testing.T) {
		_, err := tool.Invoke(context.Background(), nil, `{"timezone":"Mars/Olympus"}`)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrInvalidInput))
	})
}

func TestEndCall(t *testing.T) {
	var gotReason string
	cc := &tools.CallContext{
		CallID: uuid.NewString(),
		Value: &Env{
			CallID:   uuid.New(),
			CallerID: uuid.New(),
			EndCall:  func(reason string) { gotReason = reason },
		},
	}

	tool := NewEndCallTool()

	out, err := tool.Invoke(context.Background(), cc, `{"reason":"caller said goodbye"}`)
	require.NoError(t, err)
	assert.Equal(t, "caller said goodbye", gotReason)

	result := decodeStructured(t, out)
	assert.Contains(t, result["status"], "end")
}

func TestEndCall_DefaultReason(t *testing.T) {
	var gotReason string
	cc := &tools.CallContext{
		Value: &Env{EndCall: func(reason string) { gotReason = reason }},
	}

	tool := NewEndCallTool()
	_, err := tool.Invoke(context.Background(), cc, "")
	require.NoError(t, err)
	assert.Equal(t, "model requested end of call", gotReason)
}
