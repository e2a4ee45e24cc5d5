package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orpheus/internal/tools"
	"orpheus/pkg/errors"
)

func textTool(name, reply string) *tools.FunctionTool {
	return tools.NewFunctionTool(name, "", nil, func(ctx context.Context, cc *tools.CallContext, argsJSON string) (tools.Output, error) {
		return tools.TextOutput(reply), nil
	})
}

func parseToolError(t *testing.T, payload string) (errMsg, toolName string) {
	t.Helper()

	var obj map[string]string
	require.NoError(t, json.Unmarshal([]byte(payload), &obj), "error payload must be valid JSON")
	require.Len(t, obj, 2, "error payload must have exactly two fields")
	return obj["error"], obj["tool_name"]
}

func TestDispatcher_Execute_StringPassThrough(t *testing.T) {
	r := tools.NewRegistry(textTool("echo", "hello caller"))
	d := NewDispatcher(r, nil)

	out := d.Execute(context.Background(), ToolCallEvent{CallID: "call_1", Name: "echo"})

	assert.Equal(t, "hello caller", out)
}

func TestDispatcher_Execute_StructuredOutputEncoded(t *testing.T) {
	counter := tools.NewFunctionTool("count", "", nil, func(ctx context.Context, cc *tools.CallContext, argsJSON string) (tools.Output, error) {
		return tools.StructuredOutput(map[string]interface{}{"count": 3}), nil
	})
	d := NewDispatcher(tools.NewRegistry(counter), nil)

	out := d.Execute(context.Background(), ToolCallEvent{Name: "count"})

	assert.JSONEq(t, `{"count": 3}`, out)
}

func TestDispatcher_Execute_ToolNotFound(t *testing.T) {
	d := NewDispatcher(tools.NewRegistry(), nil)

	out := d.Execute(context.Background(), ToolCallEvent{Name: "missing_tool"})

	errMsg, toolName := parseToolError(t, out)
	assert.Equal(t, "missing_tool", toolName)
	assert.Contains(t, errMsg, "missing_tool")
	assert.Contains(t, errMsg, "not found")
}

func TestDispatcher_Execute_UnserializableArguments(t *testing.T) {
	d := NewDispatcher(tools.NewRegistry(textTool("echo", "ok")), nil)

	out := d.Execute(context.Background(), ToolCallEvent{
		Name:      "echo",
		Arguments: map[string]interface{}{"ch": make(chan int)},
	})

	errMsg, toolName := parseToolError(t, out)
	assert.Equal(t, "echo", toolName)
	assert.Contains(t, errMsg, "serialize")
}

func TestDispatcher_Execute_ToolError(t *testing.T) {
	failing := tools.NewFunctionTool("broken", "", nil, func(ctx context.Context, cc *tools.CallContext, argsJSON string) (tools.Output, error) {
		return tools.Output{}, errors.New("upstream profile service unavailable")
	})
	d := NewDispatcher(tools.NewRegistry(failing), nil)

	out := d.Execute(context.Background(), ToolCallEvent{Name: "broken"})

	errMsg, toolName := parseToolError(t, out)
	assert.Equal(t, "broken", toolName)
	assert.Equal(t, "upstream profile service unavailable", errMsg)
}

func TestDispatcher_Execute_ToolPanicRecovered(t *testing.T) {
	panicking := tools.NewFunctionTool("panics", "", nil, func(ctx context.Context, cc *tools.CallContext, argsJSON string) (tools.Output, error) {
		panic("nil caller profile")
	})
	d := NewDispatcher(tools.NewRegistry(panicking), nil)

	var out string
	require.NotPanics(t, func() {
		out = d.Execute(context.Background(), ToolCallEvent{Name: "panics"})
	})

	errMsg, toolName := parseToolError(t, out)
	assert.Equal(t, "panics", toolName)
	assert.Contains(t, errMsg, "nil caller profile")
}

func TestDispatcher_Execute_ContextDelivery(t *testing.T) {
	shared := &struct{ Tenant string }{Tenant: "acme"}

	var awareGot *tools.CallContext
	aware := tools.NewFunctionTool("with_ctx", "", nil, func(ctx context.Context, cc *tools.CallContext, argsJSON string) (tools.Output, error) {
		awareGot = cc
		return tools.TextOutput("ok"), nil
	}, tools.WithContextAware())

	var freeGot *tools.CallContext
	free := tools.NewFunctionTool("without_ctx", "", nil, func(ctx context.Context, cc *tools.CallContext, argsJSON string) (tools.Output, error) {
		freeGot = cc
		return tools.TextOutput("ok"), nil
	})

	d := NewDispatcher(tools.NewRegistry(aware, free), shared)

	d.Execute(context.Background(), ToolCallEvent{CallID: "call_9", Name: "with_ctx"})
	require.NotNil(t, awareGot, "context-aware tool must receive a call context")
	assert.Same(t, shared, awareGot.Value.(*struct{ Tenant string }))
	assert.Equal(t, "call_9", awareGot.CallID)

	d.Execute(context.Background(), ToolCallEvent{Name: "without_ctx"})
	assert.Nil(t, freeGot, "context-free tool must receive the nil marker")
}

func TestDispatcher_Execute_ArgumentsSerializedToTool(t *testing.T) {
	var gotArgs string
	inspect := tools.NewFunctionTool("inspect", "", nil, func(ctx context.Context, cc *tools.CallContext, argsJSON string) (tools.Output, error) {
		gotArgs = argsJSON
		return tools.TextOutput("ok"), nil
	})
	d := NewDispatcher(tools.NewRegistry(inspect), nil)

	d.Execute(context.Background(), ToolCallEvent{
		Name:      "inspect",
		Arguments: map[string]interface{}{"city": "Lisbon", "days": 3},
	})

	assert.JSONEq(t, `{"city":"Lisbon","days":3}`, gotArgs)
}

func TestDispatcher_Execute_DuplicateNameLastWins(t *testing.T) {
	r := tools.NewRegistry(textTool("greet", "first"), textTool("greet", "second"))
	d := NewDispatcher(r, nil)

	out := d.Execute(context.Background(), ToolCallEvent{Name: "greet"})

	assert.Equal(t, "second", out)
}

func TestDispatcher_Execute_NonFunctionToolIgnored(t *testing.T) {
	// Unsupported variants are skipped at registration, so dispatch sees
	// them as absent.
	r := tools.NewRegistry("not a tool", struct{ Name string }{Name: "imposter"})
	d := NewDispatcher(r, nil)

	out := d.Execute(context.Background(), ToolCallEvent{Name: "imposter"})

	_, toolName := parseToolError(t, out)
	assert.Equal(t, "imposter", toolName)
}

func TestDispatcher_Execute_UsageRecorder(t *testing.T) {
	tests := []struct {
		name        string
		event       ToolCallEvent
		wantSuccess bool
	}{
		{
			name:        "success recorded",
			event:       ToolCallEvent{CallID: "c1", Name: "echo"},
			wantSuccess: true,
		},
		{
			name:        "failure recorded",
			event:       ToolCallEvent{CallID: "c2", Name: "nope"},
			wantSuccess: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got ToolUsage
			rec := func(ctx context.Context, usage ToolUsage) { got = usage }

			d := NewDispatcher(tools.NewRegistry(textTool("echo", "hi")), nil, WithUsageRecorder(rec))
			out := d.Execute(context.Background(), tt.event)

			assert.Equal(t, tt.event.CallID, got.CallID)
			assert.Equal(t, tt.event.Name, got.ToolName)
			assert.Equal(t, tt.wantSuccess, got.Success)
			assert.Equal(t, len(out), got.OutputBytes)
			assert.GreaterOrEqual(t, got.Latency, time.Duration(0))
			if !tt.wantSuccess {
				assert.NotEmpty(t, got.ErrorMessage)
			}
		})
	}
}

func TestDispatcher_Execute_ConcurrentCalls(t *testing.T) {
	slow := tools.NewFunctionTool("slow", "", nil, func(ctx context.Context, cc *tools.CallContext, argsJSON string) (tools.Output, error) {
		time.Sleep(5 * time.Millisecond)
		return tools.TextOutput("done"), nil
	})
	d := NewDispatcher(tools.NewRegistry(slow, textTool("fast", "quick")), nil)

	results := make(chan string, 20)
	for i := 0; i < 10; i++ {
		go func() { results <- d.Execute(context.Background(), ToolCallEvent{Name: "slow"}) }()
		go func() { results <- d.Execute(context.Background(), ToolCallEvent{Name: "fast"}) }()
	}

	for i := 0; i < 20; i++ {
		out := <-results
		assert.Contains(t, []string{"done", "quick"}, out)
	}
}
