package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"orpheus/internal/tools"
	"orpheus/pkg/errors"
	"orpheus/pkg/logger"
)

// ToolCallEvent is the triggering message naming a tool and supplying
// its arguments. CallID is the model-assigned identifier of the function
// call, echoed back with the result.
type ToolCallEvent struct {
	CallID    string
	Name      string
	Arguments map[string]interface{}
}

// ToolUsage is one record per dispatched tool call, handed to the usage
// recorder hook.
type ToolUsage struct {
	CallID       string
	ToolName     string
	Latency      time.Duration
	Success      bool
	ErrorMessage string
	OutputBytes  int
}

// UsageFunc receives one ToolUsage per Execute call.
type UsageFunc func(ctx context.Context, usage ToolUsage)

// Dispatcher executes tool calls produced by the realtime model. It is
// a lookup table plus a call-and-coerce step: look up the named tool,
// invoke it with serialized arguments (and the shared context when the
// tool is context-aware), and normalize the result to a string.
//
// Execute never returns an error and never panics; every failure is
// converted into a JSON error-object string suitable for relay to the
// model. The registry and shared value are read-only after construction,
// so concurrent Execute calls share no mutable state.
type Dispatcher struct {
	registry *tools.Registry
	shared   interface{}
	usage    UsageFunc
	log      *logger.Logger
}

// DispatcherOption configures optional dispatcher decoration.
type DispatcherOption func(*Dispatcher)

// WithUsageRecorder installs a hook receiving one ToolUsage per call.
func WithUsageRecorder(fn UsageFunc) DispatcherOption {
	return func(d *Dispatcher) { d.usage = fn }
}

// NewDispatcher creates a dispatcher over the given registry. shared is
// the opaque value handed to context-aware tools for the dispatcher's
// lifetime; it may be nil.
func NewDispatcher(registry *tools.Registry, shared interface{}, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		shared:   shared,
		log:      logger.Get().With("component", "tool_dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// toolError is the uniform failure payload relayed to the model.
type toolError struct {
	Error    string `json:"error"`
	ToolName string `json:"tool_name"`
}

// Execute runs the tool named by the event and returns its output as a
// string. Failures of any kind (unknown tool, unserializable arguments,
// invocation error, panic) come back as the JSON error-object string,
// never as a raised failure. Cancellation is the caller's job via ctx;
// no timeout or retry is added here.
func (d *Dispatcher) Execute(ctx context.Context, ev ToolCallEvent) string {
	start := time.Now()

	fail := func(msg string) string {
		payload := ToolErrorPayload(ev.Name, msg)
		d.record(ctx, ev, time.Since(start), false, msg, len(payload))
		return payload
	}

	tool, ok := d.registry.Get(ev.Name)
	if !ok {
		msg := fmt.Sprintf("tool '%s' not found", ev.Name)
		d.log.Warnw("Tool not found", "tool", ev.Name, "call_id", ev.CallID)
		return fail(msg)
	}

	argsJSON, err := json.Marshal(ev.Arguments)
	if err != nil {
		msg := fmt.Sprintf("failed to serialize arguments for tool '%s': %v", ev.Name, err)
		d.log.Errorw("Argument serialization failed",
			"tool", ev.Name,
			"call_id", ev.CallID,
			"error", err,
		)
		return fail(msg)
	}

	var cc *tools.CallContext
	if d.registry.ContextAware(ev.Name) {
		cc = &tools.CallContext{CallID: ev.CallID, Value: d.shared}
	}

	d.log.Debugw("Executing tool", "tool", ev.Name, "call_id", ev.CallID, "context_aware", cc != nil)

	output, err := d.invoke(ctx, tool, cc, string(argsJSON))
	if err != nil {
		d.log.Errorw("Tool invocation failed",
			"tool", ev.Name,
			"call_id", ev.CallID,
			"error", err,
		)
		return fail(err.Error())
	}

	result, err := coerceOutput(output)
	if err != nil {
		d.log.Errorw("Tool output coercion failed",
			"tool", ev.Name,
			"call_id", ev.CallID,
			"error", err,
		)
		return fail(err.Error())
	}

	d.record(ctx, ev, time.Since(start), true, "", len(result))
	return result
}

// invoke runs the tool and converts panics into plain errors so a broken
// tool degrades a single call instead of the whole session.
func (d *Dispatcher) invoke(ctx context.Context, tool *tools.FunctionTool, cc *tools.CallContext, argsJSON string) (output tools.Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("tool panicked: %v", r)
		}
	}()
	return tool.Invoke(ctx, cc, argsJSON)
}

func (d *Dispatcher) record(ctx context.Context, ev ToolCallEvent, latency time.Duration, success bool, errMsg string, outputBytes int) {
	if d.usage == nil {
		return
	}
	d.usage(ctx, ToolUsage{
		CallID:       ev.CallID,
		ToolName:     ev.Name,
		Latency:      latency,
		Success:      success,
		ErrorMessage: errMsg,
		OutputBytes:  outputBytes,
	})
}

// coerceOutput normalizes a tool output to the string sent to the model:
// text passes through, structured values are JSON-encoded.
func coerceOutput(output tools.Output) (string, error) {
	switch output.Kind() {
	case tools.OutputText:
		return output.Text(), nil
	case tools.OutputStructured:
		data, err := json.Marshal(output.Value())
		if err != nil {
			return "", errors.Wrap(err, "failed to encode tool output")
		}
		return string(data), nil
	default:
		return "", errors.Newf("unknown tool output kind %d", output.Kind())
	}
}

// ToolErrorPayload builds the two-field error-object string relayed to
// the model in place of a raised failure. Marshaling two plain strings
// cannot fail; the constant fallback guards the impossible case so this
// path can never itself error.
func ToolErrorPayload(toolName, message string) string {
	data, err := json.Marshal(toolError{Error: message, ToolName: toolName})
	if err != nil {
		return `{"error":"internal dispatcher error","tool_name":""}`
	}
	return string(data)
}
