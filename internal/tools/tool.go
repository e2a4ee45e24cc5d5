package tools

import (
	"context"
	"errors"
)

// Output is the closed result variant a tool invocation produces.
// Text outputs are relayed to the model verbatim; structured outputs
// are JSON-encoded before relay.
type Output struct {
	kind  OutputKind
	text  string
	value interface{}
}

// OutputKind discriminates the Output variant.
type OutputKind uint8

const (
	// OutputText is a plain string result.
	OutputText OutputKind = iota
	// OutputStructured is a JSON-marshalable result.
	OutputStructured
)

// TextOutput wraps a plain string result.
func TextOutput(s string) Output {
	return Output{kind: OutputText, text: s}
}

// StructuredOutput wraps a JSON-marshalable result.
func StructuredOutput(v interface{}) Output {
	return Output{kind: OutputStructured, value: v}
}

// Kind returns the output variant.
func (o Output) Kind() OutputKind { return o.kind }

// Text returns the plain string result. Valid only for OutputText.
func (o Output) Text() string { return o.text }

// Value returns the structured result. Valid only for OutputStructured.
func (o Output) Value() interface{} { return o.value }

// CallContext carries the shared per-call value into context-aware tools.
// Context-free tools receive nil instead.
type CallContext struct {
	// CallID identifies the conversation the invocation belongs to.
	CallID string
	// Value is the opaque caller-supplied shared value. Tools read it,
	// nobody mutates it after construction.
	Value interface{}
}

// Invoker is the asynchronous invocation contract of a function tool.
// argsJSON is the serialized arguments payload. cc is nil when the tool
// is not context-aware.
type Invoker func(ctx context.Context, cc *CallContext, argsJSON string) (Output, error)

// contextMode tracks how a tool's context-awareness was decided.
type contextMode uint8

const (
	// contextUndeclared marks tools built from external definitions that
	// carry no capability declaration. The registry resolves these via a
	// fixed name allow-list.
	contextUndeclared contextMode = iota
	contextFree
	contextAware
)

// FunctionTool is the supported tool variant: a named asynchronous
// callable taking serialized arguments and optional shared context.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]interface{}
	invoker     Invoker
	mode        contextMode
}

// Option configures a FunctionTool at construction.
type Option func(*FunctionTool)

// WithContextAware declares that the tool's invoker expects the shared
// call context.
func WithContextAware() Option {
	return func(t *FunctionTool) { t.mode = contextAware }
}

// NewFunctionTool creates a function tool. Context-awareness defaults to
// declared-free; use WithContextAware to opt in. parameters is the JSON
// schema advertised to the model.
func NewFunctionTool(name, description string, parameters map[string]interface{}, invoker Invoker, opts ...Option) *FunctionTool {
	t := &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		invoker:     invoker,
		mode:        contextFree,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// FromDefinition creates a function tool from an externally sourced
// definition. Such tools carry no context-awareness declaration; the
// registry decides membership from its allow-list at registration time.
func FromDefinition(def Definition, invoker Invoker) *FunctionTool {
	return &FunctionTool{
		name:        def.Name,
		description: def.Description,
		parameters:  def.Parameters,
		invoker:     invoker,
		mode:        contextUndeclared,
	}
}

// Name returns the unique tool identifier.
func (t *FunctionTool) Name() string { return t.name }

// Description returns a short human-readable summary.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema for the tool's arguments.
func (t *FunctionTool) Parameters() map[string]interface{} { return t.parameters }

// Invoke runs the underlying invoker.
func (t *FunctionTool) Invoke(ctx context.Context, cc *CallContext, argsJSON string) (Output, error) {
	if t.invoker == nil {
		return Output{}, errors.New("tool invoker is not defined")
	}
	return t.invoker(ctx, cc, argsJSON)
}

// Definition is the name/description/schema triple advertised to the
// model at session start.
type Definition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Definition returns the tool's advertised definition.
func (t *FunctionTool) Definition() Definition {
	return Definition{
		Name:        t.name,
		Description: t.description,
		Parameters:  t.parameters,
	}
}
