package tools

import (
	"context"
	"time"
)

// Builder provides a fluent API for creating function tools with
// invocation decorators applied.
type Builder struct {
	name        string
	description string
	parameters  map[string]interface{}
	invoker     Invoker

	aware   bool
	timeout time.Duration
}

// NewBuilder starts building a function tool.
func NewBuilder(name, description string, parameters map[string]interface{}, invoker Invoker) *Builder {
	return &Builder{
		name:        name,
		description: description,
		parameters:  parameters,
		invoker:     invoker,
	}
}

// ContextAware declares the tool context-aware.
func (b *Builder) ContextAware() *Builder {
	b.aware = true
	return b
}

// WithTimeout bounds each invocation of the tool. The deadline applies
// to the tool's own work only; the dispatcher never adds one.
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.timeout = timeout
	return b
}

// Build creates the tool with configured decorators applied.
func (b *Builder) Build() *FunctionTool {
	inv := b.invoker

	if b.timeout > 0 {
		inv = wrapWithTimeout(b.timeout, inv)
	}

	var opts []Option
	if b.aware {
		opts = append(opts, WithContextAware())
	}

	return NewFunctionTool(b.name, b.description, b.parameters, inv, opts...)
}

func wrapWithTimeout(timeout time.Duration, fn Invoker) Invoker {
	return func(ctx context.Context, cc *CallContext, argsJSON string) (Output, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return fn(ctx, cc, argsJSON)
	}
}
