package builtin

import (
	"context"
	"encoding/json"
	"time"

	"orpheus/internal/tools"
	"orpheus/pkg/errors"
)

// storeMemoryArgs represents input parameters for storing a memory
type storeMemoryArgs struct {
	Content    string  `json:"content"`
	Importance float64 `json:"importance"`
}

// NewStoreMemoryTool persists a durable fact about the caller.
// Declared context-aware.
func NewStoreMemoryTool(deps Deps) *tools.FunctionTool {
	parameters := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"content": map[string]interface{}{
				"type":        "string",
				"description": "The fact to remember, phrased as a standalone statement",
			},
			"importance": map[string]interface{}{
				"type":        "number",
				"description": "How important this fact is, 0.0-1.0 (default 0.5)",
			},
		},
		"required": []string{"content"},
	}

	invoker := func(ctx context.Context, cc *tools.CallContext, argsJSON string) (tools.Output, error) {
		env, err := envFromCallContext(cc)
		if err != nil {
			return tools.Output{}, errors.Wrap(err, "store_memory")
		}
		if deps.Memories == nil {
			return tools.Output{}, errors.Wrapf(errors.ErrInternal, "store_memory: memory service not configured")
		}

		var args storeMemoryArgs
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return tools.Output{}, errors.Wrap(errors.ErrInvalidInput, "store_memory: malformed arguments")
		}
		if args.Content == "" {
			return tools.Output{}, errors.Wrapf(errors.ErrInvalidInput, "store_memory: content is required")
		}

		sourceCallID := env.CallID
		m, err := deps.Memories.Remember(ctx, env.CallerID, &sourceCallID, args.Content, args.Importance)
		if err != nil {
			return tools.Output{}, errors.Wrap(err, "store_memory")
		}

		return tools.StructuredOutput(map[string]interface{}{
			"stored":    true,
			"memory_id": m.ID.String(),
		}), nil
	}

	return tools.NewBuilder("store_memory",
		"Remember a fact about the caller for future conversations.",
		parameters, invoker).
		ContextAware().
		WithTimeout(15 * time.Second).
		Build()
}
