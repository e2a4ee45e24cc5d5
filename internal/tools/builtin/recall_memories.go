package builtin

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dustin/go-humanize"

	"orpheus/internal/tools"
	"orpheus/pkg/errors"
)

// recallMemoriesArgs represents input parameters for memory recall
type recallMemoriesArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// NewRecallMemoriesTool performs semantic search over the caller's
// long-term memories. Declared context-aware: the caller identity comes
// from the call environment, never from model-supplied arguments.
func NewRecallMemoriesTool(deps Deps) *tools.FunctionTool {
	parameters := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "What to look for in past conversations, e.g. 'favorite restaurant'",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum number of memories to return (default 5)",
			},
		},
		"required": []string{"query"},
	}

	invoker := func(ctx context.Context, cc *tools.CallContext, argsJSON string) (tools.Output, error) {
		env, err := envFromCallContext(cc)
		if err != nil {
			return tools.Output{}, errors.Wrap(err, "recall_memories")
		}
		if deps.Memories == nil {
			return tools.Output{}, errors.Wrapf(errors.ErrInternal, "recall_memories: memory service not configured")
		}

		var args recallMemoriesArgs
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return tools.Output{}, errors.Wrap(errors.ErrInvalidInput, "recall_memories: malformed arguments")
		}
		if args.Query == "" {
			return tools.Output{}, errors.Wrapf(errors.ErrInvalidInput, "recall_memories: query is required")
		}

		hits, err := deps.Memories.Recall(ctx, env.CallerID, args.Query, args.Limit)
		if err != nil {
			return tools.Output{}, errors.Wrap(err, "recall_memories")
		}

		memories := make([]map[string]interface{}, 0, len(hits))
		for _, h := range hits {
			memories = append(memories, map[string]interface{}{
				"content":    h.Content,
				"importance": h.Importance,
				"similarity": h.Similarity,
				"from":       humanize.Time(h.CreatedAt),
			})
		}

		return tools.StructuredOutput(map[string]interface{}{
			"memories": memories,
			"count":    len(memories),
		}), nil
	}

	return tools.NewBuilder("recall_memories",
		"Recall facts learned about the caller in previous conversations.",
		parameters, invoker).
		ContextAware().
		WithTimeout(15 * time.Second). // Embedding generation dominates
		Build()
}
