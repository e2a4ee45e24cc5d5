package builtin

import (
	"context"
	"encoding/json"

	"orpheus/internal/tools"
	"orpheus/pkg/errors"
)

// endCallArgs represents input parameters for ending the call
type endCallArgs struct {
	Reason string `json:"reason"`
}

// NewEndCallTool flags the session for graceful completion. Declared
// context-aware: the hookup to the owning session travels in the env.
func NewEndCallTool() *tools.FunctionTool {
	parameters := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"reason": map[string]interface{}{
				"type":        "string",
				"description": "Why the call is ending, e.g. 'caller said goodbye'",
			},
		},
	}

	invoker := func(ctx context.Context, cc *tools.CallContext, argsJSON string) (tools.Output, error) {
		env, err := envFromCallContext(cc)
		if err != nil {
			return tools.Output{}, errors.Wrap(err, "end_call")
		}
		if env.EndCall == nil {
			return tools.Output{}, errors.Wrapf(errors.ErrInternal, "end_call: session hookup missing")
		}

		var args endCallArgs
		if argsJSON != "" {
			if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
				return tools.Output{}, errors.Wrap(errors.ErrInvalidInput, "end_call: malformed arguments")
			}
		}
		if args.Reason == "" {
			args.Reason = "model requested end of call"
		}

		// The session finishes the in-flight response before hanging up,
		// so the model can still say goodbye.
		env.EndCall(args.Reason)

		return tools.StructuredOutput(map[string]interface{}{
			"status": "call will end after this response",
		}), nil
	}

	return tools.NewBuilder("end_call",
		"End the call gracefully once the conversation has concluded.",
		parameters, invoker).
		ContextAware().
		Build()
}
