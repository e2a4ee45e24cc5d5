package builtin

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"

	"orpheus/internal/tools"
	"orpheus/pkg/errors"
)

// NewGreetUserAndCountTool greets the caller and reports how many
// conversations they have had. Defined from an external definition
// source, so it carries no context-awareness declaration; the registry
// resolves it through the known-names allow-list.
func NewGreetUserAndCountTool(deps Deps) *tools.FunctionTool {
	def := tools.Definition{
		Name: "greet_user_and_count",
		Description: "Greet the caller personally and report how many conversations " +
			"you have had with them. Call this once at the start of the call.",
		Parameters: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
	}

	return tools.FromDefinition(def, func(ctx context.Context, cc *tools.CallContext, argsJSON string) (tools.Output, error) {
		env, err := envFromCallContext(cc)
		if err != nil {
			return tools.Output{}, errors.Wrap(err, "greet_user_and_count")
		}
		if deps.Counter == nil {
			return tools.Output{}, errors.Wrapf(errors.ErrInternal, "greet_user_and_count: counter not configured")
		}

		count, err := deps.Counter.Increment(ctx, env.CallerID)
		if err != nil {
			return tools.Output{}, errors.Wrap(err, "greet_user_and_count")
		}

		// A missing profile downgrades to a generic greeting; the count
		// still advances.
		name := ""
		if deps.Callers != nil {
			if profile, err := deps.Callers.GetByID(ctx, env.CallerID); err == nil {
				name = profile.DisplayName
			}
		}

		greeting := fmt.Sprintf("This is your %s conversation together.", humanize.Ordinal(int(count)))
		if name != "" {
			greeting = fmt.Sprintf("The caller's name is %s. %s", name, greeting)
		}

		return tools.StructuredOutput(map[string]interface{}{
			"greeting":           greeting,
			"display_name":       name,
			"conversation_count": count,
		}), nil
	})
}
