package builtin

import (
	"context"

	"orpheus/internal/tools"
	"orpheus/pkg/errors"
)

// NewGetUserDetailsTool loads the caller's profile. Like
// greet_user_and_count it comes from an external definition source and
// relies on the registry's allow-list for context delivery.
func NewGetUserDetailsTool(deps Deps) *tools.FunctionTool {
	def := tools.Definition{
		Name: "get_user_details",
		Description: "Look up what is known about the current caller: name, locale " +
			"and how long they have been calling.",
		Parameters: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
	}

	return tools.FromDefinition(def, func(ctx context.Context, cc *tools.CallContext, argsJSON string) (tools.Output, error) {
		env, err := envFromCallContext(cc)
		if err != nil {
			return tools.Output{}, errors.Wrap(err, "get_user_details")
		}
		if deps.Callers == nil {
			return tools.Output{}, errors.Wrapf(errors.ErrInternal, "get_user_details: caller repository not configured")
		}

		profile, err := deps.Callers.GetByID(ctx, env.CallerID)
		if err != nil {
			if errors.Is(err, errors.ErrCallerNotFound) {
				return tools.StructuredOutput(map[string]interface{}{
					"known": false,
				}), nil
			}
			return tools.Output{}, errors.Wrap(err, "get_user_details")
		}

		details := profile.Details()
		return tools.StructuredOutput(map[string]interface{}{
			"known":              true,
			"display_name":       details.DisplayName,
			"locale":             details.Locale,
			"conversation_count": details.ConversationCount,
			"known_since":        details.KnownSince,
		}), nil
	})
}
