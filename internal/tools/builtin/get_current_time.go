package builtin

import (
	"context"
	"encoding/json"
	"time"

	"orpheus/internal/tools"
	"orpheus/pkg/errors"
)

// getCurrentTimeArgs represents input parameters for the clock lookup
type getCurrentTimeArgs struct {
	Timezone string `json:"timezone"`
}

// NewGetCurrentTimeTool reports the current wall-clock time. Context-free:
// it needs nothing about the call.
func NewGetCurrentTimeTool() *tools.FunctionTool {
	parameters := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"timezone": map[string]interface{}{
				"type":        "string",
				"description": "IANA timezone name, e.g. 'Europe/Madrid' (default UTC)",
			},
		},
	}

	invoker := func(ctx context.Context, cc *tools.CallContext, argsJSON string) (tools.Output, error) {
		var args getCurrentTimeArgs
		if argsJSON != "" {
			if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
				return tools.Output{}, errors.Wrap(errors.ErrInvalidInput, "get_current_time: malformed arguments")
			}
		}

		loc := time.UTC
		if args.Timezone != "" {
			parsed, err := time.LoadLocation(args.Timezone)
			if err != nil {
				return tools.Output{}, errors.Wrapf(errors.ErrInvalidInput, "get_current_time: unknown timezone %q", args.Timezone)
			}
			loc = parsed
		}

		return tools.TextOutput(time.Now().In(loc).Format("Monday, January 2 2006, 15:04 MST")), nil
	}

	return tools.NewBuilder("get_current_time",
		"Get the current date and time, optionally in a specific timezone.",
		parameters, invoker).
		Build()
}
