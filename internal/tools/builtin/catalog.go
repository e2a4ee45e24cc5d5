// Package builtin provides the tool catalog the realtime model calls
// during a conversation. Static dependencies arrive through Deps at
// construction; per-call data arrives through the Env carried in the
// dispatcher's CallContext.
package builtin

// Catalog returns the full builtin tool set in registration order.
// The slice feeds tools.NewRegistry directly.
func Catalog(deps Deps) []interface{} {
	return []interface{}{
		NewGreetUserAndCountTool(deps),
		NewGetUserDetailsTool(deps),
		NewRecallMemoriesTool(deps),
		NewStoreMemoryTool(deps),
		NewGetCurrentTimeTool(),
		NewEndCallTool(),
	}
}
