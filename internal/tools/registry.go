package tools

import (
	"sort"

	"orpheus/pkg/logger"
)

// contextAwareFallback is the fixed allow-list of tool names treated as
// context-aware when their definition carries no capability declaration.
// This is an explicit exception list for externally defined tools, not a
// general mechanism; new tools must declare awareness at construction.
var contextAwareFallback = map[string]struct{}{
	"greet_user_and_count": {},
	"get_user_details":     {},
}

// Registry maps tool names to function tools and records which of them
// receive the shared call context. Both maps are built once here and
// never written afterward, so lookups need no locking.
type Registry struct {
	tools map[string]*FunctionTool
	aware map[string]struct{}
}

// NewRegistry builds a registry from an ordered tool collection.
// Only *FunctionTool entries are supported; anything else is logged and
// skipped. Duplicate names are not rejected: the last entry wins.
func NewRegistry(entries ...interface{}) *Registry {
	log := logger.Get().With("component", "tool_registry")

	r := &Registry{
		tools: make(map[string]*FunctionTool, len(entries)),
		aware: make(map[string]struct{}),
	}

	for _, entry := range entries {
		ft, ok := entry.(*FunctionTool)
		if !ok || ft == nil {
			log.Warnf("Skipping unsupported tool variant %T", entry)
			continue
		}

		if _, exists := r.tools[ft.name]; exists {
			log.Warnf("Duplicate tool name %q, later registration wins", ft.name)
		}
		r.tools[ft.name] = ft
	}

	// Context-awareness membership is decided once, here. Declared
	// capability wins; undeclared tools fall back to the fixed name list.
	for name, ft := range r.tools {
		switch ft.mode {
		case contextAware:
			r.aware[name] = struct{}{}
		case contextUndeclared:
			if _, listed := contextAwareFallback[name]; listed {
				log.Debugf("Tool %q marked context-aware via fallback list", name)
				r.aware[name] = struct{}{}
			}
		}
	}

	log.Infof("Tool registry built: %d tools, %d context-aware", len(r.tools), len(r.aware))
	return r
}

// Get retrieves a tool by name if registered.
func (r *Registry) Get(name string) (*FunctionTool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// ContextAware reports whether the named tool receives the shared call
// context at invocation time.
func (r *Registry) ContextAware(name string) bool {
	_, ok := r.aware[name]
	return ok
}

// Names returns the sorted names of all registered tools.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the definitions advertised to the model, ordered
// by tool name.
func (r *Registry) Definitions() []Definition {
	defs := make([]Definition, 0, len(r.tools))
	for _, name := range r.Names() {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.tools)
}
