package agent

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ToolRegistry is a name-addressed catalog of executable tools. It is
// logically read-only during an agent run: the loop borrows tools from it,
// it never mutates a tool mid-run, and scoped subsets are produced by cheap
// clones rather than by locking out callers.
type ToolRegistry struct {
	mu      sync.RWMutex
	entries map[string]registryEntry
}

type registryEntry struct {
	tool   Tool
	source ToolSource
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{entries: make(map[string]registryEntry)}
}

// Register adds or replaces a builtin tool. Re-registering a name replaces
// the prior entry.
func (r *ToolRegistry) Register(tool Tool) error {
	return r.register(tool, Builtin)
}

// RegisterExternal adds or replaces a tool attributed to an external server
// (e.g. an MCP server), so callers can later strip all tools from that
// source with CloneWithoutExternal.
func (r *ToolRegistry) RegisterExternal(tool Tool, serverName string) error {
	return r.register(tool, External(serverName))
}

func (r *ToolRegistry) register(tool Tool, source ToolSource) error {
	if tool == nil {
		return fmt.Errorf("register tool: nil tool")
	}
	name := tool.Name()
	if name == "" {
		return fmt.Errorf("register tool: empty name")
	}
	if _, err := jsonschema.CompileString(name+"#", string(tool.Schema())); err != nil {
		return fmt.Errorf("register tool %q: invalid schema: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = registryEntry{tool: tool, source: source}
	return nil
}

// Unregister removes a tool by name. A no-op if the name is not present.
func (r *ToolRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// UnregisterAllExternal removes every tool whose source is external,
// regardless of server.
func (r *ToolRegistry) UnregisterAllExternal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, e := range r.entries {
		if e.source.External {
			delete(r.entries, name)
		}
	}
}

// Get returns the executable registered under name, or nil if absent. It
// deliberately does not expose the ToolSource — callers that need source
// metadata use ListSchemas.
func (r *ToolRegistry) Get(name string) Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil
	}
	return e.tool
}

// ListSchemas returns the public schema of every registered tool.
func (r *ToolRegistry) ListSchemas() []ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ToolSchema, 0, len(r.entries))
	for name, e := range r.entries {
		s := ToolSchema{
			Name:        name,
			Description: e.tool.Description(),
			Parameters:  e.tool.Schema(),
			Source:      "builtin",
		}
		if e.source.External {
			s.Source = "external"
			s.Server = e.source.ServerName
		}
		out = append(out, s)
	}
	return out
}

// clone returns a new registry sharing ownership of the underlying tool
// implementations (cheap: no tool is copied, only the map entries whose
// name satisfies keep).
func (r *ToolRegistry) clone(keep func(name string, e registryEntry) bool) *ToolRegistry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := NewToolRegistry()
	for name, e := range r.entries {
		if keep(name, e) {
			out.entries[name] = e
		}
	}
	return out
}

// CloneFiltered returns a registry containing only tools whose name
// satisfies predicate.
func (r *ToolRegistry) CloneFiltered(predicate func(name string) bool) *ToolRegistry {
	return r.clone(func(name string, _ registryEntry) bool { return predicate(name) })
}

// CloneWithout returns a registry with the given names removed.
func (r *ToolRegistry) CloneWithout(names []string) *ToolRegistry {
	excluded := make(map[string]struct{}, len(names))
	for _, n := range names {
		excluded[n] = struct{}{}
	}
	return r.clone(func(name string, _ registryEntry) bool {
		_, skip := excluded[name]
		return !skip
	})
}

// CloneWithoutExternal returns a registry with every externally sourced
// tool removed, keeping only builtins.
func (r *ToolRegistry) CloneWithoutExternal() *ToolRegistry {
	return r.clone(func(_ string, e registryEntry) bool { return !e.source.External })
}

// CloneWithoutPrefix returns a registry with every tool whose name starts
// with prefix removed.
func (r *ToolRegistry) CloneWithoutPrefix(prefix string) *ToolRegistry {
	return r.clone(func(name string, _ registryEntry) bool { return !strings.HasPrefix(name, prefix) })
}
