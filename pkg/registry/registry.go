package registry

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/wovenlab/shuttle/pkg/domain"
)

// ToolFunc is the signature for a tool implementation. It receives the
// full tool name so that handlers registered under a prefix can parse a
// suffix (e.g. a target node id) out of it.
type ToolFunc func(ctx context.Context, name string, input map[string]any) (any, error)

// Registry maps tool names to handlers. Resolution is exact static match
// first, then the dynamic registration with the longest prefix of the
// requested name. The registry adds no retry or timeout semantics: a
// handler is invoked at most once per call and its result or error is
// propagated unchanged.
//
// A Registry is scoped to one execution. Dynamic tools constructed during
// a run must not leak into another run's available-tool computation, so
// engines never share instances.
type Registry struct {
	mu       sync.RWMutex
	static   map[string]entry
	dynamic  map[string]entry // keyed by prefix
	prefixes []string         // sorted longest-first, rebuilt on registration
}

type entry struct {
	fn   ToolFunc
	desc domain.ToolDescriptor
}

// New creates a new empty registry.
func New() *Registry {
	return &Registry{
		static:  make(map[string]entry),
		dynamic: make(map[string]entry),
	}
}

// RegisterStatic adds a tool under an exact name. Re-registering the same
// name replaces the prior handler: constructed tools may be iteratively
// refined by the agent across a session, so last write wins.
func (r *Registry) RegisterStatic(desc domain.ToolDescriptor, fn ToolFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.static[desc.Name] = entry{fn: fn, desc: desc}
}

// RegisterDynamic adds a handler for every tool name starting with prefix.
// The descriptor documents the family (its Name is the prefix).
func (r *Registry) RegisterDynamic(prefix string, desc domain.ToolDescriptor, fn ToolFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dynamic[prefix] = entry{fn: fn, desc: desc}
	r.prefixes = r.prefixes[:0]
	for p := range r.dynamic {
		r.prefixes = append(r.prefixes, p)
	}
	// Longest first gives the deterministic tie-break when several
	// prefixes match (e.g. "read_" and "read_only_").
	sort.Slice(r.prefixes, func(i, j int) bool {
		if len(r.prefixes[i]) != len(r.prefixes[j]) {
			return len(r.prefixes[i]) > len(r.prefixes[j])
		}
		return r.prefixes[i] < r.prefixes[j]
	})
}

// Unregister removes a static tool. Removing an unknown name is a no-op.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.static, name)
}

// resolve finds the handler for a name under the registry lock.
func (r *Registry) resolve(name string) (entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.static[name]; ok {
		return e, true
	}
	for _, p := range r.prefixes {
		if strings.HasPrefix(name, p) {
			return r.dynamic[p], true
		}
	}
	return entry{}, false
}

// HasTool reports whether a name resolves to any registration.
func (r *Registry) HasTool(name string) bool {
	_, ok := r.resolve(name)
	return ok
}

// IsStatic reports whether a name is taken by an exact registration.
func (r *Registry) IsStatic(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.static[name]
	return ok
}

// ExecuteTool resolves a name and invokes its handler once.
func (r *Registry) ExecuteTool(ctx context.Context, name string, input map[string]any) (any, error) {
	e, ok := r.resolve(name)
	if !ok {
		return nil, &domain.ToolNotFoundError{Name: name}
	}
	return e.fn(ctx, name, input)
}

// Descriptors lists every registration, static entries first, each group
// sorted by name. Used to advertise the tool set to the agent.
func (r *Registry) Descriptors() []domain.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	statics := make([]domain.ToolDescriptor, 0, len(r.static))
	for _, e := range r.static {
		statics = append(statics, e.desc)
	}
	sort.Slice(statics, func(i, j int) bool { return statics[i].Name < statics[j].Name })

	dynamics := make([]domain.ToolDescriptor, 0, len(r.dynamic))
	for _, e := range r.dynamic {
		dynamics = append(dynamics, e.desc)
	}
	sort.Slice(dynamics, func(i, j int) bool { return dynamics[i].Name < dynamics[j].Name })

	return append(statics, dynamics...)
}
