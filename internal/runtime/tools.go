package runtime

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/wovenlab/shuttle/pkg/domain"
	"github.com/wovenlab/shuttle/pkg/graph"
)

// fieldAddr locates a context field offered as a read/write tool.
type fieldAddr struct {
	node  string
	field string
}

// toolSet computes the legal tools for the current step: one transition
// tool per candidate edge, read/write tools for every context field
// reachable from the node, and everything registered in the registry
// (meta tools plus constructed dynamic tools).
func (e *Engine) toolSet(g *graph.Graph, node domain.Node, candidates []domain.Edge) []domain.ToolDescriptor {
	var tools []domain.ToolDescriptor

	e.stepTargets = make(map[string]bool, len(candidates))
	for _, edge := range candidates {
		e.stepTargets[edge.Target] = true
		desc := "Transition to node '" + edge.Target + "'."
		if edge.Label != "" {
			desc = fmt.Sprintf("Transition to node '%s' (%s).", edge.Target, edge.Label)
		}
		tools = append(tools, domain.ToolDescriptor{
			Name:        domain.ToolPrefixTransition + edge.Target,
			Description: desc,
			InputSchema: map[string]any{"type": "object"},
		})
	}

	e.stepFields = make(map[string]fieldAddr)
	for _, name := range e.reachableContextNodes(g, node) {
		for _, field := range e.contextFields(g, name) {
			if _, taken := e.stepFields[field]; taken {
				// First context node wins on a field name clash; nodes are
				// visited in sorted order so the mapping is deterministic.
				continue
			}
			e.stepFields[field] = fieldAddr{node: name, field: field}
			tools = append(tools,
				domain.ToolDescriptor{
					Name:        domain.ToolPrefixRead + field,
					Description: fmt.Sprintf("Read field '%s' of context '%s'.", field, name),
					InputSchema: map[string]any{"type": "object"},
				},
				domain.ToolDescriptor{
					Name:        domain.ToolPrefixWrite + field,
					Description: fmt.Sprintf("Write field '%s' of context '%s'.", field, name),
					InputSchema: map[string]any{
						"type":       "object",
						"properties": map[string]any{"value": map[string]any{"description": "New field value."}},
						"required":   []string{"value"},
					},
				},
			)
		}
	}

	return append(tools, e.registry.Descriptors()...)
}

// reachableContextNodes returns the context-kind nodes adjacent to the
// current node by any edge, in sorted order.
func (e *Engine) reachableContextNodes(g *graph.Graph, node domain.Node) []string {
	var out []string
	for _, id := range g.Neighbors(node.ID) {
		if n, err := g.Node(id); err == nil && n.Kind == domain.NodeKindContext {
			out = append(out, id)
		}
	}
	return out
}

// contextFields lists the union of a context node's declared attributes
// and the fields written at runtime, declaration order first.
func (e *Engine) contextFields(g *graph.Graph, name string) []string {
	var fields []string
	seen := make(map[string]bool)
	if n, err := g.Node(name); err == nil {
		for _, a := range n.Attributes {
			fields = append(fields, a.Name)
			seen[a.Name] = true
		}
	}
	if values, ok := e.activeState().Context[name]; ok {
		var extra []string
		for f := range values {
			if !seen[f] {
				extra = append(extra, f)
			}
		}
		sort.Strings(extra)
		fields = append(fields, extra...)
	}
	return fields
}

// ExecuteLocal implements agent.LocalExecutor: the first dispatch tier
// covering transition and context read/write tools. Unrecognized names
// fall through to the registry.
func (e *Engine) ExecuteLocal(ctx context.Context, call domain.ToolCall) (any, bool, error) {
	switch {
	case strings.HasPrefix(call.Name, domain.ToolPrefixTransition):
		target := strings.TrimPrefix(call.Name, domain.ToolPrefixTransition)
		if !e.stepTargets[target] {
			return nil, true, &domain.InvalidTransitionError{From: e.state.CurrentNode, Target: target}
		}
		e.pending.CurrentNode = target
		return map[string]any{"transitioned_to": target}, true, nil

	case strings.HasPrefix(call.Name, domain.ToolPrefixWrite):
		field := strings.TrimPrefix(call.Name, domain.ToolPrefixWrite)
		addr, ok := e.stepFields[field]
		if !ok {
			return nil, false, nil
		}
		value, present := call.Input["value"]
		if !present {
			return nil, true, fmt.Errorf("write tool '%s' requires a 'value' argument", call.Name)
		}
		e.pending.SetContextValue(addr.node, addr.field, value)
		return map[string]any{"written": addr.field, "context": addr.node}, true, nil

	case strings.HasPrefix(call.Name, domain.ToolPrefixRead):
		field := strings.TrimPrefix(call.Name, domain.ToolPrefixRead)
		addr, ok := e.stepFields[field]
		if !ok {
			return nil, false, nil
		}
		value, _ := e.pending.ContextValue(addr.node, addr.field)
		return map[string]any{"field": addr.field, "value": value}, true, nil

	default:
		return nil, false, nil
	}
}
