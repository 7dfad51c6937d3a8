package metatool

import (
	"context"
	"fmt"

	"github.com/wovenlab/shuttle/pkg/domain"
	"github.com/wovenlab/shuttle/pkg/expr"
	"github.com/wovenlab/shuttle/pkg/registry"
)

func (m *Manager) constructTool(ctx context.Context, _ string, input map[string]any) (any, error) {
	var spec domain.DynamicTool
	if err := decode(input, &spec); err != nil {
		return nil, fmt.Errorf("invalid tool specification: %w", err)
	}
	if spec.Name == "" {
		return nil, fmt.Errorf("tool specification requires a name")
	}

	m.mu.Lock()
	_, refining := m.constructed[spec.Name]
	m.mu.Unlock()

	// A constructed tool may be refined by re-submitting under the same
	// name, but hijacking a built-in registration is rejected.
	if m.reg.IsStatic(spec.Name) && !refining {
		return nil, fmt.Errorf("tool name '%s' collides with an existing tool", spec.Name)
	}

	handler, err := m.buildHandler(spec)
	if err != nil {
		return nil, err
	}

	spec.CreatedAt = m.now()
	m.reg.RegisterStatic(spec.Descriptor(), handler)

	m.mu.Lock()
	m.constructed[spec.Name] = spec
	m.mu.Unlock()

	m.logger.Info("dynamic tool constructed", "tool", spec.Name, "strategy", spec.Strategy)
	return map[string]any{"registered": spec.Name, "strategy": spec.Strategy}, nil
}

// buildHandler closes over the strategy so the registered tool is
// indistinguishable from a built-in one to callers.
func (m *Manager) buildHandler(spec domain.DynamicTool) (registry.ToolFunc, error) {
	switch spec.Strategy {
	case domain.StrategyTemplate:
		detail := spec.ImplementationDetail
		return func(ctx context.Context, _ string, input map[string]any) (any, error) {
			data := m.src.EvalContext()
			if len(input) > 0 {
				data["input"] = input
			}
			return expr.ResolveTemplate(detail, data), nil
		}, nil

	case domain.StrategyContextMutation:
		target := spec.ImplementationDetail
		if target == "" {
			return nil, fmt.Errorf("contextMutation strategy requires the target context node as implementation_detail")
		}
		return func(ctx context.Context, _ string, input map[string]any) (any, error) {
			if len(input) == 0 {
				return nil, fmt.Errorf("contextMutation tool called without fields")
			}
			if err := m.src.WriteContext(target, input); err != nil {
				return nil, err
			}
			return map[string]any{"written": len(input), "context": target}, nil
		}, nil

	case domain.StrategyDelegate:
		delegate := spec.ImplementationDetail
		if delegate == "" {
			return nil, fmt.Errorf("delegate strategy requires a target tool as implementation_detail")
		}
		if delegate == spec.Name {
			return nil, fmt.Errorf("delegate tool '%s' cannot delegate to itself", spec.Name)
		}
		if !m.reg.HasTool(delegate) {
			return nil, fmt.Errorf("delegate target '%s' is not registered", delegate)
		}
		return func(ctx context.Context, _ string, input map[string]any) (any, error) {
			return m.reg.ExecuteTool(ctx, delegate, input)
		}, nil

	default:
		return nil, fmt.Errorf("unknown strategy '%s'", spec.Strategy)
	}
}

func (m *Manager) getToolNodes(ctx context.Context, _ string, _ map[string]any) (any, error) {
	var out []domain.Node
	for _, n := range m.store.Load().Nodes() {
		if _, ok := n.Attr("tool"); ok {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *Manager) buildToolFromNode(ctx context.Context, _ string, input map[string]any) (any, error) {
	nodeID, _ := input["node_id"].(string)
	if nodeID == "" {
		return nil, fmt.Errorf("build_tool_from_node requires 'node_id'")
	}
	node, err := m.store.Load().Node(nodeID)
	if err != nil {
		return nil, err
	}
	if _, ok := node.Attr("tool"); !ok {
		return nil, fmt.Errorf("node '%s' has no 'tool' attribute", nodeID)
	}

	spec := map[string]any{
		"name":                  node.StringAttr("tool"),
		"description":           node.StringAttr("description"),
		"strategy":              node.StringAttr("strategy"),
		"implementation_detail": node.StringAttr("template"),
	}
	if spec["name"] == "" {
		spec["name"] = "tool_" + nodeID
	}
	if spec["strategy"] == "" {
		spec["strategy"] = domain.StrategyTemplate
	}
	if spec["implementation_detail"] == "" {
		spec["implementation_detail"] = node.StringAttr("implementation")
	}
	return m.constructTool(ctx, ToolConstructTool, spec)
}
