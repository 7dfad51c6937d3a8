package metatool_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wovenlab/shuttle/pkg/domain"
	"github.com/wovenlab/shuttle/pkg/graph"
	"github.com/wovenlab/shuttle/pkg/metatool"
	"github.com/wovenlab/shuttle/pkg/registry"
)

// fakeSource stands in for the engine.
type fakeSource struct {
	state *domain.State
}

func (f *fakeSource) StateSnapshot() *domain.State {
	return f.state.Clone()
}

func (f *fakeSource) EvalContext() map[string]any {
	data := make(map[string]any)
	for node, fields := range f.state.Context {
		inner := make(map[string]any, len(fields))
		for k, v := range fields {
			inner[k] = v
		}
		data[node] = inner
	}
	return data
}

func (f *fakeSource) WriteContext(node string, fields map[string]any) error {
	for k, v := range fields {
		f.state.SetContextValue(node, k, v)
	}
	return nil
}

func setup(t *testing.T) (*metatool.Manager, *registry.Registry, *graph.Store, *fakeSource) {
	t.Helper()
	g, err := graph.NewBuilder().
		Node("start", domain.NodeKindState).
		Node("settings", domain.NodeKindContext).
		Node("done", domain.NodeKindEnd).
		Builder().
		Edge("start", "done").
		Build()
	require.NoError(t, err)

	store := graph.NewStore(g)
	reg := registry.New()
	src := &fakeSource{state: domain.NewState("run-1", "start", 50)}
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mgr := metatool.New(store, reg, src, metatool.WithClock(func() time.Time { return fixed }))
	return mgr, reg, store, src
}

func TestGetMachineDefinition_Idempotent(t *testing.T) {
	_, reg, _, _ := setup(t)

	first, err := reg.ExecuteTool(context.Background(), metatool.ToolGetMachineDefinition, nil)
	require.NoError(t, err)
	second, err := reg.ExecuteTool(context.Background(), metatool.ToolGetMachineDefinition, nil)
	require.NoError(t, err)

	// With no intervening mutation the snapshots are byte-identical.
	assert.Equal(t, first.(string), second.(string))
	assert.Contains(t, first.(string), `"nodes"`)
	assert.Contains(t, first.(string), `"execution"`)
}

func TestUpdateDefinition(t *testing.T) {
	_, reg, store, _ := setup(t)

	t.Run("Valid Patch Swaps Graph", func(t *testing.T) {
		out, err := reg.ExecuteTool(context.Background(), metatool.ToolUpdateDefinition, map[string]any{
			"ops": []map[string]any{
				{"kind": "add_node", "node": map[string]any{"id": "extra", "kind": "state"}},
				{"kind": "add_edge", "edge": map[string]any{"source": "start", "target": "extra"}},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"applied_ops": 2}, out)
		assert.True(t, store.Load().Has("extra"))
	})

	t.Run("Invalid Patch Leaves Graph Untouched", func(t *testing.T) {
		before := store.Load()
		_, err := reg.ExecuteTool(context.Background(), metatool.ToolUpdateDefinition, map[string]any{
			"ops": []map[string]any{
				{"kind": "add_edge", "edge": map[string]any{"source": "start", "target": "ghost"}},
			},
		})
		require.Error(t, err)
		assert.Same(t, before, store.Load())
	})
}

func TestConstructTool(t *testing.T) {
	ctx := context.Background()

	t.Run("Template Strategy", func(t *testing.T) {
		_, reg, _, src := setup(t)
		src.state.SetContextValue("settings", "region", "eu-west")

		_, err := reg.ExecuteTool(ctx, metatool.ToolConstructTool, map[string]any{
			"name":                  "report_region",
			"description":           "Render the configured region.",
			"strategy":              domain.StrategyTemplate,
			"implementation_detail": "region={{ settings.region }} arg={{ input.extra }}",
		})
		require.NoError(t, err)

		out, err := reg.ExecuteTool(ctx, "report_region", map[string]any{"extra": "x"})
		require.NoError(t, err)
		assert.Equal(t, "region=eu-west arg=x", out)
	})

	t.Run("Context Mutation Strategy", func(t *testing.T) {
		_, reg, _, src := setup(t)

		_, err := reg.ExecuteTool(ctx, metatool.ToolConstructTool, map[string]any{
			"name":                  "save_settings",
			"strategy":              domain.StrategyContextMutation,
			"implementation_detail": "settings",
		})
		require.NoError(t, err)

		_, err = reg.ExecuteTool(ctx, "save_settings", map[string]any{"theme": "dark"})
		require.NoError(t, err)
		v, ok := src.state.ContextValue("settings", "theme")
		require.True(t, ok)
		assert.Equal(t, "dark", v)
	})

	t.Run("Delegate Strategy", func(t *testing.T) {
		mgr, reg, _, _ := setup(t)
		_ = mgr

		_, err := reg.ExecuteTool(ctx, metatool.ToolConstructTool, map[string]any{
			"name":                  "tools_alias",
			"strategy":              domain.StrategyDelegate,
			"implementation_detail": metatool.ToolListAvailableTools,
		})
		require.NoError(t, err)

		out, err := reg.ExecuteTool(ctx, "tools_alias", nil)
		require.NoError(t, err)
		descs, ok := out.([]domain.ToolDescriptor)
		require.True(t, ok)
		assert.NotEmpty(t, descs)
	})

	t.Run("Collision With Builtin Rejected", func(t *testing.T) {
		_, reg, _, _ := setup(t)
		_, err := reg.ExecuteTool(ctx, metatool.ToolConstructTool, map[string]any{
			"name":     metatool.ToolUpdateDefinition,
			"strategy": domain.StrategyTemplate,
		})
		require.Error(t, err)
	})

	t.Run("Refining Own Tool Allowed", func(t *testing.T) {
		mgr, reg, _, _ := setup(t)

		for _, detail := range []string{"v1", "v2"} {
			_, err := reg.ExecuteTool(ctx, metatool.ToolConstructTool, map[string]any{
				"name":                  "versioned",
				"strategy":              domain.StrategyTemplate,
				"implementation_detail": detail,
			})
			require.NoError(t, err)
		}

		out, err := reg.ExecuteTool(ctx, "versioned", nil)
		require.NoError(t, err)
		assert.Equal(t, "v2", out)
		assert.Len(t, mgr.Constructed(), 1)
	})

	t.Run("Unknown Strategy Rejected", func(t *testing.T) {
		_, reg, _, _ := setup(t)
		_, err := reg.ExecuteTool(ctx, metatool.ToolConstructTool, map[string]any{
			"name":     "weird",
			"strategy": "quantum",
		})
		require.Error(t, err)
	})
}

func TestToolNodes(t *testing.T) {
	ctx := context.Background()
	_, reg, store, _ := setup(t)

	// Add a node that declares a tool via attributes.
	_, err := store.Apply(graph.Mutation{Ops: []graph.Op{
		{Kind: graph.OpAddNode, Node: &domain.Node{
			ID:   "greeter",
			Kind: domain.NodeKindState,
			Attributes: []domain.Attribute{
				{Name: "tool", Type: domain.AttrTypeString, Value: "greet"},
				{Name: "description", Type: domain.AttrTypeString, Value: "Say hello."},
				{Name: "template", Type: domain.AttrTypeString, Value: "hello {{ input.who }}"},
			},
		}},
	}})
	require.NoError(t, err)

	t.Run("Get Tool Nodes", func(t *testing.T) {
		out, err := reg.ExecuteTool(ctx, metatool.ToolGetToolNodes, nil)
		require.NoError(t, err)
		nodes, ok := out.([]domain.Node)
		require.True(t, ok)
		require.Len(t, nodes, 1)
		assert.Equal(t, "greeter", nodes[0].ID)
	})

	t.Run("Build Tool From Node", func(t *testing.T) {
		_, err := reg.ExecuteTool(ctx, metatool.ToolBuildToolFromNode, map[string]any{"node_id": "greeter"})
		require.NoError(t, err)

		out, err := reg.ExecuteTool(ctx, "greet", map[string]any{"who": "world"})
		require.NoError(t, err)
		assert.Equal(t, "hello world", out)
	})

	t.Run("Node Without Tool Attribute Rejected", func(t *testing.T) {
		_, err := reg.ExecuteTool(ctx, metatool.ToolBuildToolFromNode, map[string]any{"node_id": "start"})
		require.Error(t, err)
	})
}

func TestProposeToolImprovement(t *testing.T) {
	mgr, reg, _, _ := setup(t)

	_, err := reg.ExecuteTool(context.Background(), metatool.ToolProposeToolImprovement, map[string]any{
		"tool":       "report_region",
		"suggestion": "accept a format argument",
	})
	require.NoError(t, err)

	proposals := mgr.Proposals()
	require.Len(t, proposals, 1)
	assert.Equal(t, "report_region", proposals[0].Tool)
	assert.False(t, proposals[0].CreatedAt.IsZero())
}
