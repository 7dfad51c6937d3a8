package graph_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	presenter "github.com/wovenlab/shuttle/internal/presentation/graph"
	"github.com/wovenlab/shuttle/pkg/domain"
	"github.com/wovenlab/shuttle/pkg/graph"
)

func build(t *testing.T, nodes []domain.Node, edges []domain.Edge) *graph.Graph {
	t.Helper()
	g, err := graph.New(nodes, edges)
	require.NoError(t, err)
	return g
}

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		nodes    []domain.Node
		edges    []domain.Edge
		contains []string
	}{
		{
			name: "node shapes by kind",
			nodes: []domain.Node{
				{ID: "work", Kind: domain.NodeKindTask},
				{ID: "order", Kind: domain.NodeKindContext},
				{ID: "ask", Kind: domain.NodeKindInput},
				{ID: "done", Kind: domain.NodeKindEnd},
				{ID: "plain", Kind: domain.NodeKindState},
			},
			contains: []string{
				"work[[\"work\"]]",
				"order[(\"order\")]",
				"ask[/\"ask\"/]",
				"done((\"done\"))",
				"plain[\"plain\"]",
			},
		},
		{
			name: "id sanitization",
			nodes: []domain.Node{
				{ID: "step-one.final", Kind: domain.NodeKindState},
			},
			contains: []string{
				"step_one_final[\"step-one.final\"]",
			},
		},
		{
			name: "conditional edge label with escaping",
			nodes: []domain.Node{
				{ID: "a", Kind: domain.NodeKindState},
				{ID: "b", Kind: domain.NodeKindState},
			},
			edges: []domain.Edge{
				{Source: "a", Target: "b", Condition: `order.state == "ready"`},
			},
			contains: []string{
				`a -- "order.state == 'ready'" --> b`,
			},
		},
		{
			name: "failure edge renders dotted",
			nodes: []domain.Node{
				{ID: "a", Kind: domain.NodeKindTask},
				{ID: "b", Kind: domain.NodeKindState},
			},
			edges: []domain.Edge{
				{Source: "a", Target: "b", Label: "failure"},
			},
			contains: []string{
				`a -. "failure" .-> b`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := presenter.GenerateMermaid(build(t, tt.nodes, tt.edges), nil)
			if !strings.HasPrefix(out, "graph TD\n") {
				t.Fatalf("missing header in output:\n%s", out)
			}
			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestGenerateMermaidOverlay(t *testing.T) {
	g := build(t,
		[]domain.Node{
			{ID: "a", Kind: domain.NodeKindState},
			{ID: "b", Kind: domain.NodeKindState},
		},
		[]domain.Edge{{Source: "a", Target: "b"}},
	)

	out := presenter.GenerateMermaid(g, &presenter.Overlay{
		VisitedNodes: []string{"a", "a"},
		CurrentNode:  "b",
	})

	if strings.Count(out, "class a visited;") != 1 {
		t.Errorf("visited style should be deduplicated:\n%s", out)
	}
	if !strings.Contains(out, "class b current;") {
		t.Errorf("missing current style:\n%s", out)
	}
}
