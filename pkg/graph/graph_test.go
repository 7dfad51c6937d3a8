package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wovenlab/shuttle/pkg/domain"
	"github.com/wovenlab/shuttle/pkg/graph"
)

func buildLinear(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.NewBuilder().
		Node("start", domain.NodeKindState).
		Node("work", domain.NodeKindTask).
		Node("done", domain.NodeKindEnd).
		Builder().
		Edge("start", "work").
		Edge("work", "done").
		Build()
	require.NoError(t, err)
	return g
}

func TestNew_RejectsInconsistentInput(t *testing.T) {
	t.Run("Dangling Edge", func(t *testing.T) {
		_, err := graph.New(
			[]domain.Node{{ID: "a", Kind: domain.NodeKindState}},
			[]domain.Edge{{Source: "a", Target: "ghost"}},
		)
		require.Error(t, err)
	})

	t.Run("Duplicate Node ID", func(t *testing.T) {
		_, err := graph.New(
			[]domain.Node{
				{ID: "a", Kind: domain.NodeKindState},
				{ID: "a", Kind: domain.NodeKindEnd},
			},
			nil,
		)
		require.Error(t, err)
	})

	t.Run("Duplicate Attribute Name", func(t *testing.T) {
		_, err := graph.New(
			[]domain.Node{{
				ID:   "a",
				Kind: domain.NodeKindState,
				Attributes: []domain.Attribute{
					{Name: "x", Value: 1},
					{Name: "x", Value: 2},
				},
			}},
			nil,
		)
		require.Error(t, err)
	})

	t.Run("Duplicate Attribute In Different Levels Is Fine", func(t *testing.T) {
		_, err := graph.New(
			[]domain.Node{{
				ID:         "a",
				Kind:       domain.NodeKindContext,
				Attributes: []domain.Attribute{{Name: "x", Value: 1}},
				Children: []domain.Node{{
					ID:         "a.inner",
					Kind:       domain.NodeKindContext,
					Attributes: []domain.Attribute{{Name: "x", Value: 2}},
				}},
			}},
			nil,
		)
		require.NoError(t, err)
	})
}

func TestGraph_Queries(t *testing.T) {
	g := buildLinear(t)

	t.Run("Node Lookup", func(t *testing.T) {
		n, err := g.Node("work")
		require.NoError(t, err)
		assert.Equal(t, domain.NodeKindTask, n.Kind)

		_, err = g.Node("nope")
		var nf *graph.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "nope", nf.ID)
	})

	t.Run("Outgoing Edges Ordered", func(t *testing.T) {
		edges := g.OutgoingEdges("start")
		require.Len(t, edges, 1)
		assert.Equal(t, "work", edges[0].Target)
		assert.Empty(t, g.OutgoingEdges("done"))
	})

	t.Run("Neighbors", func(t *testing.T) {
		assert.Equal(t, []string{"done", "start"}, g.Neighbors("work"))
	})
}

func TestGraph_StartNode(t *testing.T) {
	t.Run("Unique In-Degree Zero", func(t *testing.T) {
		g := buildLinear(t)
		start, err := g.StartNode()
		require.NoError(t, err)
		assert.Equal(t, "start", start)
	})

	t.Run("Explicit Start Attribute Wins", func(t *testing.T) {
		g, err := graph.NewBuilder().
			Node("a", domain.NodeKindState).Attr("start", true).
			Builder().
			Node("b", domain.NodeKindState).
			Builder().
			Edge("b", "a").
			Build()
		require.NoError(t, err)
		start, err := g.StartNode()
		require.NoError(t, err)
		assert.Equal(t, "a", start)
	})

	t.Run("Context Nodes Never Count As Start", func(t *testing.T) {
		g, err := graph.NewBuilder().
			Node("cfg", domain.NodeKindContext).
			Builder().
			Node("start", domain.NodeKindState).
			Node("done", domain.NodeKindEnd).
			Builder().
			Edge("start", "done").
			Build()
		require.NoError(t, err)
		start, err := g.StartNode()
		require.NoError(t, err)
		assert.Equal(t, "start", start)
	})
}

func TestGraph_Validate(t *testing.T) {
	t.Run("Valid Graph", func(t *testing.T) {
		require.NoError(t, buildLinear(t).Validate())
	})

	t.Run("End Node With Outgoing Edge", func(t *testing.T) {
		g, err := graph.New(
			[]domain.Node{
				{ID: "a", Kind: domain.NodeKindState},
				{ID: "z", Kind: domain.NodeKindEnd},
			},
			[]domain.Edge{{Source: "a", Target: "z"}, {Source: "z", Target: "a"}},
		)
		require.NoError(t, err)
		require.Error(t, g.Validate())
	})

	t.Run("Unparseable Condition", func(t *testing.T) {
		g, err := graph.NewBuilder().
			Node("a", domain.NodeKindState).
			Node("z", domain.NodeKindEnd).
			Builder().
			ConditionalEdge("a", "z", "x == ").
			Build()
		require.NoError(t, err)
		require.Error(t, g.Validate())
	})

	t.Run("Unknown Kind", func(t *testing.T) {
		g, err := graph.New([]domain.Node{{ID: "a", Kind: "widget"}}, nil)
		require.NoError(t, err)
		require.Error(t, g.Validate())
	})
}
