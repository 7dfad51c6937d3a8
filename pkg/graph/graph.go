package graph

import (
	"fmt"
	"sort"

	"github.com/wovenlab/shuttle/pkg/domain"
)

// NotFoundError reports a lookup of a node id that is not in the graph.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("node not found: %s", e.ID)
}

// Graph is the immutable set of nodes and edges a machine executes over.
// All write paths go through ApplyMutation, which validates and returns a
// new Graph; in-flight readers of the old version stay consistent.
type Graph struct {
	nodes map[string]domain.Node
	order []string // insertion order, kept for deterministic snapshots
	edges []domain.Edge
}

// New builds a graph from nodes and edges, enforcing referential
// consistency: unique node ids, unique attribute names per nesting level,
// and edge endpoints that resolve to existing nodes.
func New(nodes []domain.Node, edges []domain.Edge) (*Graph, error) {
	g := &Graph{nodes: make(map[string]domain.Node, len(nodes))}
	for _, n := range nodes {
		if n.ID == "" {
			return nil, &domain.MutationError{Reason: "node missing id"}
		}
		if _, dup := g.nodes[n.ID]; dup {
			return nil, &domain.MutationError{Reason: fmt.Sprintf("duplicate node id '%s'", n.ID)}
		}
		if err := checkAttributes(n); err != nil {
			return nil, err
		}
		g.nodes[n.ID] = n
		g.order = append(g.order, n.ID)
	}
	for _, e := range edges {
		if _, ok := g.nodes[e.Source]; !ok {
			return nil, &domain.MutationError{Reason: fmt.Sprintf("edge source '%s' does not exist", e.Source)}
		}
		if _, ok := g.nodes[e.Target]; !ok {
			return nil, &domain.MutationError{Reason: fmt.Sprintf("edge target '%s' does not exist", e.Target)}
		}
		g.edges = append(g.edges, e)
	}
	return g, nil
}

func checkAttributes(n domain.Node) error {
	seen := make(map[string]bool, len(n.Attributes))
	for _, a := range n.Attributes {
		if seen[a.Name] {
			return &domain.MutationError{
				Reason: fmt.Sprintf("node '%s' has duplicate attribute '%s'", n.ID, a.Name),
			}
		}
		seen[a.Name] = true
	}
	for _, child := range n.Children {
		if err := checkAttributes(child); err != nil {
			return err
		}
	}
	return nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (domain.Node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return domain.Node{}, &NotFoundError{ID: id}
	}
	return n, nil
}

// Has reports whether the graph contains a node with the given id.
func (g *Graph) Has(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []domain.Node {
	out := make([]domain.Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Edges returns a copy of all edges in declaration order.
func (g *Graph) Edges() []domain.Edge {
	out := make([]domain.Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// OutgoingEdges returns the edges leaving a node, in declaration order.
func (g *Graph) OutgoingEdges(nodeID string) []domain.Edge {
	var out []domain.Edge
	for _, e := range g.edges {
		if e.Source == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// IncomingEdges returns the edges arriving at a node, in declaration order.
func (g *Graph) IncomingEdges(nodeID string) []domain.Edge {
	var out []domain.Edge
	for _, e := range g.edges {
		if e.Target == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// Neighbors returns the ids of nodes connected to nodeID by any edge,
// sorted and de-duplicated.
func (g *Graph) Neighbors(nodeID string) []string {
	seen := make(map[string]bool)
	for _, e := range g.edges {
		switch nodeID {
		case e.Source:
			seen[e.Target] = true
		case e.Target:
			seen[e.Source] = true
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// NodesOfKind returns all nodes of the given kind in insertion order.
func (g *Graph) NodesOfKind(kind string) []domain.Node {
	var out []domain.Node
	for _, id := range g.order {
		if n := g.nodes[id]; n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// clone produces a deep-enough copy for copy-on-write mutation: the node
// map and slices are fresh, the domain values are shared (they are treated
// as immutable).
func (g *Graph) clone() *Graph {
	next := &Graph{
		nodes: make(map[string]domain.Node, len(g.nodes)),
		order: make([]string, len(g.order)),
		edges: make([]domain.Edge, len(g.edges)),
	}
	for id, n := range g.nodes {
		next.nodes[id] = n
	}
	copy(next.order, g.order)
	copy(next.edges, g.edges)
	return next
}
