package graph

import (
	"fmt"

	"github.com/wovenlab/shuttle/pkg/domain"
)

// Op kinds accepted by a Mutation.
const (
	OpAddNode    = "add_node"
	OpRemoveNode = "remove_node"
	OpAddEdge    = "add_edge"
	OpRemoveEdge = "remove_edge"
	OpUpdateNode = "update_node"
)

// Op is a single mutation operation. Which fields are read depends on Kind:
// AddNode/UpdateNode use Node, AddEdge/RemoveEdge use Edge, RemoveNode uses
// NodeID. UpdateNode replaces the attribute set of Node.ID.
type Op struct {
	Kind   string       `json:"kind" mapstructure:"kind"`
	Node   *domain.Node `json:"node,omitempty" mapstructure:"node"`
	NodeID string       `json:"node_id,omitempty" mapstructure:"node_id"`
	Edge   *domain.Edge `json:"edge,omitempty" mapstructure:"edge"`
}

// Mutation is an all-or-nothing patch over a graph.
type Mutation struct {
	Ops []Op `json:"ops" mapstructure:"ops"`
}

// ApplyMutation applies the patch to a copy of the graph and re-validates
// the result as a whole. On any failure the receiver is untouched and the
// returned error describes the first violation; on success the returned
// graph is a fully consistent new version.
func (g *Graph) ApplyMutation(m Mutation) (*Graph, error) {
	if len(m.Ops) == 0 {
		return nil, &domain.MutationError{Reason: "empty mutation"}
	}

	next := g.clone()
	for i, op := range m.Ops {
		if err := next.apply(op); err != nil {
			return nil, fmt.Errorf("op %d (%s): %w", i, op.Kind, err)
		}
	}

	// Re-validate the whole result so a multi-op patch cannot sneak an
	// inconsistent intermediate state past per-op checks.
	rebuilt, err := New(next.Nodes(), next.Edges())
	if err != nil {
		return nil, err
	}
	return rebuilt, nil
}

func (next *Graph) apply(op Op) error {
	switch op.Kind {
	case OpAddNode:
		if op.Node == nil {
			return &domain.MutationError{Reason: "add_node requires a node"}
		}
		if next.Has(op.Node.ID) {
			return &domain.MutationError{Reason: fmt.Sprintf("node '%s' already exists", op.Node.ID)}
		}
		if err := checkAttributes(*op.Node); err != nil {
			return err
		}
		next.nodes[op.Node.ID] = *op.Node
		next.order = append(next.order, op.Node.ID)
		return nil

	case OpRemoveNode:
		if !next.Has(op.NodeID) {
			return &NotFoundError{ID: op.NodeID}
		}
		for _, e := range next.edges {
			if e.Source == op.NodeID || e.Target == op.NodeID {
				return &domain.MutationError{
					Reason: fmt.Sprintf("node '%s' is still referenced by edge %s->%s", op.NodeID, e.Source, e.Target),
				}
			}
		}
		delete(next.nodes, op.NodeID)
		for i, id := range next.order {
			if id == op.NodeID {
				next.order = append(next.order[:i], next.order[i+1:]...)
				break
			}
		}
		return nil

	case OpAddEdge:
		if op.Edge == nil {
			return &domain.MutationError{Reason: "add_edge requires an edge"}
		}
		if !next.Has(op.Edge.Source) {
			return &domain.MutationError{Reason: fmt.Sprintf("edge source '%s' does not exist", op.Edge.Source)}
		}
		if !next.Has(op.Edge.Target) {
			return &domain.MutationError{Reason: fmt.Sprintf("edge target '%s' does not exist", op.Edge.Target)}
		}
		next.edges = append(next.edges, *op.Edge)
		return nil

	case OpRemoveEdge:
		if op.Edge == nil {
			return &domain.MutationError{Reason: "remove_edge requires an edge"}
		}
		for i, e := range next.edges {
			if e.Source == op.Edge.Source && e.Target == op.Edge.Target {
				next.edges = append(next.edges[:i], next.edges[i+1:]...)
				return nil
			}
		}
		return &domain.MutationError{
			Reason: fmt.Sprintf("edge %s->%s does not exist", op.Edge.Source, op.Edge.Target),
		}

	case OpUpdateNode:
		if op.Node == nil {
			return &domain.MutationError{Reason: "update_node requires a node"}
		}
		existing, ok := next.nodes[op.Node.ID]
		if !ok {
			return &NotFoundError{ID: op.Node.ID}
		}
		if err := checkAttributes(*op.Node); err != nil {
			return err
		}
		existing.Attributes = op.Node.Attributes
		next.nodes[op.Node.ID] = existing
		return nil

	default:
		return &domain.MutationError{Reason: fmt.Sprintf("unknown op kind '%s'", op.Kind)}
	}
}
