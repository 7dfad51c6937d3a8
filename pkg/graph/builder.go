package graph

import "github.com/wovenlab/shuttle/pkg/domain"

// Builder assembles a machine graph programmatically. It is the test and
// embedding counterpart of the external DSL parser: same output, fluent Go.
type Builder struct {
	nodes []domain.Node
	edges []domain.Edge
	index map[string]int
}

// NewBuilder creates an empty graph builder.
func NewBuilder() *Builder {
	return &Builder{index: make(map[string]int)}
}

// NodeBuilder configures a single node.
type NodeBuilder struct {
	builder *Builder
	idx     int
}

// Node adds (or returns the existing) node with the given id and kind.
func (b *Builder) Node(id, kind string) *NodeBuilder {
	if idx, ok := b.index[id]; ok {
		return &NodeBuilder{builder: b, idx: idx}
	}
	b.nodes = append(b.nodes, domain.Node{ID: id, Kind: kind})
	b.index[id] = len(b.nodes) - 1
	return &NodeBuilder{builder: b, idx: len(b.nodes) - 1}
}

// Attr appends an untyped attribute to the node.
func (nb *NodeBuilder) Attr(name string, value any) *NodeBuilder {
	return nb.TypedAttr(name, "", value)
}

// TypedAttr appends an attribute with a declared type to the node.
func (nb *NodeBuilder) TypedAttr(name, typ string, value any) *NodeBuilder {
	n := &nb.builder.nodes[nb.idx]
	n.Attributes = append(n.Attributes, domain.Attribute{Name: name, Type: typ, Value: value})
	return nb
}

// Child appends a nested node.
func (nb *NodeBuilder) Child(child domain.Node) *NodeBuilder {
	n := &nb.builder.nodes[nb.idx]
	n.Children = append(n.Children, child)
	return nb
}

// Edge adds an unconditional edge.
func (b *Builder) Edge(from, to string) *Builder {
	b.edges = append(b.edges, domain.Edge{Source: from, Target: to})
	return b
}

// ConditionalEdge adds an edge gated on an expression.
func (b *Builder) ConditionalEdge(from, to, condition string) *Builder {
	b.edges = append(b.edges, domain.Edge{Source: from, Target: to, Condition: condition})
	return b
}

// LabeledEdge adds an unconditional edge carrying a label, which forces an
// agent decision even when it is the only candidate.
func (b *Builder) LabeledEdge(from, to, label string) *Builder {
	b.edges = append(b.edges, domain.Edge{Source: from, Target: to, Label: label})
	return b
}

// Build compiles and validates the graph.
func (b *Builder) Build() (*Graph, error) {
	return New(b.nodes, b.edges)
}

// Builder returns to the parent builder, for fluent chaining.
func (nb *NodeBuilder) Builder() *Builder {
	return nb.builder
}

// Node starts configuring another node; delegates to the parent builder.
func (nb *NodeBuilder) Node(id, kind string) *NodeBuilder {
	return nb.builder.Node(id, kind)
}

// Build compiles the graph via the parent builder.
func (nb *NodeBuilder) Build() (*Graph, error) {
	return nb.builder.Build()
}
