package domain

// NodeKind constants define the role of a node in the machine graph.
const (
	// NodeKindState is a plain control-flow state.
	NodeKindState = "state"
	// NodeKindTask is a unit of work: the agent is prompted and must act.
	NodeKindTask = "task"
	// NodeKindContext holds mutable key/value storage for the execution.
	NodeKindContext = "context"
	// NodeKindInput marks an entry point for externally supplied data.
	NodeKindInput = "input"
	// NodeKindOutput marks a node whose attributes are surfaced as results.
	NodeKindOutput = "output"
	// NodeKindEnd is a terminal node; reaching one finishes the run.
	NodeKindEnd = "end"
)

// AttrType constants are the declared (not enforced) attribute value types.
const (
	AttrTypeString  = "string"
	AttrTypeNumber  = "number"
	AttrTypeBoolean = "boolean"
	AttrTypeObject  = "object"
)

// Attribute is a named, optionally typed value on a node.
// Attribute order is significant: task prompts and snapshots preserve
// authoring order, so attributes are a slice rather than a map.
type Attribute struct {
	Name  string `json:"name" yaml:"name"`
	Type  string `json:"type,omitempty" yaml:"type,omitempty"`
	Value any    `json:"value" yaml:"value"`
}

// Node represents a vertex in the machine graph.
// Nodes are immutable once loaded; changes go through a graph mutation,
// which produces a validated new graph version.
type Node struct {
	ID         string      `json:"id" yaml:"id"`
	Kind       string      `json:"kind" yaml:"kind"`
	Attributes []Attribute `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Children   []Node      `json:"children,omitempty" yaml:"children,omitempty"`
}

// Attr returns the value of the named attribute, if present.
func (n Node) Attr(name string) (any, bool) {
	for _, a := range n.Attributes {
		if a.Name == name {
			return a.Value, true
		}
	}
	return nil, false
}

// StringAttr returns the named attribute as a string, or empty if absent
// or not a string.
func (n Node) StringAttr(name string) string {
	v, ok := n.Attr(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Terminal reports whether reaching this node finishes the run.
func (n Node) Terminal() bool {
	return n.Kind == NodeKindEnd
}

// Edge is a directed, optionally conditional connection between two nodes.
// An edge with an empty Condition is unconditional.
type Edge struct {
	Source    string `json:"source" yaml:"from"`
	Target    string `json:"target" yaml:"to"`
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
	Label     string `json:"label,omitempty" yaml:"label,omitempty"`
}

// Conditional reports whether the edge is gated on an expression.
func (e Edge) Conditional() bool {
	return e.Condition != ""
}
