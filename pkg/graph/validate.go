package graph

import (
	"fmt"

	"github.com/wovenlab/shuttle/pkg/domain"
	"github.com/wovenlab/shuttle/pkg/expr"
)

// ValidationError reports a structural problem found by Validate.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid machine graph: %d problem(s), first: %s", len(e.Problems), e.Problems[0])
}

// StartNode determines the designated entry point: the node carrying a
// truthy "start" attribute, or else the unique non-context node with no
// incoming edges.
func (g *Graph) StartNode() (string, error) {
	for _, n := range g.Nodes() {
		if v, ok := n.Attr("start"); ok {
			if b, _ := v.(bool); b {
				return n.ID, nil
			}
		}
	}

	var candidates []string
	for _, n := range g.Nodes() {
		if n.Kind == domain.NodeKindContext {
			continue
		}
		if len(g.IncomingEdges(n.ID)) == 0 {
			candidates = append(candidates, n.ID)
		}
	}
	switch len(candidates) {
	case 1:
		return candidates[0], nil
	case 0:
		return "", &ValidationError{Problems: []string{"no start node: every node has incoming edges"}}
	default:
		return "", &ValidationError{Problems: []string{
			fmt.Sprintf("ambiguous start node: %v all have no incoming edges", candidates),
		}}
	}
}

// Validate runs the static checks the engine relies on before execution:
// a resolvable start node, end nodes with no outgoing edges, known node
// kinds, and conditions that at least parse. Referential consistency is
// already guaranteed by construction.
func (g *Graph) Validate() error {
	var problems []string

	if _, err := g.StartNode(); err != nil {
		var verr *ValidationError
		if ok := asValidation(err, &verr); ok {
			problems = append(problems, verr.Problems...)
		} else {
			problems = append(problems, err.Error())
		}
	}

	kinds := map[string]bool{
		domain.NodeKindState:   true,
		domain.NodeKindTask:    true,
		domain.NodeKindContext: true,
		domain.NodeKindInput:   true,
		domain.NodeKindOutput:  true,
		domain.NodeKindEnd:     true,
	}
	for _, n := range g.Nodes() {
		if !kinds[n.Kind] {
			problems = append(problems, fmt.Sprintf("node '%s' has unknown kind '%s'", n.ID, n.Kind))
		}
		if n.Kind == domain.NodeKindEnd && len(g.OutgoingEdges(n.ID)) > 0 {
			problems = append(problems, fmt.Sprintf("end node '%s' has outgoing edges", n.ID))
		}
	}

	// Evaluation is tolerant of missing fields, so an error here can only
	// mean the condition does not parse.
	for _, e := range g.Edges() {
		if !e.Conditional() {
			continue
		}
		if _, err := expr.Evaluate(e.Condition, map[string]any{}); err != nil {
			problems = append(problems, fmt.Sprintf("edge %s->%s: %v", e.Source, e.Target, err))
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func asValidation(err error, target **ValidationError) bool {
	v, ok := err.(*ValidationError)
	if ok {
		*target = v
	}
	return ok
}
