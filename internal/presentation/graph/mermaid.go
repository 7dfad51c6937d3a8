// Package graph renders machine definitions as Mermaid flowcharts.
package graph

import (
	"fmt"
	"strings"

	"github.com/wovenlab/shuttle/pkg/domain"
	"github.com/wovenlab/shuttle/pkg/graph"
)

// Overlay contains dynamic run data to visualize on the graph.
type Overlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// GenerateMermaid produces Mermaid flowchart syntax for a machine graph.
// Node shapes follow the kind:
//   - task: [[Subroutine]]
//   - context: [(Database)]
//   - input: [/Parallelogram/]
//   - end: ((Circle))
//   - default: [Rectangle]
//
// Conditional edges carry their condition as the arrow label; failure and
// fallback edges render dotted.
func GenerateMermaid(g *graph.Graph, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range g.Nodes() {
		safeID := sanitizeID(node.ID)

		opener, closer := "[", "]"
		switch node.Kind {
		case domain.NodeKindTask:
			opener, closer = "[[", "]]"
		case domain.NodeKindContext:
			opener, closer = "[(", ")]"
		case domain.NodeKindInput:
			opener, closer = "[/", "/]"
		case domain.NodeKindEnd:
			opener, closer = "((", "))"
		}

		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, node.ID, closer))
	}

	for _, edge := range g.Edges() {
		from := sanitizeID(edge.Source)
		to := sanitizeID(edge.Target)
		dotted := edge.Label == "failure" || edge.Label == "fallback"

		arrow := "-->"
		if dotted {
			arrow = "-.->"
		}
		if label := edgeLabel(edge); label != "" {
			safe := strings.ReplaceAll(label, "\"", "'")
			if dotted {
				arrow = fmt.Sprintf("-. \"%s\" .->", safe)
			} else {
				arrow = fmt.Sprintf("-- \"%s\" -->", safe)
			}
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", from, arrow, to))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visited := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeID(id)
			if safeID != "" && !visited[safeID] {
				visited[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s visited;\n", safeID))
			}
		}
		if overlay.CurrentNode != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeID(overlay.CurrentNode)))
		}
	}

	return sb.String()
}

func edgeLabel(edge domain.Edge) string {
	if edge.Condition != "" {
		return edge.Condition
	}
	return edge.Label
}

func sanitizeID(id string) string {
	replacer := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_")
	return replacer.Replace(id)
}
