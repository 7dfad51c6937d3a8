package runtime

import (
	"fmt"

	"github.com/wovenlab/shuttle/pkg/domain"
	"github.com/wovenlab/shuttle/pkg/expr"
)

// renderPrompt produces the instruction shown to the deciding agent for
// the current step. A node's prompt attribute is a template resolved
// against the live context; nodes without one get a generic instruction.
// Re-prompts after a recoverable failure carry the error text so the
// agent can adjust its next choice.
func (e *Engine) renderPrompt(node domain.Node, lastErr error) string {
	prompt := node.StringAttr("prompt")
	if prompt == "" {
		switch node.Kind {
		case domain.NodeKindTask:
			prompt = fmt.Sprintf("You are at task node '%s'. Perform the task using the available tools, then transition onward.", node.ID)
		case domain.NodeKindInput:
			prompt = fmt.Sprintf("You are at input node '%s'. Gather the required values into context, then transition onward.", node.ID)
		default:
			prompt = fmt.Sprintf("You are at node '%s'. Choose the next transition.", node.ID)
		}
	} else {
		prompt = expr.ResolveTemplate(prompt, e.promptContext(node))
	}

	if lastErr != nil {
		prompt += fmt.Sprintf("\n\nThe previous attempt failed: %s. Choose a different tool or correct the arguments.", lastErr)
	}
	return prompt
}

// promptContext is the evaluation namespace for prompt templates: the
// regular expression context plus the current node's own attributes
// under "attributes".
func (e *Engine) promptContext(node domain.Node) map[string]any {
	data := e.evalContext(nil)
	attrs := make(map[string]any, len(node.Attributes))
	for _, a := range node.Attributes {
		attrs[a.Name] = a.Value
	}
	data["attributes"] = attrs
	data["node"] = map[string]any{"id": node.ID, "kind": node.Kind}
	return data
}
