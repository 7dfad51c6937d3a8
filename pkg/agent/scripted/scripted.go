// Package scripted provides a deterministic decision agent that replays
// a fixed sequence of choices. It backs tests and trail replay, where the
// decision at every step is known in advance.
package scripted

import (
	"context"

	"github.com/wovenlab/shuttle/pkg/domain"
)

// Decision produces one tool choice given the step prompt and the tools
// on offer.
type Decision func(prompt string, tools []domain.ToolDescriptor) (domain.ToolCall, error)

// Agent replays a sequence of decisions in order. Once the script is
// exhausted every further choice is declined, which routes the run onto
// its failure path instead of hanging.
type Agent struct {
	decisions []Decision
	pos       int

	// Prompts records every prompt seen, in order.
	Prompts []string
}

// New builds an agent from an ordered script.
func New(decisions ...Decision) *Agent {
	return &Agent{decisions: decisions}
}

// ChooseTool implements ports.Agent.
func (a *Agent) ChooseTool(_ context.Context, prompt string, tools []domain.ToolDescriptor) (domain.ToolCall, error) {
	a.Prompts = append(a.Prompts, prompt)
	if a.pos >= len(a.decisions) {
		return domain.ToolCall{}, domain.ErrAgentDeclined
	}
	d := a.decisions[a.pos]
	a.pos++
	return d(prompt, tools)
}

// Remaining reports how many scripted decisions are still unconsumed.
func (a *Agent) Remaining() int {
	return len(a.decisions) - a.pos
}

// Call is a decision that picks the named tool with the given input,
// regardless of what is offered.
func Call(name string, input map[string]any) Decision {
	return func(string, []domain.ToolDescriptor) (domain.ToolCall, error) {
		return domain.ToolCall{Name: name, Input: input}, nil
	}
}

// Decline is a decision that refuses to choose.
func Decline() Decision {
	return func(string, []domain.ToolDescriptor) (domain.ToolCall, error) {
		return domain.ToolCall{}, domain.ErrAgentDeclined
	}
}

// Repeat expands one decision into n consecutive copies.
func Repeat(n int, d Decision) []Decision {
	out := make([]Decision, n)
	for i := range out {
		out[i] = d
	}
	return out
}
