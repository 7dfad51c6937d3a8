package agent

import (
	"context"

	"github.com/wovenlab/shuttle/pkg/domain"
	"github.com/wovenlab/shuttle/pkg/ports"
	"github.com/wovenlab/shuttle/pkg/registry"
)

// LocalExecutor is the engine-supplied first dispatch tier, covering the
// hot-path transition and context read/write tools. handled reports
// whether the executor recognized the name at all; when false the call
// falls through to the registry.
type LocalExecutor interface {
	ExecuteLocal(ctx context.Context, call domain.ToolCall) (result any, handled bool, err error)
}

// Bridge adapts the engine's tool dispatch to an external decision agent.
// Choosing is delegated to the agent untouched; execution tries the local
// executor before falling back to full registry resolution, so per-step
// generated tools never pay for (or depend on) registry lookups.
type Bridge struct {
	agent ports.Agent
	local LocalExecutor
	reg   *registry.Registry
}

// NewBridge wires an agent, a local executor and a registry together.
func NewBridge(a ports.Agent, local LocalExecutor, reg *registry.Registry) *Bridge {
	return &Bridge{agent: a, local: local, reg: reg}
}

// ChooseTool forwards the decision to the agent. It blocks until the
// agent answers or ctx is cancelled.
func (b *Bridge) ChooseTool(ctx context.Context, prompt string, tools []domain.ToolDescriptor) (domain.ToolCall, error) {
	return b.agent.ChooseTool(ctx, prompt, tools)
}

// ExecuteTool dispatches a chosen call through the two tiers.
func (b *Bridge) ExecuteTool(ctx context.Context, call domain.ToolCall) (any, error) {
	if b.local != nil {
		if result, handled, err := b.local.ExecuteLocal(ctx, call); handled {
			return result, err
		}
	}
	return b.reg.ExecuteTool(ctx, call.Name, call.Input)
}
