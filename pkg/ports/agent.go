package ports

import (
	"context"

	"github.com/wovenlab/shuttle/pkg/domain"
)

// Agent is the external decision-making oracle. The engine treats it as an
// opaque function from (available tools, rendered prompt) to a tool call.
//
// Implementations signal "no choice / give up" by returning
// domain.ErrAgentDeclined; the engine classifies that per the error
// taxonomy rather than treating it as a transport failure.
type Agent interface {
	// ChooseTool presents the rendered task prompt (empty for non-task
	// nodes) and the full descriptor list, and returns the chosen call.
	// The call blocks until the agent answers or ctx is cancelled; it is
	// the only suspension point in the step loop.
	ChooseTool(ctx context.Context, prompt string, tools []domain.ToolDescriptor) (domain.ToolCall, error)
}
