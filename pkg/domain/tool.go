package domain

import "time"

// ToolDescriptor describes a tool offered to the deciding agent.
// Compatible with OpenAI/MCP function schemas.
type ToolDescriptor struct {
	Name        string         `json:"name" yaml:"name" mapstructure:"name"`
	Description string         `json:"description" yaml:"description" mapstructure:"description"`
	InputSchema map[string]any `json:"input_schema,omitempty" yaml:"input_schema,omitempty" mapstructure:"input_schema"`
}

// ToolCall is the agent's chosen tool plus its arguments.
type ToolCall struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input,omitempty"`
}

// ToolResult is the outcome of dispatching a tool call.
type ToolResult struct {
	ID      string `json:"id"`
	Result  any    `json:"result,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Strategy constants for runtime-constructed tools.
const (
	// StrategyTemplate renders the implementation detail as a template
	// against the current context and returns the resulting string.
	StrategyTemplate = "template"
	// StrategyContextMutation writes the call input into a named context node.
	StrategyContextMutation = "contextMutation"
	// StrategyDelegate forwards the call to another registered tool.
	StrategyDelegate = "delegate"
)

// DynamicTool is a tool synthesized at runtime via the construct_tool
// meta operation. Once registered it is indistinguishable from a built-in
// tool to callers.
type DynamicTool struct {
	Name                 string         `json:"name" mapstructure:"name"`
	Description          string         `json:"description" mapstructure:"description"`
	InputSchema          map[string]any `json:"input_schema,omitempty" mapstructure:"input_schema"`
	Strategy             string         `json:"strategy" mapstructure:"strategy"`
	ImplementationDetail string         `json:"implementation_detail" mapstructure:"implementation_detail"`
	CreatedAt            time.Time      `json:"created_at" mapstructure:"-"`
}

// Descriptor exposes the dynamic tool in the common descriptor form.
func (d DynamicTool) Descriptor() ToolDescriptor {
	return ToolDescriptor{
		Name:        d.Name,
		Description: d.Description,
		InputSchema: d.InputSchema,
	}
}
