// Package openai implements the decision agent on the OpenAI Chat
// Completions API with function calling. Each step becomes one
// completion request carrying the step prompt and the legal tools; the
// model's tool call is the decision.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	sdk "github.com/openai/openai-go"

	"github.com/wovenlab/shuttle/pkg/domain"
)

const defaultSystemPrompt = "You operate a workflow state machine. " +
	"At every step you are given the current situation and a set of tools: " +
	"transitions, context reads and writes, and domain actions. " +
	"Choose exactly one tool that makes progress. " +
	"If none of the tools is appropriate, respond with a short explanation instead of calling a tool."

// Config holds the tunable parameters of the agent.
type Config struct {
	// Model defaults to GPT-4o mini.
	Model string
	// Temperature defaults to 0; decisions should be reproducible.
	Temperature float64
	// SystemPrompt overrides the built-in operator instructions.
	SystemPrompt string
	// MaxCompletionTokens defaults to 1024.
	MaxCompletionTokens int64
}

// Agent implements ports.Agent against the OpenAI API.
type Agent struct {
	client *sdk.Client
	cfg    Config
}

// New creates an agent with a client configured from the environment
// (OPENAI_API_KEY and friends).
func New(cfg Config) *Agent {
	client := sdk.NewClient()
	return NewFromClient(&client, cfg)
}

// NewFromClient creates an agent from an existing client.
func NewFromClient(client *sdk.Client, cfg Config) *Agent {
	if cfg.Model == "" {
		cfg.Model = sdk.ChatModelGPT4oMini
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if cfg.MaxCompletionTokens == 0 {
		cfg.MaxCompletionTokens = 1024
	}
	return &Agent{client: client, cfg: cfg}
}

// ChooseTool implements ports.Agent. A completion without a tool call is
// treated as the model declining to choose.
func (a *Agent) ChooseTool(ctx context.Context, prompt string, tools []domain.ToolDescriptor) (domain.ToolCall, error) {
	params := sdk.ChatCompletionNewParams{
		Model: a.cfg.Model,
		Messages: []sdk.ChatCompletionMessageParamUnion{
			sdk.SystemMessage(a.cfg.SystemPrompt),
			sdk.UserMessage(prompt),
		},
		Temperature:         sdk.Float(a.cfg.Temperature),
		MaxCompletionTokens: sdk.Int(a.cfg.MaxCompletionTokens),
		Tools:               toolParams(tools),
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return domain.ToolCall{}, fmt.Errorf("completion request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.ToolCall{}, fmt.Errorf("completion returned no choices")
	}

	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) == 0 {
		return domain.ToolCall{}, fmt.Errorf("%w: %s", domain.ErrAgentDeclined, firstLine(msg.Content))
	}

	tc := msg.ToolCalls[0]
	input := map[string]any{}
	if args := tc.Function.Arguments; args != "" {
		if err := json.Unmarshal([]byte(args), &input); err != nil {
			return domain.ToolCall{}, fmt.Errorf("malformed tool arguments for %s: %w", tc.Function.Name, err)
		}
	}
	return domain.ToolCall{
		ID:    tc.ID,
		Name:  tc.Function.Name,
		Input: input,
	}, nil
}

func toolParams(tools []domain.ToolDescriptor) []sdk.ChatCompletionToolParam {
	out := make([]sdk.ChatCompletionToolParam, len(tools))
	for i, t := range tools {
		params := t.InputSchema
		if params == nil {
			params = map[string]any{"type": "object"}
		}
		out[i] = sdk.ChatCompletionToolParam{
			Type: "function",
			Function: sdk.FunctionDefinitionParam{
				Name:        t.Name,
				Description: sdk.String(t.Description),
				Parameters:  sdk.FunctionParameters(params),
			},
		}
	}
	return out
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
