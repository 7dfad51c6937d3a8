package metatool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/wovenlab/shuttle/pkg/domain"
	"github.com/wovenlab/shuttle/pkg/graph"
	"github.com/wovenlab/shuttle/pkg/registry"
)

// Names of the privileged tools the manager registers.
const (
	ToolGetMachineDefinition   = "get_machine_definition"
	ToolUpdateDefinition       = "update_definition"
	ToolConstructTool          = "construct_tool"
	ToolListAvailableTools     = "list_available_tools"
	ToolProposeToolImprovement = "propose_tool_improvement"
	ToolGetToolNodes           = "get_tool_nodes"
	ToolBuildToolFromNode      = "build_tool_from_node"
)

// Source gives the manager a read/write window into the owning execution.
// The engine implements it; the manager never touches engine internals
// beyond this contract.
type Source interface {
	// StateSnapshot returns a copy of the current execution state.
	StateSnapshot() *domain.State

	// EvalContext returns the expression namespace for the current state.
	EvalContext() map[string]any

	// WriteContext writes fields into a named context node.
	WriteContext(node string, fields map[string]any) error
}

// Proposal is an advisory tool-improvement note left by the agent.
type Proposal struct {
	Tool       string    `json:"tool"`
	Suggestion string    `json:"suggestion"`
	CreatedAt  time.Time `json:"created_at"`
}

// Manager exposes graph introspection and mutation as tools, and
// synthesizes new tools at runtime from agent-supplied specifications.
// It is a privileged client of the registry, but all graph writes go
// through the store's validated mutation path; the consistency invariant
// is never bypassed.
//
// One Manager serves one execution: its store, registry and constructed
// tool set are scoped to the owning run.
type Manager struct {
	store  *graph.Store
	reg    *registry.Registry
	src    Source
	logger *slog.Logger
	now    func() time.Time

	mu          sync.Mutex
	constructed map[string]domain.DynamicTool
	proposals   []Proposal
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// New creates a Manager and registers its tool set with the registry.
func New(store *graph.Store, reg *registry.Registry, src Source, opts ...Option) *Manager {
	m := &Manager{
		store:       store,
		reg:         reg,
		src:         src,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:         time.Now,
		constructed: make(map[string]domain.DynamicTool),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.register()
	return m
}

func (m *Manager) register() {
	m.reg.RegisterStatic(domain.ToolDescriptor{
		Name:        ToolGetMachineDefinition,
		Description: "Return a snapshot of the current machine graph and execution state.",
		InputSchema: objectSchema(nil, nil),
	}, m.getMachineDefinition)

	m.reg.RegisterStatic(domain.ToolDescriptor{
		Name:        ToolUpdateDefinition,
		Description: "Apply a validated mutation patch (add/remove nodes and edges, update attributes) to the machine graph.",
		InputSchema: objectSchema(map[string]any{
			"ops": map[string]any{"type": "array", "description": "Mutation operations applied all-or-nothing."},
		}, []string{"ops"}),
	}, m.updateDefinition)

	m.reg.RegisterStatic(domain.ToolDescriptor{
		Name:        ToolConstructTool,
		Description: "Synthesize and register a new tool from a specification (template, contextMutation or delegate strategy).",
		InputSchema: objectSchema(map[string]any{
			"name":                  map[string]any{"type": "string"},
			"description":           map[string]any{"type": "string"},
			"input_schema":          map[string]any{"type": "object"},
			"strategy":              map[string]any{"type": "string", "enum": []string{domain.StrategyTemplate, domain.StrategyContextMutation, domain.StrategyDelegate}},
			"implementation_detail": map[string]any{"type": "string"},
		}, []string{"name", "strategy"}),
	}, m.constructTool)

	m.reg.RegisterStatic(domain.ToolDescriptor{
		Name:        ToolListAvailableTools,
		Description: "List every registered tool with its description and input schema.",
		InputSchema: objectSchema(nil, nil),
	}, m.listAvailableTools)

	m.reg.RegisterStatic(domain.ToolDescriptor{
		Name:        ToolProposeToolImprovement,
		Description: "Record an advisory suggestion for improving an existing tool.",
		InputSchema: objectSchema(map[string]any{
			"tool":       map[string]any{"type": "string"},
			"suggestion": map[string]any{"type": "string"},
		}, []string{"tool", "suggestion"}),
	}, m.proposeToolImprovement)

	m.reg.RegisterStatic(domain.ToolDescriptor{
		Name:        ToolGetToolNodes,
		Description: "List graph nodes that carry a 'tool' attribute and can be turned into tools.",
		InputSchema: objectSchema(nil, nil),
	}, m.getToolNodes)

	m.reg.RegisterStatic(domain.ToolDescriptor{
		Name:        ToolBuildToolFromNode,
		Description: "Construct a tool from the attributes of a graph node.",
		InputSchema: objectSchema(map[string]any{
			"node_id": map[string]any{"type": "string"},
		}, []string{"node_id"}),
	}, m.buildToolFromNode)
}

func objectSchema(props map[string]any, required []string) map[string]any {
	schema := map[string]any{"type": "object"}
	if len(props) > 0 {
		schema["properties"] = props
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Definition is the serializable snapshot returned by
// get_machine_definition. Field order is fixed so that two snapshots of
// the same state marshal to identical bytes.
type Definition struct {
	Nodes     []domain.Node `json:"nodes"`
	Edges     []domain.Edge `json:"edges"`
	Execution *domain.State `json:"execution"`
}

func (m *Manager) getMachineDefinition(ctx context.Context, _ string, _ map[string]any) (any, error) {
	g := m.store.Load()
	def := Definition{
		Nodes:     g.Nodes(),
		Edges:     g.Edges(),
		Execution: m.src.StateSnapshot(),
	}
	data, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("snapshot serialization: %w", err)
	}
	return string(data), nil
}

func (m *Manager) updateDefinition(ctx context.Context, _ string, input map[string]any) (any, error) {
	var mut graph.Mutation
	if err := decode(input, &mut); err != nil {
		return nil, &domain.MutationError{Reason: err.Error()}
	}
	next, err := m.store.Apply(mut)
	if err != nil {
		// Recoverable: the prior graph stays authoritative, the agent
		// gets the validation error as context.
		return nil, err
	}
	m.logger.Info("machine definition updated", "ops", len(mut.Ops), "nodes", len(next.Nodes()))
	return map[string]any{"applied_ops": len(mut.Ops)}, nil
}

func (m *Manager) listAvailableTools(ctx context.Context, _ string, _ map[string]any) (any, error) {
	return m.reg.Descriptors(), nil
}

func (m *Manager) proposeToolImprovement(ctx context.Context, _ string, input map[string]any) (any, error) {
	tool, _ := input["tool"].(string)
	suggestion, _ := input["suggestion"].(string)
	if tool == "" || suggestion == "" {
		return nil, fmt.Errorf("propose_tool_improvement requires 'tool' and 'suggestion'")
	}
	m.mu.Lock()
	m.proposals = append(m.proposals, Proposal{Tool: tool, Suggestion: suggestion, CreatedAt: m.now()})
	count := len(m.proposals)
	m.mu.Unlock()
	m.logger.Info("tool improvement proposed", "tool", tool)
	return map[string]any{"recorded": true, "proposals": count}, nil
}

// Proposals returns the advisory notes recorded so far.
func (m *Manager) Proposals() []Proposal {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Proposal, len(m.proposals))
	copy(out, m.proposals)
	return out
}

// Constructed returns the dynamic tools built during this run.
func (m *Manager) Constructed() []domain.DynamicTool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.DynamicTool, 0, len(m.constructed))
	for _, d := range m.constructed {
		out = append(out, d)
	}
	return out
}

func decode(input map[string]any, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  target,
		TagName: "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}
