package shuttle

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/wovenlab/shuttle/internal/logging"
	"github.com/wovenlab/shuttle/internal/runtime"
	"github.com/wovenlab/shuttle/pkg/adapters/file"
	"github.com/wovenlab/shuttle/pkg/domain"
	"github.com/wovenlab/shuttle/pkg/graph"
	"github.com/wovenlab/shuttle/pkg/metatool"
	"github.com/wovenlab/shuttle/pkg/ports"
	"github.com/wovenlab/shuttle/pkg/registry"
)

// Machine is the high-level entry point of the library: a loaded machine
// definition plus the configuration shared by its runs. Each run gets a
// fresh engine, registry and graph version, so dynamic tools and graph
// mutations made during one execution never leak into another.
type Machine struct {
	loader   ports.GraphLoader
	hooks    domain.LifecycleHooks
	recorder ports.TrailRecorder
	logger   *slog.Logger

	stepLimit   int
	cbThreshold int
	cbTimeout   time.Duration

	// Name identifies the machine in logs and transports.
	Name string
}

// Option configures a Machine.
type Option func(*Machine)

// WithLoader injects a custom GraphLoader, bypassing the default file
// adapter.
func WithLoader(l ports.GraphLoader) Option {
	return func(m *Machine) {
		m.loader = l
	}
}

// WithLifecycleHooks registers observability hooks for every run.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Machine) {
		m.hooks = hooks
	}
}

// WithTrailRecorder streams every run's history to a recorder.
func WithTrailRecorder(rec ports.TrailRecorder) Option {
	return func(m *Machine) {
		m.recorder = rec
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithStepLimit sets the fail-closed step ceiling per run.
func WithStepLimit(limit int) Option {
	return func(m *Machine) {
		m.stepLimit = limit
	}
}

// WithCircuitBreaker sets the default breaker policy for task nodes that
// opt in via the circuitBreaker attribute.
func WithCircuitBreaker(threshold int, timeout time.Duration) Option {
	return func(m *Machine) {
		m.cbThreshold = threshold
		m.cbTimeout = timeout
	}
}

// New initializes a Machine from a YAML definition at the given path.
// When WithLoader is provided, path may be empty and the file adapter is
// skipped.
func New(path string, opts ...Option) (*Machine, error) {
	m := &Machine{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(m)
	}

	if m.loader == nil {
		if path == "" {
			return nil, fmt.Errorf("path is required when no custom loader is provided")
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		m.Name = filepath.Base(abs)
		m.loader = file.NewLoader(abs)
	}

	return m, nil
}

// Validate loads the definition and runs the full static validation pass
// without starting a run.
func (m *Machine) Validate(ctx context.Context) error {
	g, err := m.loader.Load(ctx)
	if err != nil {
		return err
	}
	return g.Validate()
}

// Definition loads and returns the machine graph.
func (m *Machine) Definition(ctx context.Context) (*graph.Graph, error) {
	return m.loader.Load(ctx)
}

// NewRun loads the definition and prepares an isolated execution driven
// by the given decision agent. The run starts at the graph's start node;
// nothing executes until Step or Execute is called.
func (m *Machine) NewRun(ctx context.Context, decider ports.Agent, opts ...RunOption) (*Run, error) {
	g, err := m.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading machine definition: %w", err)
	}

	engineOpts := []runtime.EngineOption{
		runtime.WithLogger(m.logger),
		runtime.WithLifecycleHooks(m.hooks),
	}
	if m.stepLimit > 0 {
		engineOpts = append(engineOpts, runtime.WithStepLimit(m.stepLimit))
	}
	if m.recorder != nil {
		engineOpts = append(engineOpts, runtime.WithTrailRecorder(m.recorder))
	}
	if m.cbThreshold > 0 {
		engineOpts = append(engineOpts, runtime.WithCircuitBreaker(m.cbThreshold, m.cbTimeout))
	}
	for _, opt := range opts {
		engineOpts = append(engineOpts, opt.engineOptions()...)
	}

	eng, err := runtime.NewEngine(g, decider, engineOpts...)
	if err != nil {
		return nil, err
	}
	return &Run{engine: eng}, nil
}

// RunOption configures a single run.
type RunOption interface {
	engineOptions() []runtime.EngineOption
}

type runOption []runtime.EngineOption

func (o runOption) engineOptions() []runtime.EngineOption { return o }

// WithRunID overrides the generated run identifier, e.g. for replay.
func WithRunID(id string) RunOption {
	return runOption{runtime.WithRunID(id)}
}

// Run is one isolated execution of a machine.
type Run struct {
	engine *runtime.Engine
}

// ID returns the run identifier.
func (r *Run) ID() string {
	return r.engine.State().RunID
}

// Execute drives the run until a terminal node or a fatal error. The
// returned state is final either way.
func (r *Run) Execute(ctx context.Context) (*domain.State, error) {
	return r.engine.Run(ctx)
}

// Step advances the run by exactly one step.
func (r *Run) Step(ctx context.Context) error {
	return r.engine.Step(ctx)
}

// State returns a snapshot of the current execution state.
func (r *Run) State() *domain.State {
	return r.engine.State()
}

// Graph returns the run's current graph version, including any mutations
// applied during execution.
func (r *Run) Graph() *graph.Graph {
	return r.engine.Graph()
}

// Registry exposes the run-scoped tool registry, for registering
// application tools before execution starts.
func (r *Run) Registry() *registry.Registry {
	return r.engine.Registry()
}

// Meta exposes the run's meta-tool manager.
func (r *Run) Meta() *metatool.Manager {
	return r.engine.Meta()
}
