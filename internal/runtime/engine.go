package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/wovenlab/shuttle/pkg/agent"
	"github.com/wovenlab/shuttle/pkg/domain"
	"github.com/wovenlab/shuttle/pkg/graph"
	"github.com/wovenlab/shuttle/pkg/metatool"
	"github.com/wovenlab/shuttle/pkg/ports"
	"github.com/wovenlab/shuttle/pkg/registry"
)

// DefaultStepLimit is the fail-closed ceiling used when none is configured.
const DefaultStepLimit = 100

// Engine is the core state machine runner. It owns the execution position,
// the context values and the step history of exactly one run; concurrent
// runs each get their own Engine, registry and graph store, so dynamic
// tools and graph mutations never leak between executions.
type Engine struct {
	store    *graph.Store
	registry *registry.Registry
	meta     *metatool.Manager
	bridge   *agent.Bridge
	recorder ports.TrailRecorder
	hooks    domain.LifecycleHooks
	logger   *slog.Logger

	state   *domain.State
	pending *domain.State // in-flight step working copy

	// Per-step dispatch tables, rebuilt by toolSet on every attempt.
	stepTargets map[string]bool
	stepFields  map[string]fieldAddr

	stepLimit   int
	cbThreshold int
	cbTimeout   time.Duration
	breakers    map[string]*breaker

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithStepLimit sets the fail-closed step ceiling.
func WithStepLimit(limit int) EngineOption {
	return func(e *Engine) {
		if limit > 0 {
			e.stepLimit = limit
		}
	}
}

// WithTrailRecorder streams committed history entries to a recorder.
func WithTrailRecorder(rec ports.TrailRecorder) EngineOption {
	return func(e *Engine) {
		e.recorder = rec
	}
}

// WithCircuitBreaker sets machine-level circuit breaker defaults for task
// nodes flagged with circuitBreaker: true.
func WithCircuitBreaker(threshold int, timeout time.Duration) EngineOption {
	return func(e *Engine) {
		e.cbThreshold = threshold
		e.cbTimeout = timeout
	}
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) EngineOption {
	return func(e *Engine) {
		e.state.RunID = id
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithSleeper overrides the backoff sleeper (tests).
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) EngineOption {
	return func(e *Engine) {
		e.sleep = sleep
	}
}

// NewEngine creates an engine positioned at the graph's start node.
// The graph must already be referentially consistent; NewEngine runs the
// static validation pass on top of that.
func NewEngine(g *graph.Graph, decider ports.Agent, opts ...EngineOption) (*Engine, error) {
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("machine graph rejected: %w", err)
	}
	start, err := g.StartNode()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		store:       graph.NewStore(g),
		registry:    registry.New(),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		stepLimit:   DefaultStepLimit,
		cbThreshold: 3,
		cbTimeout:   30 * time.Second,
		breakers:    make(map[string]*breaker),
		now:         time.Now,
		sleep:       sleepCtx,
		state:       domain.NewState(uuid.NewString(), start, 0),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.state.StepLimit = e.stepLimit

	// Seed context values from the declared attributes of context nodes.
	for _, n := range g.NodesOfKind(domain.NodeKindContext) {
		for _, attr := range n.Attributes {
			e.state.SetContextValue(n.ID, attr.Name, attr.Value)
		}
	}

	e.meta = metatool.New(e.store, e.registry, e, metatool.WithLogger(e.logger))
	e.bridge = agent.NewBridge(decider, e, e.registry)
	return e, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// State returns a snapshot of the current execution state.
func (e *Engine) State() *domain.State {
	return e.state.Clone()
}

// Graph returns the currently authoritative graph version.
func (e *Engine) Graph() *graph.Graph {
	return e.store.Load()
}

// Registry exposes the engine's tool registry to adapters.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Meta exposes the meta-tool manager (proposals, constructed tools).
func (e *Engine) Meta() *metatool.Manager {
	return e.meta
}

// StateSnapshot implements metatool.Source.
func (e *Engine) StateSnapshot() *domain.State {
	return e.activeState().Clone()
}

// EvalContext implements metatool.Source: the expression namespace maps
// each context node name to its fields, plus a read-only "sys" namespace.
func (e *Engine) EvalContext() map[string]any {
	return e.evalContext(nil)
}

// WriteContext implements metatool.Source. Writes land on the in-flight
// step copy when a step is being processed, keeping steps atomic.
func (e *Engine) WriteContext(node string, fields map[string]any) error {
	st := e.activeState()
	for k, v := range fields {
		st.SetContextValue(node, k, v)
	}
	return nil
}

// activeState is the pending step copy while a step is in flight.
func (e *Engine) activeState() *domain.State {
	if e.pending != nil {
		return e.pending
	}
	return e.state
}

func (e *Engine) evalContext(sys map[string]any) map[string]any {
	st := e.activeState()
	data := make(map[string]any, len(st.Context)+1)
	for node, fields := range st.Context {
		inner := make(map[string]any, len(fields))
		for k, v := range fields {
			inner[k] = v
		}
		data[node] = inner
	}
	sysNS := map[string]any{
		"current_node": st.CurrentNode,
		"step_count":   float64(st.StepCount),
		"run_id":       st.RunID,
	}
	for k, v := range sys {
		sysNS[k] = v
	}
	data["sys"] = sysNS
	return data
}

// Run drives the machine until a terminal node or a fatal error. The
// returned state is final either way; every terminating error carries the
// full history up to the failure point.
func (e *Engine) Run(ctx context.Context) (*domain.State, error) {
	for e.state.Status == domain.StatusActive {
		if err := e.Step(ctx); err != nil {
			e.state.Status = domain.StatusFailed
			e.state.Failure = err.Error()
			e.emitRunEnd(ctx, err)
			return e.State(), err
		}
	}
	e.emitRunEnd(ctx, nil)
	return e.State(), nil
}

func (e *Engine) emitRunEnd(ctx context.Context, err error) {
	if e.hooks.OnRunEnd == nil {
		return
	}
	ev := &domain.RunEvent{
		EventBase: e.eventBase(domain.EventRunEnd),
		FinalNode: e.state.CurrentNode,
		Steps:     e.state.StepCount,
	}
	if err != nil {
		ev.Err = err.Error()
	}
	e.hooks.OnRunEnd(ctx, ev)
}

func (e *Engine) eventBase(t domain.EventType) domain.EventBase {
	return domain.EventBase{Timestamp: e.now(), Type: t, RunID: e.state.RunID}
}
