// Package runner drives complete machine executions: timeout-bounded
// live runs and deterministic replays of recorded trails.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wovenlab/shuttle"
	"github.com/wovenlab/shuttle/internal/logging"
	"github.com/wovenlab/shuttle/pkg/agent/scripted"
	"github.com/wovenlab/shuttle/pkg/domain"
	"github.com/wovenlab/shuttle/pkg/ports"
)

// ErrTimeout is returned when a run exceeds its configured wall-clock
// budget. The returned state still carries the history up to the cutoff.
var ErrTimeout = errors.New("run timed out")

// Runner executes runs of one machine.
type Runner struct {
	machine *shuttle.Machine
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithTimeout caps the wall-clock duration of each run. Zero means no cap.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a runner for the given machine.
func New(m *shuttle.Machine, opts ...Option) *Runner {
	r := &Runner{machine: m, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one complete run steered by the given agent.
func (r *Runner) Run(ctx context.Context, decider ports.Agent, opts ...shuttle.RunOption) (*domain.State, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	run, err := r.machine.NewRun(ctx, decider, opts...)
	if err != nil {
		return nil, err
	}
	r.logger.Info("run started", "run_id", run.ID(), "machine", r.machine.Name)

	final, err := run.Execute(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			r.logger.Warn("run timed out", "run_id", run.ID(), "steps", final.StepCount)
			return final, fmt.Errorf("%w after %d steps", ErrTimeout, final.StepCount)
		}
		r.logger.Error("run failed", "run_id", run.ID(), "err", err)
		return final, err
	}
	r.logger.Info("run finished",
		"run_id", run.ID(), "final_node", final.CurrentNode, "steps", final.StepCount)
	return final, nil
}

// Replay re-executes a recorded trail against the machine, feeding back
// exactly the decisions the original agent made. With unchanged machine
// definition and tool behavior the replay reproduces the original path.
func (r *Runner) Replay(ctx context.Context, runID string, trail []domain.HistoryEntry) (*domain.State, error) {
	var decisions []scripted.Decision
	for _, entry := range trail {
		if entry.Automated {
			continue
		}
		if entry.Tool == "" {
			decisions = append(decisions, scripted.Decline())
			continue
		}
		decisions = append(decisions, scripted.Call(entry.Tool, entry.Input))
	}

	ag := scripted.New(decisions...)
	run, err := r.machine.NewRun(ctx, ag, shuttle.WithRunID(runID+"-replay"))
	if err != nil {
		return nil, err
	}

	final, err := run.Execute(ctx)
	if err != nil {
		return final, fmt.Errorf("replay diverged: %w", err)
	}
	if left := ag.Remaining(); left > 0 {
		return final, fmt.Errorf("replay diverged: %d recorded decision(s) unconsumed", left)
	}
	return final, nil
}

// Path extracts the node visit sequence from a state's history, skipping
// failed attempts. Useful for comparing a replay against its original.
func Path(s *domain.State) []string {
	var path []string
	for _, entry := range s.History {
		if entry.Err != "" {
			continue
		}
		if len(path) == 0 || path[len(path)-1] != entry.Node {
			path = append(path, entry.Node)
		}
	}
	if len(s.History) > 0 {
		path = append(path, s.CurrentNode)
	}
	return path
}
