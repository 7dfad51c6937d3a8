// Package observability bundles the Prometheus instrumentation of machine
// runs. Metrics attach to an engine through lifecycle hooks, so the
// runtime itself stays free of metric plumbing.
package observability

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wovenlab/shuttle/pkg/domain"
)

// Metrics holds the collectors for one machine (not one run: label
// cardinality stays bounded by node and tool names).
type Metrics struct {
	steps       *prometheus.CounterVec
	transitions *prometheus.CounterVec
	toolCalls   *prometheus.CounterVec
	toolErrors  *prometheus.CounterVec
	runDuration prometheus.Histogram
	runSteps    prometheus.Histogram
	runsEnded   *prometheus.CounterVec

	// Run starts are stamped per run ID on the first step and consumed
	// at run end, so one hook set can serve concurrent runs.
	mu       sync.Mutex
	runStart map[string]time.Time
	now      func() time.Time
}

// NewMetrics creates and registers the collectors. Pass
// prometheus.DefaultRegisterer for the process-global registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Steps started, by node.",
		}, []string{"node"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Committed transitions, by source and target node.",
		}, []string{"from", "to"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool dispatches, by tool name.",
		}, []string{"tool"}),
		toolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_errors_total",
			Help:      "Failed tool dispatches, by tool name.",
		}, []string{"tool"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of completed runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		runSteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_steps",
			Help:      "Steps taken by completed runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		runsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_ended_total",
			Help:      "Finished runs, by outcome.",
		}, []string{"outcome"}),
		runStart: make(map[string]time.Time),
		now:      time.Now,
	}
	reg.MustRegister(m.steps, m.transitions, m.toolCalls, m.toolErrors,
		m.runDuration, m.runSteps, m.runsEnded)
	return m
}

// Hooks returns lifecycle hooks feeding these collectors. The hooks are
// self-contained and can be merged with application hooks via Merge.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepStart: func(_ context.Context, e *domain.StepEvent) {
			m.mu.Lock()
			if _, ok := m.runStart[e.RunID]; !ok {
				m.runStart[e.RunID] = m.now()
			}
			m.mu.Unlock()
			m.steps.WithLabelValues(e.NodeID).Inc()
		},
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			m.transitions.WithLabelValues(e.From, e.To).Inc()
		},
		OnToolCall: func(_ context.Context, e *domain.ToolEvent) {
			m.toolCalls.WithLabelValues(e.ToolName).Inc()
		},
		OnToolReturn: func(_ context.Context, e *domain.ToolEvent) {
			if e.IsError {
				m.toolErrors.WithLabelValues(e.ToolName).Inc()
			}
		},
		OnRunEnd: func(_ context.Context, e *domain.RunEvent) {
			m.mu.Lock()
			start, ok := m.runStart[e.RunID]
			delete(m.runStart, e.RunID)
			m.mu.Unlock()
			if ok {
				m.runDuration.Observe(m.now().Sub(start).Seconds())
			}
			m.runSteps.Observe(float64(e.Steps))
			outcome := "terminated"
			if e.Err != "" {
				outcome = "failed"
			}
			m.runsEnded.WithLabelValues(outcome).Inc()
		},
	}
}

// Merge chains two hook sets; both sides fire for every event.
func Merge(a, b domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepStart: func(ctx context.Context, e *domain.StepEvent) {
			if a.OnStepStart != nil {
				a.OnStepStart(ctx, e)
			}
			if b.OnStepStart != nil {
				b.OnStepStart(ctx, e)
			}
		},
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			if a.OnTransition != nil {
				a.OnTransition(ctx, e)
			}
			if b.OnTransition != nil {
				b.OnTransition(ctx, e)
			}
		},
		OnToolCall: func(ctx context.Context, e *domain.ToolEvent) {
			if a.OnToolCall != nil {
				a.OnToolCall(ctx, e)
			}
			if b.OnToolCall != nil {
				b.OnToolCall(ctx, e)
			}
		},
		OnToolReturn: func(ctx context.Context, e *domain.ToolEvent) {
			if a.OnToolReturn != nil {
				a.OnToolReturn(ctx, e)
			}
			if b.OnToolReturn != nil {
				b.OnToolReturn(ctx, e)
			}
		},
		OnRunEnd: func(ctx context.Context, e *domain.RunEvent) {
			if a.OnRunEnd != nil {
				a.OnRunEnd(ctx, e)
			}
			if b.OnRunEnd != nil {
				b.OnRunEnd(ctx, e)
			}
		},
	}
}
