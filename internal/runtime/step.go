package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wovenlab/shuttle/pkg/domain"
	"github.com/wovenlab/shuttle/pkg/expr"
	"github.com/wovenlab/shuttle/pkg/graph"
)

// Step executes one iteration of the execution loop: compute candidate
// edges, obtain a tool choice (or take the automated fast path), dispatch
// it, and commit the effect atomically. A non-nil error is always fatal
// for the run; recoverable faults are consumed inside the loop by
// re-prompting the agent.
func (e *Engine) Step(ctx context.Context) error {
	if e.state.Status != domain.StatusActive {
		return nil
	}

	g := e.store.Load()
	node, err := g.Node(e.state.CurrentNode)
	if err != nil {
		return fmt.Errorf("current node vanished: %w", err)
	}
	if node.Terminal() {
		e.state.Status = domain.StatusTerminated
		return nil
	}
	if e.state.StepCount >= e.stepLimit {
		return &domain.StepLimitExceededError{Limit: e.stepLimit}
	}

	if e.hooks.OnStepStart != nil {
		e.hooks.OnStepStart(ctx, &domain.StepEvent{
			EventBase: e.eventBase(domain.EventStepStart),
			NodeID:    node.ID,
			NodeKind:  node.Kind,
			StepCount: e.state.StepCount,
		})
	}

	candidates := e.candidates(g, node, nil)
	if len(candidates) == 0 {
		return &domain.StuckError{Node: node.ID}
	}

	// Circuit breaker short-circuit: a tripped task node goes straight to
	// its failure path without consulting the agent.
	if e.breakerOpen(node) {
		e.logger.Warn("circuit open, bypassing agent", "node", node.ID)
		return e.resolveFailurePath(ctx, g, node, "circuit breaker open", 0, errCircuitOpen)
	}

	// Automated fast path: a single unconditional, unlabelled edge from a
	// non-task node needs no decision.
	if len(candidates) == 1 && !candidates[0].Conditional() && candidates[0].Label == "" && node.Kind != domain.NodeKindTask {
		e.pending = e.state.Clone()
		e.pending.CurrentNode = candidates[0].Target
		e.commitStep(ctx, node.ID, domain.ToolPrefixTransition+candidates[0].Target, nil, 0, true)
		return nil
	}

	return e.decideAndDispatch(ctx, node)
}

// decideAndDispatch runs the agent choice loop for one step, including
// the retry policy of task nodes. Recoverable faults (invalid transition,
// unknown tool, rejected mutation) re-prompt the agent without consuming
// the node's retry budget; only genuine handler failures count against
// maxRetries.
func (e *Engine) decideAndDispatch(ctx context.Context, node domain.Node) error {
	policy := retryPolicyFor(node)
	var lastErr error
	failures := 0

	for attempt := 1; ; attempt++ {
		if e.state.StepCount >= e.stepLimit {
			return &domain.StepLimitExceededError{Limit: e.stepLimit}
		}

		// Recompute against the live graph: a prior attempt may have
		// applied update_definition, which changes the candidate set.
		g := e.store.Load()
		candidates := e.candidates(g, node, nil)

		e.pending = e.state.Clone()
		tools := e.toolSet(g, node, candidates)
		prompt := e.renderPrompt(node, lastErr)

		call, err := e.bridge.ChooseTool(ctx, prompt, tools)
		if err != nil {
			e.pending = nil
			return e.classifyChoiceFailure(ctx, err, node, attempt)
		}

		if e.hooks.OnToolCall != nil {
			e.hooks.OnToolCall(ctx, &domain.ToolEvent{
				EventBase: e.eventBase(domain.EventToolCall),
				NodeID:    node.ID,
				ToolName:  call.Name,
				Input:     call.Input,
			})
		}

		result, dispatchErr := e.bridge.ExecuteTool(ctx, call)

		if e.hooks.OnToolReturn != nil {
			ev := &domain.ToolEvent{
				EventBase: e.eventBase(domain.EventToolReturn),
				NodeID:    node.ID,
				ToolName:  call.Name,
				Output:    result,
				IsError:   dispatchErr != nil,
			}
			e.hooks.OnToolReturn(ctx, ev)
		}

		if dispatchErr == nil {
			e.commitStep(ctx, node.ID, call.Name, call.Input, attempt, false)
			e.breakerSuccess(node)
			return nil
		}

		// The step's context/position changes are discarded; the failed
		// attempt itself is recorded on the committed history.
		e.pending = nil
		e.breakerFailure(node)
		e.logger.Debug("tool dispatch failed",
			"node", node.ID, "tool", call.Name, "attempt", attempt, "err", dispatchErr)

		if recoverable(dispatchErr) {
			e.recordAttempt(ctx, node.ID, call.Name, call.Input, attempt, dispatchErr)
			if ctx.Err() != nil {
				return fmt.Errorf("run aborted: %w", ctx.Err())
			}
			// Surfaced to the agent as context for its next choice.
			lastErr = dispatchErr
			continue
		}

		// Genuine handler failure: consult the node's retry policy.
		failures++
		e.recordAttempt(ctx, node.ID, call.Name, call.Input, failures, dispatchErr)
		if ctx.Err() != nil {
			return fmt.Errorf("run aborted: %w", ctx.Err())
		}
		if policy.retriesLeft(failures) {
			if err := e.backoff(ctx, policy, failures); err != nil {
				return fmt.Errorf("run aborted: %w", err)
			}
			lastErr = dispatchErr
			continue
		}

		return e.resolveFailurePath(ctx, e.store.Load(), node, dispatchErr.Error(), failures, dispatchErr)
	}
}

// classifyChoiceFailure maps an agent-boundary failure into the taxonomy.
func (e *Engine) classifyChoiceFailure(ctx context.Context, err error, node domain.Node, attempt int) error {
	if ctx.Err() != nil {
		// The pending step was discarded: fully not-applied.
		return fmt.Errorf("run aborted: %w", ctx.Err())
	}
	if errors.Is(err, domain.ErrAgentDeclined) {
		e.recordAttempt(ctx, node.ID, "", nil, attempt, err)
		return e.resolveFailurePath(ctx, e.store.Load(), node, "agent declined", attempt, err)
	}
	return fmt.Errorf("agent choice failed: %w", err)
}

// candidates returns the outgoing edges whose condition is absent or true
// under the current context, preserving declaration order. The extra sys
// fields (error, attempts) are populated on failure paths.
func (e *Engine) candidates(g *graph.Graph, node domain.Node, sys map[string]any) []domain.Edge {
	var out []domain.Edge
	data := e.evalContext(sys)
	for _, edge := range g.OutgoingEdges(node.ID) {
		if !edge.Conditional() {
			out = append(out, edge)
			continue
		}
		ok, err := expr.EvaluateBool(edge.Condition, data)
		if err != nil {
			// Validated at load time, but a mutation may have introduced
			// a bad condition; treat it as not taken.
			e.logger.Warn("condition evaluation failed",
				"edge", edge.Source+"->"+edge.Target, "err", err)
			continue
		}
		if ok {
			out = append(out, edge)
		}
	}
	return out
}

// resolveFailurePath follows the node's declared failure edge, if any:
// an edge labelled "failure" or "fallback", or a conditional edge whose
// condition references the sys namespace and evaluates true with
// sys.failed, sys.error and sys.attempts populated. A conditional edge
// gated purely on ordinary context is normal flow, not a failure path.
// With no match the original fault terminates the run.
func (e *Engine) resolveFailurePath(ctx context.Context, g *graph.Graph, node domain.Node, cause string, attempts int, original error) error {
	sys := map[string]any{
		"failed":   true,
		"error":    cause,
		"attempts": float64(attempts),
	}
	if errors.Is(original, domain.ErrAgentDeclined) {
		sys["declined"] = true
	}

	var target string
	for _, edge := range e.candidates(g, node, sys) {
		failurePath := edge.Label == "failure" || edge.Label == "fallback" ||
			(edge.Conditional() && strings.Contains(edge.Condition, "sys."))
		if failurePath {
			target = edge.Target
			break
		}
	}
	if target == "" {
		if errors.Is(original, domain.ErrAgentDeclined) {
			return fmt.Errorf("at node '%s': %w", node.ID, domain.ErrAgentDeclined)
		}
		return &domain.TaskFailedError{Node: node.ID, Attempts: attempts, Cause: cause}
	}

	e.pending = e.state.Clone()
	e.pending.CurrentNode = target
	e.commitStep(ctx, node.ID, domain.ToolPrefixTransition+target, nil, attempts, true)
	return nil
}

// commitStep publishes the pending state as committed: history, step
// count, hooks, trail recording, terminal detection. The commit is the
// single mutation point, which is what makes a step atomic.
func (e *Engine) commitStep(ctx context.Context, nodeID, tool string, input map[string]any, attempt int, automated bool) {
	entry := domain.HistoryEntry{
		Node:      nodeID,
		Tool:      tool,
		Input:     input,
		Timestamp: e.now(),
		Automated: automated,
	}
	if attempt > 1 {
		entry.Attempt = attempt
	}
	e.pending.History = append(e.pending.History, entry)
	e.pending.StepCount++

	prev := e.state.CurrentNode
	e.state = e.pending
	e.pending = nil

	if e.state.CurrentNode != prev && e.hooks.OnTransition != nil {
		e.hooks.OnTransition(ctx, &domain.TransitionEvent{
			EventBase: e.eventBase(domain.EventTransition),
			From:      prev,
			To:        e.state.CurrentNode,
			Automated: automated,
		})
	}

	if n, err := e.store.Load().Node(e.state.CurrentNode); err == nil && n.Terminal() {
		e.state.Status = domain.StatusTerminated
	}

	e.record(ctx, entry)
}

// recordAttempt commits a failed attempt to history without applying any
// of the step's other effects.
func (e *Engine) recordAttempt(ctx context.Context, nodeID, tool string, input map[string]any, attempt int, cause error) {
	entry := domain.HistoryEntry{
		Node:      nodeID,
		Tool:      tool,
		Input:     input,
		Timestamp: e.now(),
		Attempt:   attempt,
		Err:       cause.Error(),
	}
	e.state.History = append(e.state.History, entry)
	e.state.StepCount++
	e.record(ctx, entry)
}

func (e *Engine) record(ctx context.Context, entry domain.HistoryEntry) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Append(ctx, e.state.RunID, entry); err != nil {
		e.logger.Warn("trail recording failed", "err", err)
	}
}

func recoverable(err error) bool {
	var (
		invalid  *domain.InvalidTransitionError
		notFound *domain.ToolNotFoundError
		mutation *domain.MutationError
	)
	return errors.As(err, &invalid) || errors.As(err, &notFound) || errors.As(err, &mutation)
}
