package domain

import (
	"errors"
	"fmt"
)

// ErrRunNotFound is returned when a run ID cannot be resolved by an adapter.
var ErrRunNotFound = errors.New("run not found")

// ErrAgentDeclined is the agent's "no choice / give up" signal.
// Fatal unless the current node declares a fallback edge.
var ErrAgentDeclined = errors.New("agent declined to choose a tool")

// StepLimitExceededError means the run hit its configured step ceiling.
// Fatal and non-retryable.
type StepLimitExceededError struct {
	Limit int
}

func (e *StepLimitExceededError) Error() string {
	return fmt.Sprintf("step limit exceeded (%d steps)", e.Limit)
}

// StuckError means a non-terminal node has no viable outgoing edge.
type StuckError struct {
	Node string
}

func (e *StuckError) Error() string {
	return fmt.Sprintf("stuck at node '%s': no viable transition", e.Node)
}

// InvalidTransitionError means the agent requested a transition to a node
// that is not among the current candidates. Recoverable: the agent is
// re-prompted and the state does not advance.
type InvalidTransitionError struct {
	From   string
	Target string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from '%s' to '%s'", e.From, e.Target)
}

// ToolNotFoundError means no static or dynamic registration matched a name.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool not found: %s", e.Name)
}

// TaskFailedError means a task exhausted its retry budget with no matching
// failure edge. Fatal.
type TaskFailedError struct {
	Node     string
	Attempts int
	Cause    string
}

func (e *TaskFailedError) Error() string {
	return fmt.Sprintf("task '%s' failed after %d attempt(s): %s", e.Node, e.Attempts, e.Cause)
}

// MutationError reports a rejected graph mutation. Recoverable: the prior
// graph stays authoritative.
type MutationError struct {
	Reason string
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("invalid graph mutation: %s", e.Reason)
}

// Fatal reports whether err terminates a run (as opposed to being surfaced
// back to the agent as context for its next choice).
func Fatal(err error) bool {
	if err == nil {
		return false
	}
	var (
		limitErr *StepLimitExceededError
		stuckErr *StuckError
		taskErr  *TaskFailedError
	)
	switch {
	case errors.As(err, &limitErr), errors.As(err, &stuckErr), errors.As(err, &taskErr):
		return true
	case errors.Is(err, ErrAgentDeclined):
		return true
	}
	return false
}
