package domain

import "time"

// RunStatus defines the current mode of the engine mechanics.
type RunStatus string

const (
	StatusActive     RunStatus = "active"     // Normal operation
	StatusTerminated RunStatus = "terminated" // End node reached
	StatusFailed     RunStatus = "failed"     // Fatal error, see State.Failure
)

// HistoryEntry records one completed (or attempted) step. Entries carry
// enough to replay a run: the chosen tool, its input and whether the
// engine took the step without consulting the agent.
type HistoryEntry struct {
	Node      string         `json:"node"`
	Tool      string         `json:"tool,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Attempt   int            `json:"attempt,omitempty"`
	Automated bool           `json:"automated,omitempty"`
	Err       string         `json:"err,omitempty"`
}

// State is the mutable execution context of one machine run.
// It is owned exclusively by one engine instance; tool handlers mutate it
// only through that engine's dispatch.
type State struct {
	// RunID identifies this execution for trails and adapters.
	RunID string `json:"run_id"`

	// CurrentNode is the identifier of the active node.
	CurrentNode string `json:"current_node"`

	// Status indicates whether the run is active, finished or failed.
	Status RunStatus `json:"status"`

	// History is the ordered record of steps taken so far.
	History []HistoryEntry `json:"history"`

	// Context maps context-node name to its field values.
	Context map[string]map[string]any `json:"context"`

	// StepCount is incremented once per completed step.
	StepCount int `json:"step_count"`

	// StepLimit is the fail-closed ceiling on StepCount.
	StepLimit int `json:"step_limit"`

	// Failure holds the terminating error message when Status is failed.
	Failure string `json:"failure,omitempty"`
}

// NewState creates a clean state positioned at the start node.
func NewState(runID, startNode string, stepLimit int) *State {
	return &State{
		RunID:       runID,
		CurrentNode: startNode,
		Status:      StatusActive,
		Context:     make(map[string]map[string]any),
		StepLimit:   stepLimit,
	}
}

// Clone returns a copy with deep-copied context and history, so a step can
// be prepared on the copy and committed atomically.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	next := *s
	next.Context = make(map[string]map[string]any, len(s.Context))
	for name, fields := range s.Context {
		copied := make(map[string]any, len(fields))
		for k, v := range fields {
			copied[k] = v
		}
		next.Context[name] = copied
	}
	next.History = make([]HistoryEntry, len(s.History))
	copy(next.History, s.History)
	return &next
}

// ContextValue reads a field from a named context node.
func (s *State) ContextValue(node, field string) (any, bool) {
	fields, ok := s.Context[node]
	if !ok {
		return nil, false
	}
	v, ok := fields[field]
	return v, ok
}

// SetContextValue writes a field into a named context node, creating the
// node's value map on first write.
func (s *State) SetContextValue(node, field string, value any) {
	fields, ok := s.Context[node]
	if !ok {
		fields = make(map[string]any)
		s.Context[node] = fields
	}
	fields[field] = value
}
