package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStepStart  EventType = "step_start"
	EventTransition EventType = "transition"
	EventToolCall   EventType = "tool_call"
	EventToolReturn EventType = "tool_return"
	EventRunEnd     EventType = "run_end"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
}

// StepEvent marks entry into the step loop at a node.
type StepEvent struct {
	EventBase
	NodeID    string `json:"node_id"`
	NodeKind  string `json:"node_kind"`
	StepCount int    `json:"step_count"`
}

// TransitionEvent records a committed move between nodes.
type TransitionEvent struct {
	EventBase
	From      string `json:"from"`
	To        string `json:"to"`
	Automated bool   `json:"automated,omitempty"`
}

// ToolEvent records a tool dispatch or its return.
type ToolEvent struct {
	EventBase
	NodeID   string `json:"node_id"`
	ToolName string `json:"tool_name"`
	Input    any    `json:"input,omitempty"`
	Output   any    `json:"output,omitempty"`
	IsError  bool   `json:"is_error,omitempty"`
}

// RunEvent records the end of a run, successful or not.
type RunEvent struct {
	EventBase
	FinalNode string `json:"final_node"`
	Steps     int    `json:"steps"`
	Err       string `json:"err,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
// Nil hooks are skipped.
type LifecycleHooks struct {
	OnStepStart  func(context.Context, *StepEvent)
	OnTransition func(context.Context, *TransitionEvent)
	OnToolCall   func(context.Context, *ToolEvent)
	OnToolReturn func(context.Context, *ToolEvent)
	OnRunEnd     func(context.Context, *RunEvent)
}
