package runner_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wovenlab/shuttle"
	"github.com/wovenlab/shuttle/pkg/adapters/memory"
	"github.com/wovenlab/shuttle/pkg/agent/scripted"
	"github.com/wovenlab/shuttle/pkg/domain"
	"github.com/wovenlab/shuttle/pkg/graph"
	"github.com/wovenlab/shuttle/pkg/runner"
)

func reviewGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.NewBuilder().
		Node("intake", domain.NodeKindState).Attr("start", true).
		Node("review", domain.NodeKindTask).Attr("prompt", "Review the order").
		Node("order", domain.NodeKindContext).Attr("note", "").
		Node("approved", domain.NodeKindEnd).
		Node("rejected", domain.NodeKindEnd).
		Builder().
		Edge("intake", "review").
		Edge("review", "order").
		LabeledEdge("review", "approved", "approve").
		LabeledEdge("review", "rejected", "reject").
		Build()
	require.NoError(t, err)
	return g
}

func newMachine(t *testing.T, opts ...shuttle.Option) *shuttle.Machine {
	t.Helper()
	opts = append(opts, shuttle.WithLoader(memory.NewLoader(reviewGraph(t))))
	m, err := shuttle.New("", opts...)
	require.NoError(t, err)
	return m
}

func TestRunToCompletion(t *testing.T) {
	r := runner.New(newMachine(t))

	ag := scripted.New(
		scripted.Call("write_note", map[string]any{"value": "looks good"}),
		scripted.Call("transition_to_approved", nil),
	)
	final, err := r.Run(context.Background(), ag)
	require.NoError(t, err)

	assert.Equal(t, "approved", final.CurrentNode)
	assert.Equal(t, domain.StatusTerminated, final.Status)
	// intake -> review is automated, then two agent steps.
	assert.Equal(t, 3, final.StepCount)
}

func TestRunTimeout(t *testing.T) {
	r := runner.New(newMachine(t), runner.WithTimeout(20*time.Millisecond))

	// The agent stalls until the deadline fires.
	ag := scripted.New(func(string, []domain.ToolDescriptor) (domain.ToolCall, error) {
		time.Sleep(200 * time.Millisecond)
		return domain.ToolCall{}, context.DeadlineExceeded
	})

	final, err := r.Run(context.Background(), ag)
	require.Error(t, err)
	assert.ErrorIs(t, err, runner.ErrTimeout)
	require.NotNil(t, final)
	assert.Equal(t, domain.StatusFailed, final.Status)
}

func TestReplayReproducesRun(t *testing.T) {
	rec := memory.NewRecorder()
	m := newMachine(t, shuttle.WithTrailRecorder(rec))
	r := runner.New(m)

	ag := scripted.New(
		scripted.Call("write_note", map[string]any{"value": "hold"}),
		scripted.Call("transition_to_rejected", nil),
	)
	original, err := r.Run(context.Background(), ag, shuttle.WithRunID("audit-7"))
	require.NoError(t, err)

	trail, err := rec.Trail(context.Background(), "audit-7")
	require.NoError(t, err)

	replayed, err := r.Replay(context.Background(), "audit-7", trail)
	require.NoError(t, err)

	assert.Equal(t, runner.Path(original), runner.Path(replayed))
	assert.Equal(t, original.CurrentNode, replayed.CurrentNode)
	assert.Equal(t, original.StepCount, replayed.StepCount)

	note, ok := replayed.ContextValue("order", "note")
	require.True(t, ok)
	assert.Equal(t, "hold", note)
}

func TestReplayDivergenceDetected(t *testing.T) {
	rec := memory.NewRecorder()
	m := newMachine(t, shuttle.WithTrailRecorder(rec))
	r := runner.New(m)

	ag := scripted.New(scripted.Call("transition_to_approved", nil))
	_, err := r.Run(context.Background(), ag, shuttle.WithRunID("short"))
	require.NoError(t, err)

	trail, err := rec.Trail(context.Background(), "short")
	require.NoError(t, err)

	// A stale trail with an extra decision no longer matches the machine.
	trail = append(trail, domain.HistoryEntry{Node: "review", Tool: "transition_to_rejected"})
	_, err = r.Replay(context.Background(), "short", trail)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "diverged")
}
