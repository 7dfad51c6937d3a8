package ports

import (
	"context"

	"github.com/wovenlab/shuttle/pkg/domain"
)

// TrailRecorder receives the step-by-step history of a run for external
// logging and replay. Recording is observability, not durability: the
// engine never reads its own state back from a recorder.
type TrailRecorder interface {
	// Append stores one history entry for the run.
	Append(ctx context.Context, runID string, entry domain.HistoryEntry) error

	// Trail returns the recorded entries for a run in order.
	// Returns domain.ErrRunNotFound for an unknown run.
	Trail(ctx context.Context, runID string) ([]domain.HistoryEntry, error)
}
