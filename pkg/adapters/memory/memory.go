// Package memory provides in-process adapter implementations: a static
// graph loader and a trail recorder backed by a map. Both are used in
// tests and in embedded setups that build their machine in code.
package memory

import (
	"context"
	"sync"

	"github.com/wovenlab/shuttle/pkg/domain"
	"github.com/wovenlab/shuttle/pkg/graph"
)

// Loader serves a graph built in code.
type Loader struct {
	graph *graph.Graph
}

// NewLoader wraps an already constructed graph.
func NewLoader(g *graph.Graph) *Loader {
	return &Loader{graph: g}
}

// Load implements ports.GraphLoader.
func (l *Loader) Load(_ context.Context) (*graph.Graph, error) {
	return l.graph, nil
}

// Recorder keeps run trails in memory. Safe for concurrent use.
type Recorder struct {
	mu     sync.RWMutex
	trails map[string][]domain.HistoryEntry
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{trails: make(map[string][]domain.HistoryEntry)}
}

// Append implements ports.TrailRecorder.
func (r *Recorder) Append(_ context.Context, runID string, entry domain.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trails[runID] = append(r.trails[runID], entry)
	return nil
}

// Trail implements ports.TrailRecorder.
func (r *Recorder) Trail(_ context.Context, runID string) ([]domain.HistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	trail, ok := r.trails[runID]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	out := make([]domain.HistoryEntry, len(trail))
	copy(out, trail)
	return out, nil
}

// Runs lists the recorded run IDs in no particular order.
func (r *Recorder) Runs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.trails))
	for id := range r.trails {
		ids = append(ids, id)
	}
	return ids
}
