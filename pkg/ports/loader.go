package ports

import (
	"context"

	"github.com/wovenlab/shuttle/pkg/graph"
)

// GraphLoader defines how the engine obtains a machine definition.
// The external parser, a file adapter and the in-memory test loader all
// sit behind this seam. A loader must hand over a referentially
// consistent graph; the engine revalidates structure but not consistency.
type GraphLoader interface {
	// Load produces the initial graph for an execution.
	Load(ctx context.Context) (*graph.Graph, error)
}
