// Package domain contains the core value types shared across the shuttle
// runtime: graph nodes and edges, execution state, tool descriptors and the
// error taxonomy. It has no dependencies on other shuttle packages so that
// adapters and the engine can exchange data without import cycles.
package domain
