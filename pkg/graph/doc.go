// Package graph holds the machine definition: an immutable node/edge set
// with query operations, an all-or-nothing mutation path, and an atomic
// store so a running engine can swap in a new version mid-execution
// without readers seeing a half-applied change.
package graph
