package graph

import "sync/atomic"

// Store holds the authoritative graph for one execution behind an atomic
// pointer. Mutations swap the whole reference, so a reader mid-step keeps
// the version it loaded and never observes a partially mutated graph.
//
// Each execution owns its own Store; mutations issued by one run never
// affect another run walking the same original definition.
type Store struct {
	current atomic.Pointer[Graph]
}

// NewStore creates a store seeded with the initial graph.
func NewStore(g *Graph) *Store {
	s := &Store{}
	s.current.Store(g)
	return s
}

// Load returns the current graph version.
func (s *Store) Load() *Graph {
	return s.current.Load()
}

// Swap installs a new graph version as authoritative.
func (s *Store) Swap(g *Graph) {
	s.current.Store(g)
}

// Apply runs a mutation against the current version and, on success,
// installs the result. The old version stays valid for in-flight readers.
func (s *Store) Apply(m Mutation) (*Graph, error) {
	next, err := s.current.Load().ApplyMutation(m)
	if err != nil {
		return nil, err
	}
	s.current.Store(next)
	return next, nil
}
