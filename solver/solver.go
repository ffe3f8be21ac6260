// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⚡ SOLVE ATTEMPT PIPELINE
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Cuckatoo Miner
// Component: Header + Nonce → Keys → Fill → Trim → Search
//
// Description:
//   One attempt runs start to finish on the calling goroutine. The bitmap store and the
//   cycle finder are owned by the Solver and reused across attempts; nothing else survives
//   between calls.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package solver

import (
	"fmt"

	"miner/bitmap"
	"miner/blake"
	"miner/cycle"
	"miner/graph"
	"miner/trimmer"
	"miner/types"
)

// Solver runs solve attempts for one graph size.
type Solver struct {
	params  graph.Params
	scratch trimmer.Scratch
	store   bitmap.Store
	finder  *cycle.Finder

	// TrimProgress and SearchProgress, when set, receive percentages.
	TrimProgress   func(percent int)
	SearchProgress func(percent int)
}

// New binds a Solver to a graph size, a scratch budget and a bitmap store of
// at least p.BitmapBytes() bytes.
func New(p graph.Params, sc trimmer.Scratch, store bitmap.Store) *Solver {
	if !p.Valid() {
		panic("solver: invalid graph parameters")
	}
	return &Solver{
		params:  p,
		scratch: sc,
		store:   store,
		finder:  cycle.NewFinder(),
	}
}

// Params returns the graph size this Solver works on.
func (s *Solver) Params() graph.Params { return s.params }

// Solve runs one attempt for (header, nonce). ok is false when no 42-cycle
// was found; err is set only on bitmap I/O failure.
func (s *Solver) Solve(header *types.Header, nonce uint64) (sol types.Solution, ok bool, err error) {
	keys := blake.Derive(header, nonce)
	return s.SolveGraph(graph.NewHashed(keys, s.params))
}

// SearchedEdges reports how many trimmed edges the last attempt loaded into
// the cycle search.
func (s *Solver) SearchedEdges() int { return s.finder.Edges() }

// SolveGraph runs fill, trim and search over an arbitrary graph.
func (s *Solver) SolveGraph(g graph.Graph) (types.Solution, bool, error) {
	if err := bitmap.Fill(s.store, s.params, s.scratch.EdgeBytes); err != nil {
		return types.Solution{}, false, fmt.Errorf("solver: init bitmap: %w", err)
	}
	if err := trimmer.Trim(g, s.store, s.params, s.scratch, s.TrimProgress); err != nil {
		return types.Solution{}, false, fmt.Errorf("solver: %w", err)
	}
	sol, ok, err := s.finder.Search(g, s.store, s.params, s.SearchProgress)
	if err != nil {
		return types.Solution{}, false, fmt.Errorf("solver: %w", err)
	}
	return sol, ok, nil
}
