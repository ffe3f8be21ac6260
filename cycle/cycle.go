// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⚡ 42-CYCLE FINDER
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Cuckatoo Miner
// Component: Incremental Graph Build + Bidirectional Backtracking Search
//
// Description:
//   Surviving edges are added one at a time in ascending index order. Each edge gets a U link
//   and a V link in an arena; the U/V tables map a node to its newest link, and each link
//   points back to the previous link of the same node. Once an edge lands where both of its
//   endpoints' siblings are already connected, a walk starts from the edge's U side and hops
//   U → V → U along sibling pairs looking for a path of exactly 41 edges that ends on the
//   sibling of the edge's V node.
//
// Design Principles:
//   - Links for one edge sit at arena[2i] (U) and arena[2i+1] (V); idx^1 is the other side
//   - Visited node pairs (node >> 1) are kept per side in 21-entry probe tables
//   - Branching nodes recurse; every recursion undoes its own visit mark on failure (LIFO)
//
// ⚠️ More than MaxEdgesAfterTrimming survivors is not an error: the excess is skipped with a
//    warning and a solution among them may be missed.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package cycle

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"slices"

	"miner/bitmap"
	"miner/constants"
	"miner/debug"
	"miner/graph"
	"miner/probetable"
	"miner/types"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// TYPES
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// none marks the end of a node's link chain.
const none = -1

// last is the path length at which one more edge completes a solution.
const last = constants.SolutionSize - 1

// readChunk is the bitmap streaming buffer.
const readChunk = 64 << 10

// link is one endpoint of one edge.
type link struct {
	prev int32  // Previous link for the same node, or none
	node uint32 // Endpoint node id
	edge uint32 // Edge index
}

// Finder owns all search memory and can be reused across attempts.
// It is not safe for concurrent use.
type Finder struct {
	arena  []link
	edges  int
	newest [2]*probetable.Table[int32]  // [graph.U], [graph.V]: node → newest link
	seen   [2]*probetable.Table[uint32] // node pair → edge index, per side
	root   uint32                       // V node of the edge that triggered the walk
	buf    []byte
	out    []uint32
}

// NewFinder allocates a Finder sized for MaxEdgesAfterTrimming edges.
func NewFinder() *Finder {
	return &Finder{
		arena: make([]link, 2*constants.MaxEdgesAfterTrimming),
		newest: [2]*probetable.Table[int32]{
			probetable.New[int32](constants.MaxEdgesAfterTrimming),
			probetable.New[int32](constants.MaxEdgesAfterTrimming),
		},
		seen: [2]*probetable.Table[uint32]{
			probetable.New[uint32](constants.HalfSolutionSize),
			probetable.New[uint32](constants.HalfSolutionSize),
		},
		buf: make([]byte, readChunk),
		out: make([]uint32, constants.SolutionSize),
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// SEARCH
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Search streams the trimmed bitmap and returns the first 42-cycle completed.
// (Solution{}, false, nil) means no cycle among the searched edges. progress,
// when non-nil, receives the scanned percentage each time it changes.
func (f *Finder) Search(g graph.Graph, s bitmap.Store, p graph.Params, progress func(percent int)) (types.Solution, bool, error) {
	f.reset()

	total := p.BitmapBytes()
	chunk := int64(len(f.buf))
	if chunk > total {
		chunk = total
	}
	lastPct := -1

	for off := int64(0); off < total; off += chunk {
		if progress != nil {
			if pct := int(off * 100 / total); pct != lastPct {
				lastPct = pct
				progress(pct)
			}
		}

		buf := f.buf[:chunk]
		if err := bitmap.ReadChunk(s, buf, off); err != nil {
			return types.Solution{}, false, fmt.Errorf("cycle: %w", err)
		}
		base := uint32(off * constants.BitsInAByte)

		for w := 0; w < len(buf); w += 8 {
			word := binary.LittleEndian.Uint64(buf[w:])
			for word != 0 {
				b := bits.TrailingZeros64(word)
				word &= word - 1

				if f.edges == constants.MaxEdgesAfterTrimming {
					debug.DropMessage("WARN", "Too many edges remain. Some edges won't be searched")
					return types.Solution{}, false, nil
				}

				edge := base + uint32(w*8+b)
				if sol, ok := f.add(edge, g.Node(edge, graph.U), g.Node(edge, graph.V)); ok {
					if progress != nil && lastPct != 100 {
						progress(100)
					}
					return sol, true, nil
				}
			}
		}
	}

	if progress != nil && lastPct != 100 {
		progress(100)
	}
	return types.Solution{}, false, nil
}

// Edges reports how many edges the last Search loaded.
func (f *Finder) Edges() int { return f.edges }

func (f *Finder) reset() {
	f.edges = 0
	f.newest[graph.U].Reset()
	f.newest[graph.V].Reset()
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// GRAPH BUILD + WALK
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// add links edge (u, v) into the graph and, when both siblings are connected,
// walks for a cycle closed by this edge.
func (f *Finder) add(edge, u, v uint32) (types.Solution, bool) {
	ui := int32(2 * f.edges)
	vi := ui + 1
	f.edges++

	prevU, ok := f.newest[graph.U].Replace(u, ui)
	if !ok {
		prevU = none
	}
	prevV, ok := f.newest[graph.V].Replace(v, vi)
	if !ok {
		prevV = none
	}
	f.arena[ui] = link{prev: prevU, node: u, edge: edge}
	f.arena[vi] = link{prev: prevV, node: v, edge: edge}

	if !f.newest[graph.U].Contains(u^1) || !f.newest[graph.V].Contains(v^1) {
		return types.Solution{}, false
	}

	f.root = v
	f.seen[graph.U].Reset()
	f.seen[graph.V].Reset()
	if f.walk(edge, u) {
		return f.solution(), true
	}
	return types.Solution{}, false
}

// walk follows single-connection nodes iteratively from u and hands the first
// branching node to the recursive search.
func (f *Finder) walk(edge, node uint32) bool {
	for length := 1; ; length += 2 {
		f.seen[graph.U].InsertUnique(node>>1, edge)

		// U side: hop across node's sibling.
		at, _ := f.newest[graph.U].Get(node ^ 1)
		if f.arena[at].prev != none {
			for ; at != none; at = f.arena[at].prev {
				far := &f.arena[at^1]
				if f.seen[graph.V].Contains(far.node >> 1) {
					continue
				}
				if far.node^1 == f.root {
					if length == last {
						f.seen[graph.V].InsertUnique(far.node>>1, far.edge)
						return true
					}
				} else if length != last && f.newest[graph.V].Contains(far.node^1) {
					if f.searchV(length+1, far.node^1, far.edge) {
						return true
					}
				}
			}
			return false
		}

		far := &f.arena[at^1]
		edge, node = far.edge, far.node
		if f.seen[graph.V].Contains(node >> 1) {
			return false
		}
		if node^1 == f.root {
			if length == last {
				f.seen[graph.V].InsertUnique(node>>1, edge)
				return true
			}
			return false
		}
		if length == last || !f.newest[graph.V].Contains(node^1) {
			return false
		}

		f.seen[graph.V].InsertUnique(node>>1, edge)

		// V side: hop across node's sibling.
		at, _ = f.newest[graph.V].Get(node ^ 1)
		if f.arena[at].prev != none {
			for ; at != none; at = f.arena[at].prev {
				far := &f.arena[at^1]
				if f.newest[graph.U].Contains(far.node^1) && !f.seen[graph.U].Contains(far.node>>1) {
					if f.searchU(length+2, far.node^1, far.edge) {
						return true
					}
				}
			}
			return false
		}

		far = &f.arena[at^1]
		edge, node = far.edge, far.node
		if f.seen[graph.U].Contains(node>>1) || !f.newest[graph.U].Contains(node^1) {
			return false
		}
	}
}

// searchU marks node's pair visited under edge and tries every U connection of node.
func (f *Finder) searchU(length int, node, edge uint32) bool {
	slot := f.seen[graph.U].InsertUniqueSlot(node>>1, edge)

	at, _ := f.newest[graph.U].Get(node)
	for ; at != none; at = f.arena[at].prev {
		far := &f.arena[at^1]
		if f.seen[graph.V].Contains(far.node >> 1) {
			continue
		}
		if far.node^1 == f.root {
			if length == last {
				f.seen[graph.V].InsertUnique(far.node>>1, far.edge)
				return true
			}
		} else if length != last && f.newest[graph.V].Contains(far.node^1) {
			if f.searchV(length+1, far.node^1, far.edge) {
				return true
			}
		}
	}

	f.seen[graph.U].Rollback(slot)
	return false
}

// searchV marks node's pair visited under edge and tries every V connection of node.
func (f *Finder) searchV(length int, node, edge uint32) bool {
	slot := f.seen[graph.V].InsertUniqueSlot(node>>1, edge)

	at, _ := f.newest[graph.V].Get(node)
	for ; at != none; at = f.arena[at].prev {
		far := &f.arena[at^1]
		if f.newest[graph.U].Contains(far.node^1) && !f.seen[graph.U].Contains(far.node>>1) {
			if f.searchU(length+1, far.node^1, far.edge) {
				return true
			}
		}
	}

	f.seen[graph.V].Rollback(slot)
	return false
}

// solution drains both visited tables and sorts the edges.
func (f *Finder) solution() types.Solution {
	n := f.seen[graph.U].Values(f.out)
	n += f.seen[graph.V].Values(f.out[n:])
	var sol types.Solution
	copy(sol[:], f.out[:n])
	slices.Sort(sol[:])
	return sol
}
