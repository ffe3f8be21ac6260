// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⚡ CUCKATOO GRAPH PARAMETERS AND EDGE MAP
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Cuckatoo Miner
// Component: Graph Geometry + On-Demand Endpoint Computation
//
// Description:
//   A graph instance has 2^EdgeBits edges and the same number of node ids per side.
//   Nothing is stored: edge e's endpoint on side s is recomputed whenever needed.
//   Trimming and cycle search only see the Graph interface, so a synthetic mapping
//   can stand in for the hashed one.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package graph

import (
	"miner/constants"
	"miner/siphash"
)

// Sides of the bipartite graph.
const (
	U uint32 = 0
	V uint32 = 1
)

// Params describes one graph size.
type Params struct {
	Name           string
	EdgeBits       uint8
	TrimmingRounds int
}

// Built-in profiles.
var (
	Cuckatoo18 = Params{Name: "cuckatoo18", EdgeBits: constants.Cuckatoo18EdgeBits, TrimmingRounds: constants.Cuckatoo18TrimmingRounds}
	Cuckatoo31 = Params{Name: "cuckatoo31", EdgeBits: constants.Cuckatoo31EdgeBits, TrimmingRounds: constants.Cuckatoo31TrimmingRounds}
)

// Profile looks up a built-in profile by name.
func Profile(name string) (Params, bool) {
	switch name {
	case Cuckatoo18.Name:
		return Cuckatoo18, true
	case Cuckatoo31.Name:
		return Cuckatoo31, true
	}
	return Params{}, false
}

// Edges is the number of edges (and of node ids per side).
//
//go:nosplit
//go:inline
func (p Params) Edges() uint64 { return 1 << p.EdgeBits }

// NodeMask truncates a hash to a node id.
//
//go:nosplit
//go:inline
func (p Params) NodeMask() uint32 { return uint32(p.Edges() - 1) }

// BitmapBytes is the size of the edge presence bitmap.
//
//go:nosplit
//go:inline
func (p Params) BitmapBytes() int64 { return int64(p.Edges() / constants.BitsInAByte) }

// Valid reports whether the geometry is usable: at least one 64-bit bitmap
// word, 2*edge|side fitting a uint32, and at least one trimming round.
func (p Params) Valid() bool {
	return p.EdgeBits >= 6 && p.EdgeBits <= 31 && p.TrimmingRounds > 0
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// EDGE → NODE
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Graph maps an edge and a side to that edge's endpoint on the side.
// Implementations must be pure.
type Graph interface {
	Node(edge, side uint32) uint32
}

// Hashed is the proof-of-work graph generated by SipHash under derived keys.
type Hashed struct {
	keys siphash.Keys
	mask uint32
}

// NewHashed binds keys to a graph size.
func NewHashed(keys siphash.Keys, p Params) *Hashed {
	return &Hashed{keys: keys, mask: p.NodeMask()}
}

// Node returns Hash24(keys, 2*edge|side) & mask.
//
//go:nosplit
//go:inline
//go:registerparams
func (h *Hashed) Node(edge, side uint32) uint32 {
	return siphash.Hash24(&h.keys, edge<<1|side) & h.mask
}
