// Package graphtest builds explicit graphs with known cycles for tests.
package graphtest

import "miner/graph"

// Table is a Graph backed by explicit endpoint arrays, indexed [side][edge].
type Table struct {
	Ends [2][]uint32
}

// New returns a graph in which every edge is a dead end: all U endpoints
// share one even node and all V endpoints another, and neither sibling is
// ever used. One trimming round removes every such edge.
func New(p graph.Params) *Table {
	n := p.Edges()
	dead := p.NodeMask() - 1
	t := &Table{Ends: [2][]uint32{make([]uint32, n), make([]uint32, n)}}
	for e := range t.Ends[graph.U] {
		t.Ends[graph.U][e] = dead
		t.Ends[graph.V][e] = dead
	}
	return t
}

// Node implements graph.Graph.
func (t *Table) Node(edge, side uint32) uint32 { return t.Ends[side][edge] }

// Ring wires edges (ascending, even count) into one closed cycle using node
// pairs firstPair, firstPair+1, ... on both sides. Consecutive edges share a
// U pair, then a V pair, alternately; the last edge closes back onto the first.
func (t *Table) Ring(edges []uint32, firstPair uint32) {
	l := len(edges)
	if l < 2 || l%2 != 0 {
		panic("graphtest: ring needs an even number of edges")
	}
	for k := 0; k < l/2; k++ {
		a := 2 * (firstPair + uint32(k))
		t.Ends[graph.U][edges[2*k]] = a
		t.Ends[graph.U][edges[2*k+1]] = a | 1
		t.Ends[graph.V][edges[2*k+1]] = a
		t.Ends[graph.V][edges[(2*k+2)%l]] = a | 1
	}
}

// Set places one edge explicitly.
func (t *Table) Set(edge, u, v uint32) {
	t.Ends[graph.U][edge] = u
	t.Ends[graph.V][edge] = v
}

// Spread returns n ascending edge indices starting at first, step apart.
func Spread(first, step uint32, n int) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = first + uint32(i)*step
	}
	return out
}
