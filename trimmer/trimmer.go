// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⚡ LEAN EDGE TRIMMER
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Cuckatoo Miner
// Component: Chunked Two-Pass Edge Pruning
//
// Description:
//   Each round picks a side (U on even rounds, V on odd). For every node chunk the edge
//   bitmap is streamed twice: the first pass marks which nodes of the chunk are touched by
//   a live edge, the second clears every live edge whose endpoint's sibling (node ^ 1) was
//   not marked. One bit per node under-prunes compared to a degree counter; the round count
//   makes up for it.
//
// Design Principles:
//   - Peak memory is exactly one node chunk plus one edge chunk
//   - Chunk sizes are powers of two, so a node and its sibling always share a node chunk
//   - Bitmap bytes are processed as little-endian 64-bit words, edge 64w+b is bit b of word w
//
// ⚠️ A store failure aborts the whole attempt; the bitmap contents are undefined afterwards.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package trimmer

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"miner/bitmap"
	"miner/constants"
	"miner/graph"
)

// Scratch is the memory budget for one trim, in bytes.
type Scratch struct {
	NodeBytes int // node liveness chunk
	EdgeBytes int // edge bitmap chunk
}

// DefaultScratch returns the built-in budget for a profile.
func DefaultScratch(p graph.Params) Scratch {
	if p.EdgeBits == constants.Cuckatoo31EdgeBits {
		return Scratch{NodeBytes: constants.Cuckatoo31LocalRAMSize, EdgeBytes: constants.Cuckatoo31SecondaryLocalRAMSize}
	}
	return Scratch{NodeBytes: constants.Cuckatoo18LocalRAMSize, EdgeBytes: constants.Cuckatoo18SecondaryLocalRAMSize}
}

// clamp returns want limited to the bitmap size. want must be a power of two
// of at least 8 bytes (or zero, meaning the whole bitmap).
func clamp(want int, total int64) int {
	if want == 0 || int64(want) > total {
		return int(total)
	}
	if want < 8 || want&(want-1) != 0 {
		panic("trimmer: scratch size must be a power of two >= 8")
	}
	return want
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// TRIM
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Trim runs p.TrimmingRounds rounds over the bitmap in s. progress, when
// non-nil, receives the completed percentage each time it changes.
func Trim(g graph.Graph, s bitmap.Store, p graph.Params, sc Scratch, progress func(percent int)) error {
	total := p.BitmapBytes()
	nodeBytes := clamp(sc.NodeBytes, total)
	edgeBytes := clamp(sc.EdgeBytes, total)

	live := make([]uint64, nodeBytes/8)
	edges := make([]byte, edgeBytes)

	nodeShift := uint(bits.TrailingZeros64(uint64(nodeBytes) * constants.BitsInAByte))
	nodeChunks := int(total / int64(nodeBytes))
	steps := p.TrimmingRounds * nodeChunks
	last := -1

	for round := 0; round < p.TrimmingRounds; round++ {
		side := uint32(round & 1)
		for chunk := 0; chunk < nodeChunks; chunk++ {
			clear(live)

			// Pass 1: mark nodes of this chunk reached by a live edge.
			for off := int64(0); off < total; off += int64(edgeBytes) {
				if err := bitmap.ReadChunk(s, edges, off); err != nil {
					return fmt.Errorf("trimmer: round %d mark: %w", round, err)
				}
				base := uint32(off * constants.BitsInAByte)
				markLive(g, edges, base, side, uint32(chunk), nodeShift, live)
			}

			// Pass 2: drop edges whose endpoint's sibling was never marked.
			for off := int64(0); off < total; off += int64(edgeBytes) {
				if err := bitmap.ReadChunk(s, edges, off); err != nil {
					return fmt.Errorf("trimmer: round %d prune: %w", round, err)
				}
				base := uint32(off * constants.BitsInAByte)
				if pruneDead(g, edges, base, side, uint32(chunk), nodeShift, live) {
					if err := bitmap.WriteChunk(s, edges, off); err != nil {
						return fmt.Errorf("trimmer: round %d prune: %w", round, err)
					}
				}
			}

			if progress != nil {
				if pct := (round*nodeChunks + chunk + 1) * 100 / steps; pct != last {
					last = pct
					progress(pct)
				}
			}
		}
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// PASSES
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// markLive sets the liveness bit of every chunk node reached from a present edge in buf.
//
//go:registerparams
func markLive(g graph.Graph, buf []byte, base, side, chunk uint32, shift uint, live []uint64) {
	localMask := uint32(1)<<shift - 1
	for w := 0; w < len(buf); w += 8 {
		word := binary.LittleEndian.Uint64(buf[w:])
		for word != 0 {
			b := bits.TrailingZeros64(word)
			word &= word - 1
			node := g.Node(base+uint32(w*8+b), side)
			if node>>shift != chunk {
				continue
			}
			local := node & localMask
			live[local>>6] |= 1 << (local & 63)
		}
	}
}

// pruneDead clears present edges in buf whose chunk-local endpoint has an unmarked
// sibling. It reports whether buf changed.
//
//go:registerparams
func pruneDead(g graph.Graph, buf []byte, base, side, chunk uint32, shift uint, live []uint64) bool {
	localMask := uint32(1)<<shift - 1
	changed := false
	for w := 0; w < len(buf); w += 8 {
		word := binary.LittleEndian.Uint64(buf[w:])
		kept := word
		for word != 0 {
			b := bits.TrailingZeros64(word)
			word &= word - 1
			node := g.Node(base+uint32(w*8+b), side)
			if node>>shift != chunk {
				continue
			}
			sib := (node & localMask) ^ 1
			if live[sib>>6]&(1<<(sib&63)) == 0 {
				kept &^= 1 << b
			}
		}
		if kept != binary.LittleEndian.Uint64(buf[w:]) {
			binary.LittleEndian.PutUint64(buf[w:], kept)
			changed = true
		}
	}
	return changed
}
