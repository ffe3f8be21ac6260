package solver

import (
	"encoding/binary"
	"errors"

	"golang.org/x/crypto/blake2b"

	"miner/constants"
	"miner/graph"
	"miner/siphash"
	"miner/types"
)

// ============================================================================
// VERIFICATION ERRORS
// ============================================================================

var (
	ErrSolutionSize      = errors.New("solver: solution must have 42 edges")
	ErrEdgeTooBig        = errors.New("solver: edge index out of range")
	ErrEdgesNotAscending = errors.New("solver: edges not strictly ascending")
	ErrEndpointsMismatch = errors.New("solver: endpoints don't match up")
	ErrBranch            = errors.New("solver: branch in cycle")
	ErrDeadEnd           = errors.New("solver: cycle dead ends")
	ErrShortCycle        = errors.New("solver: cycle too short")
)

// ============================================================================
// VERIFY
// ============================================================================

// Verify checks pow against the graph of (header, nonce). Keys are derived
// with the general-purpose BLAKE2b-256 so a fault in the specialised miner
// hash cannot vouch for itself.
func Verify(header *types.Header, nonce uint64, p graph.Params, pow []uint32) error {
	return VerifyGraph(graph.NewHashed(DeriveKeys(header, nonce), p), p, pow)
}

// DeriveKeys hashes header || BE64(nonce) with BLAKE2b-256 and reads the
// digest as four little-endian words.
func DeriveKeys(header *types.Header, nonce uint64) siphash.Keys {
	var msg [constants.HeaderSize + 8]byte
	copy(msg[:], header[:])
	binary.BigEndian.PutUint64(msg[constants.HeaderSize:], nonce)
	sum := blake2b.Sum256(msg[:])

	var k siphash.Keys
	for i := range k {
		k[i] = binary.LittleEndian.Uint64(sum[i*8:])
	}
	return k
}

// VerifyGraph checks that pow is 42 strictly ascending in-range edges of g
// forming one cycle in which consecutive edges meet in a node pair.
func VerifyGraph(g graph.Graph, p graph.Params, pow []uint32) error {
	const size = constants.SolutionSize
	if len(pow) != size {
		return ErrSolutionSize
	}

	var uvs [2 * size]uint32
	xor0 := uint32(size/2) & 1
	xor1 := xor0
	mask := p.NodeMask()

	for n, e := range pow {
		if e > mask {
			return ErrEdgeTooBig
		}
		if n > 0 && e <= pow[n-1] {
			return ErrEdgesNotAscending
		}
		uvs[2*n] = g.Node(e, graph.U)
		uvs[2*n+1] = g.Node(e, graph.V)
		xor0 ^= uvs[2*n]
		xor1 ^= uvs[2*n+1]
	}
	if xor0|xor1 != 0 {
		return ErrEndpointsMismatch
	}

	// Follow the cycle: from endpoint i find the unique other endpoint on
	// the same side in the same node pair, then cross its edge.
	n, i := 0, 0
	for {
		j := i
		for k := (i + 2) % (2 * size); k != i; k = (k + 2) % (2 * size) {
			if uvs[k]>>1 == uvs[i]>>1 {
				if j != i {
					return ErrBranch
				}
				j = k
			}
		}
		if j == i {
			return ErrDeadEnd
		}
		i = j ^ 1
		n++
		if i == 0 {
			break
		}
	}
	if n != size {
		return ErrShortCycle
	}
	return nil
}
