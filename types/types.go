package types

import "miner/constants"

// ============================================================================
// PUZZLE INPUT
// ============================================================================

// Header is the pool-supplied pre-proof-of-work blob. It is opaque to the
// miner: only its bytes feed key derivation.
type Header [constants.HeaderSize]byte

// Job is one unit of work handed from the pool session to the miner loop.
// Values are copied on handoff; nothing here is shared after Put.
type Job struct {
	// Height is the block height being mined (never zero for a valid job).
	Height uint64

	// ID is the pool's job identifier, echoed back on submit.
	ID uint64

	// Header seeds graph generation together with a locally chosen nonce.
	Header Header
}

// ============================================================================
// PUZZLE OUTPUT
// ============================================================================

// Solution is a 42-cycle as strictly ascending edge indices.
type Solution [constants.SolutionSize]uint32

// Share is a found solution bound to the job and nonce that produced it.
type Share struct {
	Height   uint64
	JobID    uint64
	Nonce    uint64
	Solution Solution
}
