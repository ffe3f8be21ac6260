// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⚡ SIPHASH-2-4 EDGE MAP
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Cuckatoo Miner
// Component: Keyed Edge → Node Pseudorandom Function
//
// Description:
//   The graph is never stored. Every endpoint is recomputed on demand by hashing
//   (2*edge | side) under four 64-bit keys. This is the Cuckoo-family SipHash variant:
//   the keys are the raw initial state, one message word, and a 0xff finalizer.
//
// Design Principles:
//   - Pure function over a value-type key set (no allocation, no shared state)
//   - Rounds unrolled into straight-line code for the trimming hot loop
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package siphash

import "math/bits"

// KeysSize is the number of 64-bit words in a key set.
const KeysSize = 4

// rotation is the final v3 rotation in a Cuckoo-family SipRound.
const rotation = 21

// Keys are the four sub-keys derived from one (header, nonce) pair.
type Keys [KeysSize]uint64

// Hash24 maps nonce to a 32-bit value under k.
//
//go:nosplit
//go:inline
//go:registerparams
func Hash24(k *Keys, nonce uint32) uint32 {
	v0, v1, v2, v3 := k[0], k[1], k[2], k[3]
	n := uint64(nonce)

	v3 ^= n
	v0, v1, v2, v3 = round(v0, v1, v2, v3)
	v0, v1, v2, v3 = round(v0, v1, v2, v3)
	v0 ^= n
	v2 ^= 0xff
	v0, v1, v2, v3 = round(v0, v1, v2, v3)
	v0, v1, v2, v3 = round(v0, v1, v2, v3)
	v0, v1, v2, v3 = round(v0, v1, v2, v3)
	v0, v1, v2, v3 = round(v0, v1, v2, v3)

	return uint32(v0 ^ v1 ^ v2 ^ v3)
}

// round is one SipRound.
//
//go:nosplit
//go:inline
func round(v0, v1, v2, v3 uint64) (uint64, uint64, uint64, uint64) {
	v0 += v1
	v2 += v3
	v1 = bits.RotateLeft64(v1, 13)
	v3 = bits.RotateLeft64(v3, 16)
	v1 ^= v0
	v3 ^= v2
	v0 = bits.RotateLeft64(v0, 32)
	v2 += v1
	v0 += v3
	v1 = bits.RotateLeft64(v1, 17)
	v3 = bits.RotateLeft64(v3, rotation)
	v1 ^= v2
	v3 ^= v0
	v2 = bits.RotateLeft64(v2, 32)
	return v0, v1, v2, v3
}
