// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⚡ BLAKE2B KEY DERIVATION
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Cuckatoo Miner
// Component: Header + Nonce → SipHash Keys
//
// Description:
//   A two-block BLAKE2b-256 specialised for the fixed 238-byte header followed by the
//   big-endian 64-bit nonce (246 bytes total). The first block is always the first 128
//   header bytes; the second is the header tail, the nonce and zero padding, flagged
//   as final with a byte counter of 246. The 32-byte digest is consumed as four
//   little-endian 64-bit SipHash keys.
//
// Design Principles:
//   - State held as four 4-lane rows (a, b, c, d); column step, rotate rows, diagonal step
//   - Lengths are constants, so no buffering, padding logic or error paths exist
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package blake

import (
	"encoding/binary"
	"math/bits"

	"miner/constants"
	"miner/siphash"
	"miner/types"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CONSTANTS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

const (
	bufferSize = 128
	rounds     = 12

	// nonceSize is the width of the big-endian nonce appended to the header.
	nonceSize = 8

	// messageSize is the total byte counter injected into the final block.
	messageSize = constants.HeaderSize + nonceSize
)

// iv is the BLAKE2b initialisation vector.
var iv = [8]uint64{
	0x6a09e667f3bcc908, 0xbb67ae8584caa73b, 0x3c6ef372fe94f82b, 0xa54ff53a5f1d36f1,
	0x510e527fade682d1, 0x9b05688c2b3e6c1f, 0x1f83d9abfb41bd6b, 0x5be0cd19137e2179,
}

// initialState is the IV with the parameter block folded in:
// 32-byte digest, no key, fanout 1, depth 1.
var initialState = [8]uint64{
	iv[0] ^ 0x01010020, iv[1], iv[2], iv[3], iv[4], iv[5], iv[6], iv[7],
}

// sigma holds the message schedule for each of the 12 rounds.
var sigma = [rounds][16]uint8{
	{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
	{14, 10, 4, 8, 9, 15, 13, 6, 1, 12, 0, 2, 11, 7, 5, 3},
	{11, 8, 12, 0, 5, 2, 15, 13, 10, 14, 3, 6, 7, 1, 9, 4},
	{7, 9, 3, 1, 13, 12, 11, 14, 2, 6, 5, 10, 4, 0, 15, 8},
	{9, 0, 5, 7, 2, 4, 10, 15, 14, 1, 11, 12, 6, 8, 3, 13},
	{2, 12, 6, 10, 0, 11, 8, 3, 4, 13, 7, 5, 15, 14, 1, 9},
	{12, 5, 1, 15, 14, 13, 4, 10, 0, 7, 6, 3, 9, 2, 8, 11},
	{13, 11, 7, 14, 12, 1, 3, 9, 5, 0, 15, 4, 8, 6, 2, 10},
	{6, 15, 14, 9, 11, 3, 0, 8, 12, 2, 13, 7, 1, 4, 10, 5},
	{10, 2, 8, 4, 7, 6, 1, 5, 15, 11, 9, 14, 3, 12, 13, 0},
	{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
	{14, 10, 4, 8, 9, 15, 13, 6, 1, 12, 0, 2, 11, 7, 5, 3},
}

// lanes is one 4-word row of the working state.
type lanes [4]uint64

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// DERIVATION
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Derive returns the SipHash keys for header and nonce. It never fails.
//
//go:registerparams
func Derive(header *types.Header, nonce uint64) siphash.Keys {
	var m [16]uint64

	// Block 1: header[0:128], counter 128, not final.
	loadBlock(&m, header[:bufferSize])
	h := initialState
	compress(&h, &m, bufferSize, false)

	// Block 2: header[128:238] || BE(nonce) || zero padding, counter 246, final.
	var tail [bufferSize]byte
	copy(tail[:], header[bufferSize:])
	binary.BigEndian.PutUint64(tail[constants.HeaderSize-bufferSize:], nonce)
	loadBlock(&m, tail[:])
	compress(&h, &m, messageSize, true)

	return siphash.Keys{h[0], h[1], h[2], h[3]}
}

// loadBlock reads a 128-byte block as sixteen little-endian words.
//
//go:nosplit
//go:inline
func loadBlock(m *[16]uint64, b []byte) {
	_ = b[bufferSize-1]
	for i := range m {
		m[i] = binary.LittleEndian.Uint64(b[i*8:])
	}
}

// compress folds one message block into h.
//
//go:registerparams
func compress(h *[8]uint64, m *[16]uint64, counter uint64, last bool) {
	a := lanes{h[0], h[1], h[2], h[3]}
	b := lanes{h[4], h[5], h[6], h[7]}
	c := lanes{iv[0], iv[1], iv[2], iv[3]}
	d := lanes{iv[4] ^ counter, iv[5], iv[6], iv[7]}
	if last {
		d[2] = ^d[2]
	}

	for i := 0; i < rounds; i++ {
		s := &sigma[i]

		// Column step.
		x := lanes{m[s[0]], m[s[2]], m[s[4]], m[s[6]]}
		y := lanes{m[s[1]], m[s[3]], m[s[5]], m[s[7]]}
		step(&a, &b, &c, &d, &x, &y)

		// Rotate rows into diagonal position.
		b = lanes{b[1], b[2], b[3], b[0]}
		c = lanes{c[2], c[3], c[0], c[1]}
		d = lanes{d[3], d[0], d[1], d[2]}

		// Diagonal step.
		x = lanes{m[s[8]], m[s[10]], m[s[12]], m[s[14]]}
		y = lanes{m[s[9]], m[s[11]], m[s[13]], m[s[15]]}
		step(&a, &b, &c, &d, &x, &y)

		// Rotate rows back.
		b = lanes{b[3], b[0], b[1], b[2]}
		c = lanes{c[2], c[3], c[0], c[1]}
		d = lanes{d[1], d[2], d[3], d[0]}
	}

	for j := 0; j < 4; j++ {
		h[j] ^= a[j] ^ c[j]
		h[j+4] ^= b[j] ^ d[j]
	}
}

// step applies the mixing function G to all four lanes at once:
// add, xor, rotate right by 32, 24, 16 and 63.
//
//go:nosplit
//go:inline
func step(a, b, c, d, x, y *lanes) {
	for j := 0; j < 4; j++ {
		a[j] += b[j] + x[j]
		d[j] = bits.RotateLeft64(d[j]^a[j], -32)
		c[j] += d[j]
		b[j] = bits.RotateLeft64(b[j]^c[j], -24)
		a[j] += b[j] + y[j]
		d[j] = bits.RotateLeft64(d[j]^a[j], -16)
		c[j] += d[j]
		b[j] = bits.RotateLeft64(b[j]^c[j], -63)
	}
}
