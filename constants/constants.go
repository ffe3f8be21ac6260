// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: constants.go — Puzzle geometry, memory budgets and pool timing
//
// Purpose:
//   - Fixes the cycle length, header layout and search capacity.
//   - Names the two graph profiles (cuckatoo18 for tests, cuckatoo31 for pools).
//   - Holds stratum session timing and the on-disk file names.
//
// Notes:
//   - Scratch sizes are powers of two so chunk arithmetic stays shift/mask.
//
// ⚠️ No runtime logic here — all values must be compile-time resolvable
// ─────────────────────────────────────────────────────────────────────────────

package constants

import "time"

// ───────────────────────────── Units ──────────────────────────────

const (
	BitsInAByte          = 8
	BytesInAKilobyte     = 1024
	KilobytesInAMegabyte = 1024
)

// ─────────────────────────── Puzzle Geometry ─────────────────────────────

const (
	// SolutionSize is the required cycle length. Not configurable.
	SolutionSize = 42

	// HalfSolutionSize bounds each visited-node-pair table during a search.
	HalfSolutionSize = SolutionSize / 2

	// Blake2bHashSize is the size of every hash field embedded in a header.
	Blake2bHashSize = 32

	// Secp256k1PrivateKeySize is the size of the header's key field.
	Secp256k1PrivateKeySize = 32

	// HeaderSize is the pre-proof-of-work header length:
	// version(2) height(8) timestamp(8) 5 hashes(160) key(32) 3 counters(24) nonce32(4).
	HeaderSize = 2 + 8 + 8 + 5*Blake2bHashSize + Secp256k1PrivateKeySize + 8 + 8 + 8 + 4

	// MaxEdgesAfterTrimming caps how many surviving edges the cycle search
	// will load. Extra edges are skipped with a warning.
	MaxEdgesAfterTrimming = 65535
)

// ─────────────────────────── Graph Profiles ─────────────────────────────

const (
	// Cuckatoo18EdgeBits is the small test graph (2^18 edges).
	Cuckatoo18EdgeBits = 18

	// Cuckatoo18TrimmingRounds is enough for the 18-bit graph to converge.
	Cuckatoo18TrimmingRounds = 4

	// Cuckatoo18LocalRAMSize holds the whole node bitmap of the small graph.
	Cuckatoo18LocalRAMSize = (1 << Cuckatoo18EdgeBits) / BitsInAByte

	// Cuckatoo18SecondaryLocalRAMSize matches the local budget.
	Cuckatoo18SecondaryLocalRAMSize = Cuckatoo18LocalRAMSize

	// Cuckatoo31EdgeBits is the production graph (2^31 edges).
	Cuckatoo31EdgeBits = 31

	// Cuckatoo31TrimmingRounds compensates for 1-bit liveness under-pruning.
	Cuckatoo31TrimmingRounds = 380

	// Cuckatoo31LocalRAMSize is the node-chunk budget without extra memory.
	Cuckatoo31LocalRAMSize = 2 * KilobytesInAMegabyte * BytesInAKilobyte

	// Cuckatoo31SecondaryLocalRAMSize is the edge-chunk budget.
	Cuckatoo31SecondaryLocalRAMSize = 1 * KilobytesInAMegabyte * BytesInAKilobyte
)

// ───────────────────────── Stratum Session ─────────────────────────

const (
	// MinerAgent is reported to the pool at login.
	MinerAgent = "MWC Go Miner"

	// StratumResponseBufferSize bounds one newline-terminated response.
	StratumResponseBufferSize = 10 * BytesInAKilobyte

	// KeepaliveInterval is how often the session pings the pool.
	KeepaliveInterval = 10 * time.Second

	// NoResponseDisconnect drops a pool that has been silent this long.
	NoResponseDisconnect = 30 * time.Second

	// ReconnectDelay is the pause between failed connection attempts.
	ReconnectDelay = 5 * time.Second

	// SendTimeout and ReceiveTimeout bound request/response exchanges.
	SendTimeout    = 30 * time.Second
	ReceiveTimeout = 30 * time.Second
)

// ───────────────────────── Files ─────────────────────────

const (
	// EdgesBitmapFile is the default persisted edge-presence bitmap.
	EdgesBitmapFile = "edges_bitmap.bin"

	// StratumSettingsFile is the legacy two-line settings file.
	StratumSettingsFile = "stratum_server_settings.txt"

	// StratumSettingsMaxLineSize bounds each legacy settings line.
	StratumSettingsMaxLineSize = BytesInAKilobyte

	// ConfigFile is the default YAML configuration.
	ConfigFile = "miner.yaml"

	// DatabaseFile is the default solution ledger.
	DatabaseFile = "miner.db"
)
