// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⚡ LINEAR-PROBING TABLE WITH STACK ROLLBACK
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Cuckatoo Miner
// Component: Fixed-Capacity Open-Addressing Map
//
// Description:
//   Zero-allocation-after-construction table keyed by 32-bit node (or node-pair) ids.
//   Builds the post-trim connection graph (Replace chains the newest connection per node)
//   and tracks visited node pairs during the cycle search (InsertUniqueSlot + Rollback).
//
// Design Principles:
//   - Power-of-2 slot count strictly larger than capacity, so a probe always meets a hole
//   - Parallel arrays for keys, values and occupancy
//   - Plain linear probing from key & mask; no hashing, keys are already pseudorandom
//
// ⚠️ THIS IS NOT A GENERAL MAP. There is no Delete. Rollback only undoes the most recent
//    InsertUniqueSlot that has not been probed past, i.e. callers must roll back in exact
//    LIFO order. Clearing any other slot breaks the probe chain of every key behind it.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package probetable

import "math/bits"

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// TYPE DEFINITIONS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// maxCapacity keeps the slot count addressable by a uint32 slot id.
const maxCapacity = 1<<31 - 1

// Table maps uint32 keys to values of type V.
type Table[V any] struct {
	keys []uint32 // Key array
	vals []V      // Value array (parallel to keys)
	used []bool   // Occupancy (parallel to keys); keys may legitimately be 0
	mask uint32   // Slot count - 1
	_    [4]byte  // Padding
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CONSTRUCTOR
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// nextPow2 returns the smallest power of two >= n (n > 0).
//
//go:nosplit
//go:inline
func nextPow2(n uint32) uint32 {
	if n <= 1 {
		return 1
	}
	return 1 << (32 - bits.LeadingZeros32(n-1))
}

// New allocates a table able to hold capacity live entries. The slot count
// is the next power of two >= capacity+1 so that probing for an empty slot
// always terminates. A capacity outside [1, 2^31-1] is a programmer error.
func New[V any](capacity int) *Table[V] {
	if capacity <= 0 || capacity > maxCapacity {
		panic("probetable: capacity out of range")
	}
	sz := nextPow2(uint32(capacity) + 1)
	return &Table[V]{
		keys: make([]uint32, sz),
		vals: make([]V, sz),
		used: make([]bool, sz),
		mask: sz - 1,
	}
}

// Slots returns the physical slot count.
func (t *Table[V]) Slots() int { return len(t.keys) }

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// INSERTION
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// InsertUnique stores (key, val) in the first empty slot at or after key's
// home slot. The caller guarantees no live entry for key exists.
//
//go:nosplit
//go:inline
//go:registerparams
func (t *Table[V]) InsertUnique(key uint32, val V) {
	t.InsertUniqueSlot(key, val)
}

// InsertUniqueSlot is InsertUnique that also returns the slot used, for a
// later Rollback.
//
//go:nosplit
//go:inline
//go:registerparams
func (t *Table[V]) InsertUniqueSlot(key uint32, val V) uint32 {
	i := key & t.mask
	for t.used[i] {
		i = (i + 1) & t.mask
	}
	t.keys[i], t.vals[i], t.used[i] = key, val, true
	return i
}

// Replace swaps in val for key and returns the previous value. When key is
// absent it is inserted and ok is false.
//
//go:nosplit
//go:inline
//go:registerparams
func (t *Table[V]) Replace(key uint32, val V) (old V, ok bool) {
	i := key & t.mask
	for t.used[i] {
		if t.keys[i] == key {
			old, t.vals[i] = t.vals[i], val
			return old, true
		}
		i = (i + 1) & t.mask
	}
	t.keys[i], t.vals[i], t.used[i] = key, val, true
	return old, false
}

// Rollback empties slot. Valid only for the most recent InsertUniqueSlot
// still outstanding (LIFO); see the package warning.
//
//go:nosplit
//go:inline
func (t *Table[V]) Rollback(slot uint32) {
	var zero V
	t.vals[slot] = zero
	t.used[slot] = false
}

// Reset empties every slot.
func (t *Table[V]) Reset() {
	clear(t.used)
	clear(t.vals)
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// LOOKUP
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Contains reports whether key has a live entry.
//
//go:nosplit
//go:inline
//go:registerparams
func (t *Table[V]) Contains(key uint32) bool {
	for i := key & t.mask; t.used[i]; i = (i + 1) & t.mask {
		if t.keys[i] == key {
			return true
		}
	}
	return false
}

// Get returns key's value.
//
//go:nosplit
//go:inline
//go:registerparams
func (t *Table[V]) Get(key uint32) (V, bool) {
	for i := key & t.mask; t.used[i]; i = (i + 1) & t.mask {
		if t.keys[i] == key {
			return t.vals[i], true
		}
	}
	var zero V
	return zero, false
}

// Values copies every live value into out in slot order and returns how
// many were written. out must be large enough for all live entries.
func (t *Table[V]) Values(out []V) int {
	n := 0
	for i, u := range t.used {
		if u {
			out[n] = t.vals[i]
			n++
		}
	}
	return n
}

// Len counts live entries.
func (t *Table[V]) Len() int {
	n := 0
	for _, u := range t.used {
		if u {
			n++
		}
	}
	return n
}
