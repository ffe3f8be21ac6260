package probetable

import (
	"math/rand"
	"testing"
)

// -----------------------------------------------------------------------------
// ░░ Constructor and Sizing ░░
// -----------------------------------------------------------------------------

func TestNewSizing(t *testing.T) {
	cases := []struct {
		capacity int
		slots    int
	}{
		{1, 2},
		{7, 8},
		{8, 16},
		{21, 32},
		{65535, 65536},
	}
	for _, c := range cases {
		if got := New[uint32](c.capacity).Slots(); got != c.slots {
			t.Fatalf("New(%d).Slots() = %d, want %d", c.capacity, got, c.slots)
		}
	}
}

func TestNewPanicsOnBadCapacity(t *testing.T) {
	for _, c := range []int{0, -1} {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("New(%d) did not panic", c)
				}
			}()
			New[uint32](c)
		}()
	}
}

// -----------------------------------------------------------------------------
// ░░ Insert / Lookup ░░
// -----------------------------------------------------------------------------

func TestInsertUniqueAndGet(t *testing.T) {
	h := New[int32](16)
	for i := uint32(0); i < 16; i++ {
		h.InsertUnique(i*3, int32(i))
	}
	for i := uint32(0); i < 16; i++ {
		v, ok := h.Get(i * 3)
		if !ok || v != int32(i) {
			t.Fatalf("Get(%d) = %d,%v; want %d,true", i*3, v, ok, i)
		}
	}
	if h.Contains(1) {
		t.Fatal("Contains(1) = true for absent key")
	}
}

func TestZeroKeyIsValid(t *testing.T) {
	h := New[int32](4)
	if h.Contains(0) {
		t.Fatal("empty table reports key 0")
	}
	h.InsertUnique(0, 9)
	if v, ok := h.Get(0); !ok || v != 9 {
		t.Fatalf("Get(0) = %d,%v; want 9,true", v, ok)
	}
}

func TestProbeWrapsAround(t *testing.T) {
	h := New[int32](7) // 8 slots
	// All keys share the last home slot, forcing wraparound.
	keys := []uint32{7, 15, 23, 31}
	for i, k := range keys {
		h.InsertUnique(k, int32(i))
	}
	for i, k := range keys {
		if v, ok := h.Get(k); !ok || v != int32(i) {
			t.Fatalf("Get(%d) = %d,%v; want %d,true", k, v, ok, i)
		}
	}
}

// -----------------------------------------------------------------------------
// ░░ Replace Chaining ░░
// -----------------------------------------------------------------------------

func TestReplaceReturnsPrevious(t *testing.T) {
	h := New[int32](8)
	if _, ok := h.Replace(42, 1); ok {
		t.Fatal("first Replace reported a previous value")
	}
	for want := int32(1); want < 5; want++ {
		old, ok := h.Replace(42, want+1)
		if !ok || old != want {
			t.Fatalf("Replace = %d,%v; want %d,true", old, ok, want)
		}
	}
	if v, _ := h.Get(42); v != 5 {
		t.Fatalf("Get after replaces = %d, want 5", v)
	}
	if h.Len() != 1 {
		t.Fatalf("Len = %d, want 1", h.Len())
	}
}

// -----------------------------------------------------------------------------
// ░░ Stack Rollback ░░
// -----------------------------------------------------------------------------

// snapshot captures observable state over a key range.
func snapshot(h *Table[int32], n uint32) map[uint32]int32 {
	m := make(map[uint32]int32)
	for k := uint32(0); k < n; k++ {
		if v, ok := h.Get(k); ok {
			m[k] = v
		}
	}
	return m
}

func TestRollbackRestoresState(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	h := New[int32](21)
	for i := 0; i < 10; i++ {
		h.InsertUnique(uint32(r.Intn(64)), int32(i))
	}
	before := snapshot(h, 64)

	for trial := 0; trial < 500; trial++ {
		k := uint32(r.Intn(64))
		slot := h.InsertUniqueSlot(k, -1)
		h.Rollback(slot)
		after := snapshot(h, 64)
		if len(after) != len(before) {
			t.Fatalf("trial %d: %d keys after rollback, want %d", trial, len(after), len(before))
		}
		for key, v := range before {
			if after[key] != v {
				t.Fatalf("trial %d: key %d = %d, want %d", trial, key, after[key], v)
			}
		}
	}
}

func TestRollbackNestedLIFO(t *testing.T) {
	h := New[int32](21)
	var slots []uint32
	for i := uint32(0); i < 21; i++ {
		slots = append(slots, h.InsertUniqueSlot(i%5, int32(i)))
	}
	for i := len(slots) - 1; i >= 0; i-- {
		h.Rollback(slots[i])
	}
	if h.Len() != 0 {
		t.Fatalf("Len after full unwind = %d, want 0", h.Len())
	}
	for k := uint32(0); k < 5; k++ {
		if h.Contains(k) {
			t.Fatalf("Contains(%d) after unwind", k)
		}
	}
}

// -----------------------------------------------------------------------------
// ░░ Values / Reset ░░
// -----------------------------------------------------------------------------

func TestValuesAndReset(t *testing.T) {
	h := New[int32](21)
	sum := int32(0)
	for i := int32(0); i < 21; i++ {
		h.InsertUnique(uint32(i*11), i)
		sum += i
	}
	out := make([]int32, 21)
	if n := h.Values(out); n != 21 {
		t.Fatalf("Values = %d, want 21", n)
	}
	got := int32(0)
	for _, v := range out {
		got += v
	}
	if got != sum {
		t.Fatalf("value sum = %d, want %d", got, sum)
	}

	h.Reset()
	if h.Len() != 0 || h.Contains(0) {
		t.Fatal("Reset left live entries")
	}
}

// -----------------------------------------------------------------------------
// ░░ Randomized Agreement With Go Map ░░
// -----------------------------------------------------------------------------

func TestReplaceStressAgainstMap(t *testing.T) {
	const capacity = 1024
	r := rand.New(rand.NewSource(1337))
	h := New[uint32](capacity)
	ref := make(map[uint32]uint32, capacity)

	for i := 0; i < 200_000; i++ {
		k := uint32(r.Intn(capacity))
		v := r.Uint32()
		old, ok := h.Replace(k, v)
		prev, seen := ref[k]
		if ok != seen || (seen && old != prev) {
			t.Fatalf("iteration %d: Replace(%d) = %d,%v; want %d,%v", i, k, old, ok, prev, seen)
		}
		ref[k] = v
	}
	for k, v := range ref {
		if got, ok := h.Get(k); !ok || got != v {
			t.Fatalf("Get(%d) = %d,%v; want %d,true", k, got, ok, v)
		}
	}
}

func BenchmarkReplace(b *testing.B) {
	h := New[int32](1 << 16)
	for i := 0; i < b.N; i++ {
		h.Replace(uint32(i)&0xffff, int32(i))
	}
}
