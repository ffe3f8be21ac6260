// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⚡ PERSISTED EDGE PRESENCE BITMAP
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Cuckatoo Miner
// Component: Edge Bitmap Store
//
// Description:
//   One bit per edge: byte i, bit j is edge 8i+j. A set bit means the edge is still a
//   candidate. The bitmap for a production graph is 256 MiB, so it lives in a file and is
//   streamed through bounded buffers; small graphs may use an in-memory store.
//
// Design Principles:
//   - Positional I/O only (ReadAt/WriteAt); no shared seek offset
//   - Any short transfer is fatal to the attempt and surfaces as ErrShortRead/ErrShortWrite
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package bitmap

import (
	"errors"
	"fmt"
	"io"
	"math/bits"
	"os"

	"miner/graph"
)

var (
	ErrShortRead  = errors.New("bitmap: short read")
	ErrShortWrite = errors.New("bitmap: short write")
)

// scanChunk is the buffer size used by Fill and Count when the caller has no budget.
const scanChunk = 64 << 10

// Store is a byte-addressable, seekable read/write bitmap backing.
type Store interface {
	io.ReaderAt
	io.WriterAt
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// FILE STORE
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// File is a Store backed by a regular file sized exactly p.BitmapBytes().
type File struct {
	*os.File
}

// OpenFile creates or reuses path and truncates it to the bitmap size.
func OpenFile(path string, p graph.Params) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("bitmap: open %s: %w", path, err)
	}
	if err := f.Truncate(p.BitmapBytes()); err != nil {
		f.Close()
		return nil, fmt.Errorf("bitmap: size %s: %w", path, err)
	}
	return &File{File: f}, nil
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// MEMORY STORE
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// MemStore keeps the bitmap in a byte slice.
type MemStore struct {
	buf []byte
}

// NewMemStore allocates size zeroed bytes.
func NewMemStore(size int64) *MemStore {
	return &MemStore{buf: make([]byte, size)}
}

// Bytes exposes the backing slice.
func (m *MemStore) Bytes() []byte { return m.buf }

func (m *MemStore) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *MemStore) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(m.buf)) {
		return 0, io.ErrShortWrite
	}
	n := copy(m.buf[off:], p)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CHUNK I/O
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// ReadChunk fills buf from offset off or reports ErrShortRead.
func ReadChunk(s Store, buf []byte, off int64) error {
	n, err := s.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("%w at %d (%d/%d bytes): %v", ErrShortRead, off, n, len(buf), err)
}

// WriteChunk writes buf at offset off or reports ErrShortWrite.
func WriteChunk(s Store, buf []byte, off int64) error {
	n, err := s.WriteAt(buf, off)
	if n == len(buf) && err == nil {
		return nil
	}
	if err == nil {
		err = io.ErrShortWrite
	}
	return fmt.Errorf("%w at %d (%d/%d bytes): %v", ErrShortWrite, off, n, len(buf), err)
}

// chunkSize clamps a requested buffer size to the bitmap.
func chunkSize(p graph.Params, want int) int {
	total := p.BitmapBytes()
	if want <= 0 {
		want = scanChunk
	}
	if int64(want) > total {
		return int(total)
	}
	return want
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// WHOLE-BITMAP OPERATIONS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Fill marks every edge present. chunkBytes <= 0 picks a default buffer.
func Fill(s Store, p graph.Params, chunkBytes int) error {
	buf := make([]byte, chunkSize(p, chunkBytes))
	for i := range buf {
		buf[i] = 0xff
	}
	total := p.BitmapBytes()
	for off := int64(0); off < total; off += int64(len(buf)) {
		n := int64(len(buf))
		if rem := total - off; rem < n {
			n = rem
		}
		if err := WriteChunk(s, buf[:n], off); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of edges still present.
func Count(s Store, p graph.Params) (uint64, error) {
	buf := make([]byte, chunkSize(p, 0))
	total := p.BitmapBytes()
	var count uint64
	for off := int64(0); off < total; off += int64(len(buf)) {
		n := int64(len(buf))
		if rem := total - off; rem < n {
			n = rem
		}
		if err := ReadChunk(s, buf[:n], off); err != nil {
			return 0, err
		}
		for _, b := range buf[:n] {
			count += uint64(bits.OnesCount8(b))
		}
	}
	return count, nil
}
