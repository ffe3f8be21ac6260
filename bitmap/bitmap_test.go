package bitmap

import (
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"miner/graph"
)

var small = graph.Params{Name: "test", EdgeBits: 12, TrimmingRounds: 1}

// -----------------------------------------------------------------------------
// ░░ Initialisation ░░
// -----------------------------------------------------------------------------

func TestFillCountMemory(t *testing.T) {
	for _, chunk := range []int{0, 8, 24, 512, 1 << 20} {
		s := NewMemStore(small.BitmapBytes())
		require.NoError(t, Fill(s, small, chunk))
		n, err := Count(s, small)
		require.NoError(t, err)
		require.Equal(t, small.Edges(), n, "chunk %d", chunk)
	}
}

func TestFillIsIdempotent(t *testing.T) {
	s := NewMemStore(small.BitmapBytes())
	require.NoError(t, Fill(s, small, 64))
	s.Bytes()[3] = 0
	require.NoError(t, Fill(s, small, 64))
	n, err := Count(s, small)
	require.NoError(t, err)
	require.Equal(t, small.Edges(), n)
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edges.bin")
	f, err := OpenFile(path, graph.Cuckatoo18)
	require.NoError(t, err)
	defer f.Close()

	st, err := f.Stat()
	require.NoError(t, err)
	require.Equal(t, graph.Cuckatoo18.BitmapBytes(), st.Size())

	require.NoError(t, Fill(f, graph.Cuckatoo18, 4096))
	n, err := Count(f, graph.Cuckatoo18)
	require.NoError(t, err)
	require.Equal(t, graph.Cuckatoo18.Edges(), n)
}

// -----------------------------------------------------------------------------
// ░░ Short Transfers ░░
// -----------------------------------------------------------------------------

func TestShortRead(t *testing.T) {
	s := NewMemStore(16)
	err := ReadChunk(s, make([]byte, 32), 0)
	require.ErrorIs(t, err, ErrShortRead)

	_, err = Count(s, small)
	require.ErrorIs(t, err, ErrShortRead)
}

func TestShortWrite(t *testing.T) {
	s := NewMemStore(16)
	err := WriteChunk(s, make([]byte, 8), 12)
	require.ErrorIs(t, err, ErrShortWrite)

	require.ErrorIs(t, Fill(s, small, 0), ErrShortWrite)
}

type failingStore struct{}

func (failingStore) ReadAt([]byte, int64) (int, error)  { return 0, errors.New("disk gone") }
func (failingStore) WriteAt([]byte, int64) (int, error) { return 0, io.ErrClosedPipe }

func TestFailingStore(t *testing.T) {
	require.ErrorIs(t, Fill(failingStore{}, small, 0), ErrShortWrite)
	_, err := Count(failingStore{}, small)
	require.ErrorIs(t, err, ErrShortRead)
}

func TestReadAtEOFWithFullBuffer(t *testing.T) {
	s := NewMemStore(8)
	copy(s.Bytes(), []byte{1, 2, 3, 4, 5, 6, 7, 8})
	buf := make([]byte, 4)
	require.NoError(t, ReadChunk(s, buf, 4))
	require.Equal(t, []byte{5, 6, 7, 8}, buf)
}
