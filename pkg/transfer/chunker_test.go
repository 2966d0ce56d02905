package transfer

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestFile creates a temporary file with specified content for testing
// Works with both *testing.T and *testing.B using the common testing.TB interface
func setupTestFile(tb testing.TB, content []byte) *os.File {
	tb.Helper()

	filePath := filepath.Join(tb.TempDir(), "test-file.bin")
	if err := os.WriteFile(filePath, content, 0644); err != nil {
		tb.Fatalf("Failed to create test file: %v", err)
	}
	f, err := os.Open(filePath)
	if err != nil {
		tb.Fatalf("Failed to open test file: %v", err)
	}
	tb.Cleanup(func() { f.Close() })
	return f
}

func randomBytes(n int) []byte {
	data := make([]byte, n)
	rand.New(rand.NewSource(int64(n))).Read(data)
	return data
}

func drain(t *testing.T, c *Chunker) [][]byte {
	t.Helper()
	var chunks [][]byte
	for {
		chunk, err := c.Next()
		if errors.Is(err, io.EOF) {
			return chunks
		}
		require.NoError(t, err)
		chunks = append(chunks, chunk)
	}
}

func TestNewChunker_InvalidArguments(t *testing.T) {
	_, err := NewChunker(nil, 10, 4)
	assert.ErrorIs(t, err, ErrNoSource)

	_, err = NewChunker(bytes.NewReader(nil), -1, 4)
	assert.Error(t, err)

	_, err = NewChunker(bytes.NewReader(nil), 0, 0)
	assert.Error(t, err)
}

func TestChunker_RoundTrip(t *testing.T) {
	testCases := []struct {
		name      string
		size      int
		chunkSize int
		chunks    int
	}{
		{"Empty", 0, 4, 0},
		{"Smaller than chunk", 3, 4, 1},
		{"Exact chunk", 4, 4, 1},
		{"Exact multiple", 65536, 32768, 2},
		{"With remainder", 100_003, 4096, 25},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			content := randomBytes(tc.size)
			file := setupTestFile(t, content)

			chunker, err := NewChunker(file, int64(tc.size), tc.chunkSize)
			require.NoError(t, err)

			chunks := drain(t, chunker)
			assert.Len(t, chunks, tc.chunks)
			assert.True(t, chunker.Done())
			assert.Equal(t, int64(tc.size), chunker.Offset())

			buf := NewChunkBuffer()
			for _, c := range chunks {
				assert.LessOrEqual(t, len(c), tc.chunkSize)
				buf.Append(c)
			}
			assert.Equal(t, int64(tc.size), buf.Len())
			assert.True(t, bytes.Equal(content, buf.Drain()), "reassembled content differs")
		})
	}
}

func TestChunker_ChunksAreIndependentCopies(t *testing.T) {
	chunker, err := NewChunker(bytes.NewReader([]byte("aaaabbbb")), 8, 4)
	require.NoError(t, err)

	first, err := chunker.Next()
	require.NoError(t, err)
	second, err := chunker.Next()
	require.NoError(t, err)

	assert.Equal(t, "aaaa", string(first))
	assert.Equal(t, "bbbb", string(second))
}

func TestChunker_ShortSource(t *testing.T) {
	chunker, err := NewChunker(bytes.NewReader([]byte("abc")), 10, 4)
	require.NoError(t, err)

	_, err = chunker.Next()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestProgress(t *testing.T) {
	tests := []struct {
		done, total int64
		want        int
	}{
		{0, 100, 0},
		{1, 200, 1}, // 0.5 rounds up
		{1, 300, 0},
		{40, 100, 40},
		{32768, 65536, 50},
		{65536, 65536, 100},
		{70000, 65536, 100},
		{0, 0, 100},
		{-5, 10, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Progress(tt.done, tt.total), "Progress(%d, %d)", tt.done, tt.total)
	}
}

func TestProgress_MonotonicOverChunks(t *testing.T) {
	const size = 1_000_003
	chunker, err := NewChunker(bytes.NewReader(randomBytes(size)), size, 7919)
	require.NoError(t, err)

	last := 0
	for !chunker.Done() {
		_, err := chunker.Next()
		require.NoError(t, err)
		p := Progress(chunker.Offset(), size)
		assert.GreaterOrEqual(t, p, last)
		assert.LessOrEqual(t, p, 100)
		last = p
	}
	assert.Equal(t, 100, last)
}

func TestChunkBuffer_PreservesArrivalOrder(t *testing.T) {
	buf := NewChunkBuffer()
	buf.Append([]byte("c0-"))
	buf.Append([]byte("c1-"))
	buf.Append([]byte("c2"))

	assert.Equal(t, 3, buf.Chunks())
	assert.Equal(t, int64(8), buf.Len())
	assert.Equal(t, "c0-c1-c2", string(buf.Drain()))

	assert.Equal(t, 0, buf.Chunks())
	assert.Equal(t, int64(0), buf.Len())
}

func TestVerifyChecksum_DetectsReordering(t *testing.T) {
	content := randomBytes(4096)
	want := Checksum(content)

	chunker, err := NewChunker(bytes.NewReader(content), int64(len(content)), 1024)
	require.NoError(t, err)
	chunks := drain(t, chunker)
	chunks[1], chunks[2] = chunks[2], chunks[1]

	buf := NewChunkBuffer()
	for _, c := range chunks {
		buf.Append(c)
	}
	swapped := buf.Drain()

	assert.Equal(t, len(content), len(swapped))
	assert.False(t, VerifyChecksum(swapped, want))
	assert.True(t, VerifyChecksum(content, want))
	assert.True(t, VerifyChecksum(swapped, ""), "no checksum means nothing to verify")
}

func TestChecksumReader(t *testing.T) {
	sum, err := ChecksumReader(bytes.NewReader([]byte("abc")))
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", sum)

	content := randomBytes(3*1024 + 17)
	sum, err = ChecksumReader(iotest.OneByteReader(bytes.NewReader(content)))
	require.NoError(t, err)
	assert.Equal(t, Checksum(content), sum)

	boom := errors.New("disk gone")
	_, err = ChecksumReader(iotest.ErrReader(boom))
	assert.ErrorIs(t, err, boom)
}

func BenchmarkChunker(b *testing.B) {
	content := randomBytes(8 * 1024 * 1024)
	file := setupTestFile(b, content)

	b.SetBytes(int64(len(content)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		chunker, err := NewChunker(file, int64(len(content)), DefaultChunkSize)
		if err != nil {
			b.Fatal(err)
		}
		for !chunker.Done() {
			if _, err := chunker.Next(); err != nil {
				b.Fatal(err)
			}
		}
	}
}
