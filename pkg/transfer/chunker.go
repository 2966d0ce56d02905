package transfer

import (
	"errors"
	"fmt"
	"io"
)

var ErrNoSource = errors.New("no source to chunk")

// Chunker reads a source in fixed windows, front to back.
type Chunker struct {
	src       io.ReaderAt
	chunkSize int
	size      int64
	offset    int64
	buffer    []byte
}

func NewChunker(src io.ReaderAt, size int64, chunkSize int) (*Chunker, error) {
	if src == nil {
		return nil, ErrNoSource
	}
	if size < 0 {
		return nil, fmt.Errorf("size must not be negative, got %d", size)
	}
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	return &Chunker{
		src:       src,
		chunkSize: chunkSize,
		size:      size,
		buffer:    make([]byte, chunkSize),
	}, nil
}

// Next returns the next window of at most chunkSize bytes, or io.EOF once
// size bytes have been produced. A source shorter than size is an error.
func (c *Chunker) Next() ([]byte, error) {
	if c.offset >= c.size {
		return nil, io.EOF
	}

	want := int64(c.chunkSize)
	if remaining := c.size - c.offset; remaining < want {
		want = remaining
	}

	n, err := c.src.ReadAt(c.buffer[:want], c.offset)
	if int64(n) < want {
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read %d bytes at offset %d: %w", want, c.offset, err)
	}
	c.offset += int64(n)

	// Copy so callers can hold on to the chunk after the buffer is reused.
	data := make([]byte, n)
	copy(data, c.buffer[:n])
	return data, nil
}

func (c *Chunker) Offset() int64 {
	return c.offset
}

func (c *Chunker) Size() int64 {
	return c.size
}

func (c *Chunker) Done() bool {
	return c.offset >= c.size
}

// Progress is round(done/total*100), clamped to [0, 100]. An empty
// transfer counts as complete.
func Progress(done, total int64) int {
	if total <= 0 {
		return 100
	}
	if done <= 0 {
		return 0
	}
	if done >= total {
		return 100
	}
	return int((done*100 + total/2) / total)
}
