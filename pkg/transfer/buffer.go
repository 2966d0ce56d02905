package transfer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ChunkBuffer collects received chunks in arrival order.
type ChunkBuffer struct {
	chunks [][]byte
	total  int64
}

func NewChunkBuffer() *ChunkBuffer {
	return &ChunkBuffer{}
}

// Append stores data and returns the accumulated byte count.
func (b *ChunkBuffer) Append(data []byte) int64 {
	b.chunks = append(b.chunks, data)
	b.total += int64(len(data))
	return b.total
}

func (b *ChunkBuffer) Len() int64 {
	return b.total
}

func (b *ChunkBuffer) Chunks() int {
	return len(b.chunks)
}

func (b *ChunkBuffer) Reset() {
	b.chunks = nil
	b.total = 0
}

// Drain concatenates the chunks in arrival order and empties the buffer.
func (b *ChunkBuffer) Drain() []byte {
	out := make([]byte, 0, b.total)
	for _, c := range b.chunks {
		out = append(out, c...)
	}
	b.Reset()
	return out
}

// Artifact is a fully reassembled file.
type Artifact struct {
	Name      string
	MediaType string
	Data      []byte
}

func (a *Artifact) Size() int64 {
	return int64(len(a.Data))
}

func (a *Artifact) Reader() io.Reader {
	return bytes.NewReader(a.Data)
}

// SaveTo writes the artifact into dir under its base name. Existing files
// are never overwritten; a " (n)" suffix is added instead.
func (a *Artifact) SaveTo(dir string) (string, error) {
	// Sanitize the filename to prevent path traversal
	name := filepath.Base(filepath.Clean("/" + a.Name))
	if name == "/" || name == "." || name == "" {
		name = "received"
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for i := 0; i < 1000; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		outputPath := filepath.Join(dir, candidate)

		f, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		if _, err := f.Write(a.Data); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to write %s: %w", outputPath, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to close %s: %w", outputPath, err)
		}
		return outputPath, nil
	}
	return "", fmt.Errorf("no free file name for %s in %s", name, dir)
}
