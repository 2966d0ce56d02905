// Package fileInfo turns a file on disk into the descriptor and source a
// sender session needs.
package fileInfo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rescp17/dropline/pkg/transfer"
)

const defaultMediaType = "application/octet-stream"

var ErrNotRegularFile = errors.New("not a regular file")

// Describe builds the descriptor for the file at path: its base name,
// size, detected media type and SHA-256 checksum.
func Describe(path string) (transfer.FileDescriptor, error) {
	info, err := os.Stat(path)
	if err != nil {
		return transfer.FileDescriptor{}, err
	}
	if !info.Mode().IsRegular() {
		return transfer.FileDescriptor{}, fmt.Errorf("%s: %w", path, ErrNotRegularFile)
	}

	desc := transfer.FileDescriptor{
		Name:      filepath.Base(path),
		Size:      info.Size(),
		MediaType: defaultMediaType,
	}
	if mime, err := mimetype.DetectFile(path); err == nil {
		desc.MediaType = mime.String()
	}

	sum, err := checksumFile(path)
	if err != nil {
		return transfer.FileDescriptor{}, fmt.Errorf("checksum %s: %w", path, err)
	}
	desc.Checksum = sum
	return desc, nil
}

func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return transfer.ChecksumReader(f)
}

// Source is an open file ready to be offered.
type Source struct {
	*os.File
	Descriptor transfer.FileDescriptor
}

// Open describes the file at path and keeps it open for reading. The size
// in the descriptor is re-checked against the open file so a file replaced
// between the two steps is caught.
func Open(path string) (*Source, error) {
	desc, err := Describe(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() != desc.Size {
		f.Close()
		return nil, fmt.Errorf("%s changed while it was being described", path)
	}
	return &Source{File: f, Descriptor: desc}, nil
}
