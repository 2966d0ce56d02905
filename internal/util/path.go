package util

import (
	"errors"
	"io/fs"
	"os"
)

// CheckDirectory reports whether path exists and is a directory. A missing
// path is not an error.
func CheckDirectory(path string) (exists bool, isDir bool, err error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, false, nil
		}
		return false, false, err
	}
	return true, info.IsDir(), nil
}
