package transfer

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
)

// ChecksumReader returns the hex SHA-256 of everything read from r.
func ChecksumReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifyChecksum reports whether data matches want. An empty want always matches.
func VerifyChecksum(data []byte, want string) bool {
	if want == "" {
		return true
	}
	return strings.EqualFold(Checksum(data), want)
}
