// Package sha256 names archived pages by the SHA-256 of their content.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Hasher implements crawler.Hasher using SHA-256.
type Hasher struct {
	length int
}

// New returns a hasher emitting the first length hex characters of the
// digest. Zero or anything above 64 keeps the full digest.
func New(length int) *Hasher {
	if length <= 0 || length > sha256.Size*2 {
		length = sha256.Size * 2
	}
	return &Hasher{length: length}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	if data == nil {
		return "", fmt.Errorf("nothing to hash")
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:h.length], nil
}
