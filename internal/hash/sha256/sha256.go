// Package sha256 fingerprints snapshot text.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher digests normalized snapshot text so run-log readers can tell
// whether two runs saw identical content without diffing it.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// HashString returns the hex SHA-256 digest of text.
func (Hasher) HashString(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
