// Package fingerprint computes content digests used to detect duplicate uploads.
package fingerprint

import (
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/blake2b"
)

// ChunkSize is the read buffer used while streaming content into the hash.
const ChunkSize = 32 * 1024

// Size is the digest length in bytes.
const Size = blake2b.Size256

// New returns an unkeyed BLAKE2b-256 hash. Callers that already stream the
// content elsewhere (for example into a blob store) can tee into it.
func New() hash.Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// Only reachable with an oversized key.
		panic(fmt.Sprintf("blake2b: %v", err))
	}
	return h
}

// Sum streams r into a fresh hash and returns the lowercase hex digest.
func Sum(r io.Reader) (string, error) {
	h := New()
	buf := make([]byte, ChunkSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", fmt.Errorf("hashing content: %w", err)
	}
	return Encode(h), nil
}

// Encode returns the hex form of the hash's current digest.
func Encode(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}
