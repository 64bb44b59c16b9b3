// Package hash provides hashing utilities.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SHA256 computes the SHA256 hash of data and returns it as a hex string.
func SHA256(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SHA256String computes the SHA256 hash of a string.
func SHA256String(s string) string {
	return SHA256([]byte(s))
}

// SHA256Short returns the first n characters of a SHA256 hash.
func SHA256Short(data []byte, n int) string {
	h := SHA256(data)
	if n > len(h) {
		return h
	}
	return h[:n]
}

// Digest computes a hash over multiple parts joined with a separator, so
// ("ab", "c") and ("a", "bc") produce distinct digests.
func Digest(parts ...string) string {
	return SHA256String(strings.Join(parts, "\x1f"))
}

// EntryID generates a deterministic knowledge entry ID from pipeline and the
// entry's first pattern.
func EntryID(pipeline, pattern string) string {
	return SHA256Short([]byte(pipeline+":"+pattern), 16)
}
