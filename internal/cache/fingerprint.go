package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns the cache key for text: the SHA-256 of its exact bytes,
// hex encoded. No normalization is applied, so texts differing only in case
// or whitespace get different keys.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
