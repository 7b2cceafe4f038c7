package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const keyPrefix = "emb:"

// Fingerprint derives the cache key for a text: a sha256 over the
// whitespace-normalized content. Texts differing only in whitespace share a
// key.
func Fingerprint(text string) string {
	normalized := strings.Join(strings.Fields(text), " ")
	hash := sha256.Sum256([]byte(normalized))
	return keyPrefix + hex.EncodeToString(hash[:16])
}
