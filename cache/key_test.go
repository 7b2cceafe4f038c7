package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	assert.Equal(t, Fingerprint("hello world"), Fingerprint("hello world"))
	assert.NotEqual(t, Fingerprint("hello world"), Fingerprint("goodbye world"))

	// Whitespace-only differences share a key.
	assert.Equal(t, Fingerprint("hello world"), Fingerprint("  hello\tworld\n"))

	assert.Contains(t, Fingerprint("x"), keyPrefix)
}
