package filecache

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// EncodedKey is the fixed-length digest of a cache key. It names both the
// index entry and the file on disk.
type EncodedKey string

// encodedKeyLen is the length of an EncodedKey: hex of a 32-byte digest.
const encodedKeyLen = 2 * blake2b.Size256

// EncodeKey maps key to its BLAKE2b-256 digest in lowercase hex.
//
// The mapping is deterministic across processes and releases, so files and
// metadata written by one session stay addressable by the next.
func EncodeKey(key string) EncodedKey {
	sum := blake2b.Sum256([]byte(key))

	return EncodedKey(hex.EncodeToString(sum[:]))
}

// Valid reports whether k has the shape produced by [EncodeKey].
func (k EncodedKey) Valid() bool {
	if len(k) != encodedKeyLen {
		return false
	}

	for i := range len(k) {
		c := k[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}

	return true
}
