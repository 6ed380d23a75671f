// Package hash selects a digest by its JOSE-style algorithm name.
package hash

import (
	"crypto/sha256"
	"crypto/sha512"
	"hash"
)

// Digest hashes message with the named algorithm. Unknown names fall back
// to SHA-256, the protocol default.
func Digest(message []byte, alg string) []byte {
	var hasher hash.Hash
	switch alg {
	case "SHA-384":
		hasher = sha512.New384()
	case "SHA-512":
		hasher = sha512.New()
	default:
		hasher = sha256.New()
	}
	hasher.Write(message)
	return hasher.Sum(nil)
}
