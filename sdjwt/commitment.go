package sdjwt

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/kokukuma/sdjwt-demo/pkg/hash"
)

// saltSize is 128 bits of entropy per claim, enough to make commitments
// over equal values uncorrelatable across issuances.
const saltSize = 128 / 8

const disclosureParts = 2

// GenerateSalt draws a fresh 16-byte salt from random and returns it
// URL-safe base64 encoded without padding. random must be a CSPRNG source,
// crypto/rand.Reader in production; tests may substitute a seeded reader.
func GenerateSalt(random io.Reader) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(random, salt); err != nil {
		return "", fmt.Errorf("failed to read salt: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(salt), nil
}

// HashRaw hashes a serialized disclosure entry the way commitments are
// carried in the token: SHA-256, URL-safe base64, no padding.
func HashRaw(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(hash.Digest(raw, "SHA-256"))
}

// RawClaim serializes [salt, value] to its canonical JSON text. This text
// is the pre-image of the commitment and is what the holder discloses.
func RawClaim(salt string, value interface{}) (string, error) {
	raw, err := json.Marshal([disclosureParts]interface{}{salt, value})
	if err != nil {
		return "", fmt.Errorf("failed to serialize disclosure: %w", err)
	}
	return string(raw), nil
}

// HashClaim computes the commitment for a salted claim value.
func HashClaim(salt string, value interface{}) (string, error) {
	raw, err := RawClaim(salt, value)
	if err != nil {
		return "", err
	}
	return HashRaw([]byte(raw)), nil
}

// VerifyClaim recomputes the commitment for a disclosed raw entry and, on
// match, parses the entry and returns the disclosed value. The comparison
// is constant time so near-matches are indistinguishable from misses.
func VerifyClaim(raw, commitment string) (interface{}, error) {
	calc := HashRaw([]byte(raw))
	if subtle.ConstantTimeCompare([]byte(calc), []byte(commitment)) != 1 {
		return nil, fmt.Errorf("disclosed value does not match the commitment: %w", ErrCommitmentMismatch)
	}

	var entry []interface{}
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("disclosure is not a JSON array: %w", ErrMalformedDisclosure)
	}
	if len(entry) != disclosureParts {
		return nil, fmt.Errorf("disclosure array size[%d] must be %d: %w", len(entry), disclosureParts, ErrMalformedDisclosure)
	}

	return entry[1], nil
}
