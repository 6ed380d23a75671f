package token

import (
	"bytes"
	"crypto"

	"github.com/go-jose/go-jose/v3"
)

// PublicJWK exports the public half of a signing key as its canonical JWK
// representation, the form embedded in token payloads.
func PublicJWK(key crypto.Signer, alg jose.SignatureAlgorithm) *jose.JSONWebKey {
	return &jose.JSONWebKey{
		Key:       key.Public(),
		Algorithm: string(alg),
		Use:       "sig",
	}
}

// KeysEqual reports whether two public JWKs represent the same key. The
// comparison goes through SHA-256 thumbprints, so equal keys with
// different optional JWK members still match.
func KeysEqual(a, b *jose.JSONWebKey) bool {
	if a == nil || b == nil {
		return false
	}

	ta, err := a.Thumbprint(crypto.SHA256)
	if err != nil {
		return false
	}
	tb, err := b.Thumbprint(crypto.SHA256)
	if err != nil {
		return false
	}

	return bytes.Equal(ta, tb)
}
