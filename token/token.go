// Package token wraps the JWS signing and verification primitive and the
// public key representation the protocol exchanges. Everything here is
// plain compact JWS via go-jose; the selective disclosure logic lives in
// package sdjwt and only hands payload bytes across this boundary.
package token

import (
	"errors"
	"fmt"

	"github.com/go-jose/go-jose/v3"
)

// DefaultAlgorithm is the signing algorithm used by both issuer and
// holder tokens unless configured otherwise.
const DefaultAlgorithm = jose.ES256

// ErrSignatureInvalid reports a token whose signature does not verify
// under the given key.
var ErrSignatureInvalid = errors.New("token signature invalid")

// Signer produces compact three-segment JWS tokens with a fixed key and
// algorithm.
type Signer struct {
	signer jose.Signer
}

// NewSigner builds a Signer around a private key. key is anything go-jose
// accepts as a signing key (*ecdsa.PrivateKey, *rsa.PrivateKey, JWK, ...).
func NewSigner(key interface{}, alg jose.SignatureAlgorithm) (*Signer, error) {
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: alg, Key: key}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create signer: %w", err)
	}
	return &Signer{signer: signer}, nil
}

// Sign signs payload and returns the compact serialization.
func (s *Signer) Sign(payload []byte) (string, error) {
	obj, err := s.signer.Sign(payload)
	if err != nil {
		return "", fmt.Errorf("failed to sign payload: %w", err)
	}

	compact, err := obj.CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("failed to serialize token: %w", err)
	}
	return compact, nil
}

// Verify checks a compact token against key and returns its payload.
func Verify(compact string, key interface{}) ([]byte, error) {
	obj, err := jose.ParseSigned(compact)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	payload, err := obj.Verify(key)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrSignatureInvalid)
	}
	return payload, nil
}

// ParseUnverified parses a compact token structurally and returns its
// payload without checking the signature. Used for release tokens in
// anonymous presentations, where no holder key is known to check against.
func ParseUnverified(compact string) ([]byte, error) {
	obj, err := jose.ParseSigned(compact)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	return obj.UnsafePayloadWithoutVerification(), nil
}
