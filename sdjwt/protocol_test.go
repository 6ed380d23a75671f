package sdjwt

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/stretchr/testify/require"

	"github.com/kokukuma/sdjwt-demo/token"
)

// fixedTime pins iat in tests that assert on timestamps.
var fixedTime = time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)

// countingReader is a deterministic salt source. Not a CSPRNG; tests only.
type countingReader struct {
	next byte
}

func (c *countingReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = c.next
		c.next++
	}
	return len(p), nil
}

type testParties struct {
	issuer    *Issuer
	issuerPub *jose.JSONWebKey

	holder       *Holder
	holderSigner *token.Signer
	holderPub    *jose.JSONWebKey
}

func newTestParties(t *testing.T, issuerID string, issuerOpts ...IssuerOption) *testParties {
	t.Helper()

	issuerKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	issuerSigner, err := token.NewSigner(issuerKey, token.DefaultAlgorithm)
	require.NoError(t, err)

	holderKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	holderSigner, err := token.NewSigner(holderKey, token.DefaultAlgorithm)
	require.NoError(t, err)

	return &testParties{
		issuer:       NewIssuer(issuerID, issuerSigner, issuerOpts...),
		issuerPub:    token.PublicJWK(issuerKey, token.DefaultAlgorithm),
		holder:       NewHolder(holderSigner),
		holderSigner: holderSigner,
		holderPub:    token.PublicJWK(holderKey, token.DefaultAlgorithm),
	}
}

func testClaims() Branch {
	return FromMap(map[string]interface{}{
		"sub":        "abc",
		"given_name": "John",
		"address": map[string]interface{}{
			"locality": "Anytown",
			"country":  "US",
		},
	})
}
