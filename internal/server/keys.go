package server

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"os"

	"github.com/kokukuma/sdjwt-demo/pkg/pki"
)

// loadOrGenKey returns the EC key at the path named by envVar, or a fresh
// P-256 key when the variable is unset. The demo runs fine on ephemeral
// keys; static keys only matter when wallets cache the JWKS.
func loadOrGenKey(envVar string) (*ecdsa.PrivateKey, error) {
	if path := os.Getenv(envVar); path != "" {
		return pki.LoadECPrivateKey(path)
	}
	return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
}
