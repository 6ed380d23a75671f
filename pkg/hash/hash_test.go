package hash

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDigest(t *testing.T) {
	tests := []struct {
		name    string
		alg     string
		wantLen int
	}{
		{name: "sha256", alg: "SHA-256", wantLen: 32},
		{name: "sha384", alg: "SHA-384", wantLen: 48},
		{name: "sha512", alg: "SHA-512", wantLen: 64},
		{name: "unknown falls back to sha256", alg: "MD5", wantLen: 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Digest([]byte("message"), tt.alg)
			require.Len(t, got, tt.wantLen)
		})
	}
}

func TestDigestMatchesStdlib(t *testing.T) {
	want := sha256.Sum256([]byte("message"))
	require.Equal(t, want[:], Digest([]byte("message"), "SHA-256"))
}
