package sdjwt

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kokukuma/sdjwt-demo/token"
)

const (
	testIssuer   = "https://issuer.example.com"
	testAudience = "https://verifier.example.com"
	testNonce    = "XZOUco1u_gEPknxS78sWWg"
)

func issueAndRelease(t *testing.T, parties *testParties, disclose Branch) (*Credential, string) {
	t.Helper()

	cred, err := parties.issuer.Issue(testClaims(), Branch{}, parties.holderPub)
	require.NoError(t, err)

	release, err := parties.holder.CreateRelease(testNonce, testAudience, disclose, cred.Container)
	require.NoError(t, err)

	return cred, CombinedFormat(cred.SDJWT, release.Token)
}

func TestVerifyRoundTrip(t *testing.T) {
	parties := newTestParties(t, testIssuer)

	disclose := Branch{
		"given_name": Leaf{Value: true},
		"address": Branch{
			"locality": Leaf{Value: true},
		},
	}
	_, presentation := issueAndRelease(t, parties, disclose)

	verifier := NewVerifier(parties.issuerPub, testIssuer,
		WithHolderBinding(parties.holderPub, testAudience, testNonce),
	)

	disclosed, err := verifier.Verify(presentation)
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{
		"given_name": "John",
		"address": map[string]interface{}{
			"locality": "Anytown",
		},
	}, disclosed.ToMap())
}

// The scenario from the protocol description: issue sub plus a nested
// address, disclose only the address, and the verifier must see exactly
// the address and nothing about sub.
func TestVerifyPartialDisclosure(t *testing.T) {
	parties := newTestParties(t, testIssuer)

	disclose := Branch{
		"address": Branch{
			"locality": Leaf{Value: true},
			"country":  Leaf{Value: true},
		},
	}
	_, presentation := issueAndRelease(t, parties, disclose)

	verifier := NewVerifier(parties.issuerPub, testIssuer,
		WithHolderBinding(parties.holderPub, testAudience, testNonce),
	)

	disclosed, err := verifier.Verify(presentation)
	require.NoError(t, err)

	require.Equal(t, map[string]interface{}{
		"address": map[string]interface{}{
			"locality": "Anytown",
			"country":  "US",
		},
	}, disclosed.ToMap())
	require.NotContains(t, disclosed, "sub")

	// the release token itself must not leak undisclosed claims
	parts := strings.Split(presentation, ".")
	releasePayload, err := token.ParseUnverified(strings.Join(parts[3:], "."))
	require.NoError(t, err)
	require.NotContains(t, string(releasePayload), `"sub"`)
	require.NotContains(t, string(releasePayload), "abc")
	require.NotContains(t, string(releasePayload), "John")
}

func TestVerifyTamperedDisclosure(t *testing.T) {
	parties := newTestParties(t, testIssuer)

	cred, err := parties.issuer.Issue(testClaims(), Branch{}, parties.holderPub)
	require.NoError(t, err)

	// flip one character of one stored pre-image before the holder
	// builds its release
	stored, err := DecodeContainer(cred.Container, DefaultClaimsKey)
	require.NoError(t, err)
	raw := stored["given_name"].(Leaf).Value.(string)
	tampered := []byte(raw)
	tampered[len(tampered)/2] ^= 0x01
	stored["given_name"] = Leaf{Value: string(tampered)}

	container, err := encodeContainer(DefaultClaimsKey, stored)
	require.NoError(t, err)

	release, err := parties.holder.CreateRelease(testNonce, testAudience,
		Branch{"given_name": Leaf{Value: true}}, container)
	require.NoError(t, err)

	verifier := NewVerifier(parties.issuerPub, testIssuer,
		WithHolderBinding(parties.holderPub, testAudience, testNonce),
	)

	_, err = verifier.Verify(CombinedFormat(cred.SDJWT, release.Token))
	require.ErrorIs(t, err, ErrCommitmentMismatch)
}

func TestVerifyMalformedPresentation(t *testing.T) {
	parties := newTestParties(t, testIssuer)
	verifier := NewVerifier(parties.issuerPub, testIssuer)

	tests := []struct {
		name         string
		presentation string
	}{
		{name: "empty", presentation: ""},
		{name: "single token", presentation: "aaa.bbb.ccc"},
		{name: "five segments", presentation: "a.b.c.d.e"},
		{name: "seven segments", presentation: "a.b.c.d.e.f.g"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.presentation)
			require.ErrorIs(t, err, ErrMalformedPresentation)
		})
	}
}

func TestVerifyHolderBindingArguments(t *testing.T) {
	parties := newTestParties(t, testIssuer)
	_, presentation := issueAndRelease(t, parties, Branch{"sub": Leaf{Value: true}})

	tests := []struct {
		name     string
		audience string
		nonce    string
	}{
		{name: "missing nonce", audience: testAudience, nonce: ""},
		{name: "missing audience", audience: "", nonce: testNonce},
		{name: "missing both", audience: "", nonce: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := NewVerifier(parties.issuerPub, testIssuer,
				WithHolderBinding(parties.holderPub, tt.audience, tt.nonce),
			)
			_, err := verifier.Verify(presentation)
			require.ErrorIs(t, err, ErrInvalidArguments)
		})
	}
}

func TestVerifyBindingChecks(t *testing.T) {
	parties := newTestParties(t, testIssuer)
	_, presentation := issueAndRelease(t, parties, Branch{"sub": Leaf{Value: true}})

	t.Run("wrong nonce", func(t *testing.T) {
		verifier := NewVerifier(parties.issuerPub, testIssuer,
			WithHolderBinding(parties.holderPub, testAudience, "different-nonce"),
		)
		_, err := verifier.Verify(presentation)
		require.ErrorIs(t, err, ErrInvalidNonce)
	})

	t.Run("wrong audience", func(t *testing.T) {
		verifier := NewVerifier(parties.issuerPub, testIssuer,
			WithHolderBinding(parties.holderPub, "https://other.example.com", testNonce),
		)
		_, err := verifier.Verify(presentation)
		require.ErrorIs(t, err, ErrInvalidAudience)
	})

	t.Run("wrong holder key", func(t *testing.T) {
		other := newTestParties(t, testIssuer)
		verifier := NewVerifier(parties.issuerPub, testIssuer,
			WithHolderBinding(other.holderPub, testAudience, testNonce),
		)
		_, err := verifier.Verify(presentation)
		require.ErrorIs(t, err, ErrHolderKeyMismatch)
	})

	t.Run("sd-jwt without embedded holder key", func(t *testing.T) {
		cred, err := parties.issuer.Issue(testClaims(), Branch{}, nil)
		require.NoError(t, err)
		release, err := parties.holder.CreateRelease(testNonce, testAudience,
			Branch{"sub": Leaf{Value: true}}, cred.Container)
		require.NoError(t, err)

		verifier := NewVerifier(parties.issuerPub, testIssuer,
			WithHolderBinding(parties.holderPub, testAudience, testNonce),
		)
		_, err = verifier.Verify(CombinedFormat(cred.SDJWT, release.Token))
		require.ErrorIs(t, err, ErrHolderKeyMismatch)
	})
}

// Without holder binding the release is only parsed structurally: its
// signer, audience and nonce all stay unchecked, which permits anonymous
// presentations.
func TestVerifyWithoutHolderBinding(t *testing.T) {
	parties := newTestParties(t, testIssuer)

	cred, err := parties.issuer.Issue(testClaims(), Branch{}, parties.holderPub)
	require.NoError(t, err)
	release, err := parties.holder.CreateRelease("some-other-nonce", "some-other-audience",
		Branch{"given_name": Leaf{Value: true}}, cred.Container)
	require.NoError(t, err)

	verifier := NewVerifier(parties.issuerPub, testIssuer)

	disclosed, err := verifier.Verify(CombinedFormat(cred.SDJWT, release.Token))
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"given_name": "John"}, disclosed.ToMap())
}

func TestVerifyIssuerChecks(t *testing.T) {
	parties := newTestParties(t, testIssuer)
	_, presentation := issueAndRelease(t, parties, Branch{"sub": Leaf{Value: true}})

	t.Run("wrong expected issuer", func(t *testing.T) {
		verifier := NewVerifier(parties.issuerPub, "https://rogue.example.com")
		_, err := verifier.Verify(presentation)
		require.ErrorIs(t, err, ErrInvalidIssuer)
	})

	t.Run("wrong issuer key", func(t *testing.T) {
		other := newTestParties(t, testIssuer)
		verifier := NewVerifier(other.issuerPub, testIssuer)
		_, err := verifier.Verify(presentation)
		require.ErrorIs(t, err, token.ErrSignatureInvalid)
	})
}

func TestVerifyMissingCommitments(t *testing.T) {
	parties := newTestParties(t, testIssuer, WithClaimsKey("sd_digests"))

	cred, err := parties.issuer.Issue(testClaims(), Branch{}, nil)
	require.NoError(t, err)
	holder := NewHolder(parties.holderSigner, WithReleaseClaimsKey("sd_digests"))
	release, err := holder.CreateRelease(testNonce, testAudience,
		Branch{"sub": Leaf{Value: true}}, cred.Container)
	require.NoError(t, err)
	presentation := CombinedFormat(cred.SDJWT, release.Token)

	t.Run("claims key mismatch", func(t *testing.T) {
		verifier := NewVerifier(parties.issuerPub, testIssuer)
		_, err := verifier.Verify(presentation)
		require.ErrorIs(t, err, ErrMissingCommitments)
	})

	t.Run("configured claims key verifies", func(t *testing.T) {
		verifier := NewVerifier(parties.issuerPub, testIssuer,
			WithPresentationClaimsKey("sd_digests"),
		)
		disclosed, err := verifier.Verify(presentation)
		require.NoError(t, err)
		require.Equal(t, map[string]interface{}{"sub": "abc"}, disclosed.ToMap())
	})
}

// A release carrying a claim the issuer never committed to is a hard
// structural failure, not a skip.
func TestVerifyReleaseWithoutCommitment(t *testing.T) {
	parties := newTestParties(t, testIssuer)

	cred, err := parties.issuer.Issue(testClaims(), Branch{}, parties.holderPub)
	require.NoError(t, err)

	rawEntry, err := RawClaim("some-salt", "sneaky")
	require.NoError(t, err)

	tests := []struct {
		name     string
		released interface{}
	}{
		{
			name:     "unknown claim name",
			released: map[string]interface{}{"passport_number": rawEntry},
		},
		{
			name:     "leaf where commitments hold a branch",
			released: map[string]interface{}{"address": rawEntry},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := map[string]interface{}{
				"nonce":          testNonce,
				"aud":            testAudience,
				DefaultClaimsKey: tt.released,
			}
			raw, err := json.Marshal(payload)
			require.NoError(t, err)
			forged, err := parties.holderSigner.Sign(raw)
			require.NoError(t, err)

			verifier := NewVerifier(parties.issuerPub, testIssuer,
				WithHolderBinding(parties.holderPub, testAudience, testNonce),
			)
			_, err = verifier.Verify(CombinedFormat(cred.SDJWT, forged))
			require.ErrorIs(t, err, ErrStructureMismatch)
		})
	}
}

// Swapping the container of a second issuance under the first SD-JWT must
// fail: the salts differ, so every commitment differs.
func TestVerifyCrossIssuanceContainer(t *testing.T) {
	parties := newTestParties(t, testIssuer)

	first, err := parties.issuer.Issue(testClaims(), Branch{}, parties.holderPub)
	require.NoError(t, err)
	second, err := parties.issuer.Issue(testClaims(), Branch{}, parties.holderPub)
	require.NoError(t, err)

	release, err := parties.holder.CreateRelease(testNonce, testAudience,
		Branch{"given_name": Leaf{Value: true}}, second.Container)
	require.NoError(t, err)

	verifier := NewVerifier(parties.issuerPub, testIssuer,
		WithHolderBinding(parties.holderPub, testAudience, testNonce),
	)
	_, err = verifier.Verify(CombinedFormat(first.SDJWT, release.Token))
	require.ErrorIs(t, err, ErrCommitmentMismatch)
}
