package sdjwt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-jose/go-jose/v3"
	"github.com/mitchellh/mapstructure"

	"github.com/kokukuma/sdjwt-demo/token"
)

const (
	tokenParts        = 3
	presentationParts = 2 * tokenParts
)

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithHolderBinding makes the verifier require proof that the presenter
// controls key: the release signature is checked with it, the key must
// equal the sub_jwk the issuer embedded, and the release must carry the
// given audience and nonce. Without this option the release is only parsed
// structurally and audience/nonce stay unchecked, which permits anonymous
// presentations.
func WithHolderBinding(key *jose.JSONWebKey, audience, nonce string) VerifierOption {
	return func(v *Verifier) {
		v.holderKey = key
		v.expectedAudience = audience
		v.expectedNonce = nonce
	}
}

// WithPresentationClaimsKey sets the payload field name for commitment and
// disclosure trees. Must match the claims key the issuer used.
func WithPresentationClaimsKey(name string) VerifierOption {
	return func(v *Verifier) {
		v.claimsKey = name
	}
}

// Verifier checks combined presentations: both token signatures, issuer
// identity, optional holder binding, and every disclosed value against the
// issuer's commitments.
type Verifier struct {
	issuerKey        interface{}
	expectedIssuer   string
	claimsKey        string
	holderKey        *jose.JSONWebKey
	expectedAudience string
	expectedNonce    string
}

// NewVerifier builds a Verifier trusting issuerKey for tokens issued by
// expectedIssuer. issuerKey is anything go-jose accepts as a verification
// key (*ecdsa.PublicKey, JWK, ...).
func NewVerifier(issuerKey interface{}, expectedIssuer string, opts ...VerifierOption) *Verifier {
	verifier := &Verifier{
		issuerKey:      issuerKey,
		expectedIssuer: expectedIssuer,
		claimsKey:      DefaultClaimsKey,
	}

	for _, opt := range opts {
		opt(verifier)
	}
	return verifier
}

// sdPayload and releasePayload are the fixed fields of the two token
// payloads. The commitment trees live next to them under the configurable
// claims key and are pulled from the raw map instead.
type sdPayload struct {
	Issuer    string                 `mapstructure:"iss"`
	HolderKey map[string]interface{} `mapstructure:"sub_jwk"`
}

type releasePayload struct {
	Nonce    string `mapstructure:"nonce"`
	Audience string `mapstructure:"aud"`
}

// Verify checks a combined presentation end to end and returns the tree of
// disclosed claim values, the verifier's trusted view of exactly what the
// holder chose to reveal. Any failure aborts the whole check; there is no
// partial acceptance.
func (v *Verifier) Verify(presentation string) (Branch, error) {
	parts := strings.Split(presentation, ".")
	if len(parts) != presentationParts {
		return nil, fmt.Errorf("presentation has %d segments, want %d: %w", len(parts), presentationParts, ErrMalformedPresentation)
	}

	if v.holderKey != nil && (v.expectedAudience == "" || v.expectedNonce == "") {
		return nil, ErrInvalidArguments
	}

	commitments, embeddedKey, err := v.verifySDJWT(strings.Join(parts[:tokenParts], "."))
	if err != nil {
		return nil, err
	}

	released, err := v.verifyRelease(strings.Join(parts[tokenParts:], "."), embeddedKey)
	if err != nil {
		return nil, err
	}

	return WalkByStructure(commitments, released, verifyLeaf)
}

func (v *Verifier) verifySDJWT(compact string) (Branch, map[string]interface{}, error) {
	raw, err := token.Verify(compact, v.issuerKey)
	if err != nil {
		return nil, nil, fmt.Errorf("sd-jwt: %w", err)
	}

	var p sdPayload
	fields, err := decodePayload(raw, &p)
	if err != nil {
		return nil, nil, fmt.Errorf("sd-jwt: %w", err)
	}

	if p.Issuer != v.expectedIssuer {
		return nil, nil, fmt.Errorf("sd-jwt issued by %q, want %q: %w", p.Issuer, v.expectedIssuer, ErrInvalidIssuer)
	}

	commitments, err := claimsTree(fields, v.claimsKey)
	if err != nil {
		return nil, nil, fmt.Errorf("sd-jwt: %w", err)
	}

	return commitments, p.HolderKey, nil
}

func (v *Verifier) verifyRelease(compact string, embeddedKey map[string]interface{}) (Branch, error) {
	var raw []byte
	var err error

	if v.holderKey != nil {
		if err := v.checkHolderKey(embeddedKey); err != nil {
			return nil, err
		}
		raw, err = token.Verify(compact, v.holderKey)
	} else {
		raw, err = token.ParseUnverified(compact)
	}
	if err != nil {
		return nil, fmt.Errorf("release: %w", err)
	}

	var p releasePayload
	fields, err := decodePayload(raw, &p)
	if err != nil {
		return nil, fmt.Errorf("release: %w", err)
	}

	if v.holderKey != nil {
		if p.Audience != v.expectedAudience {
			return nil, fmt.Errorf("release for audience %q, want %q: %w", p.Audience, v.expectedAudience, ErrInvalidAudience)
		}
		if p.Nonce != v.expectedNonce {
			return nil, fmt.Errorf("release nonce %q, want %q: %w", p.Nonce, v.expectedNonce, ErrInvalidNonce)
		}
	}

	released, err := claimsTree(fields, v.claimsKey)
	if err != nil {
		return nil, fmt.Errorf("release: %w", err)
	}
	return released, nil
}

func (v *Verifier) checkHolderKey(embeddedKey map[string]interface{}) error {
	if embeddedKey == nil {
		return fmt.Errorf("sd-jwt carries no holder key: %w", ErrHolderKeyMismatch)
	}

	raw, err := json.Marshal(embeddedKey)
	if err != nil {
		return fmt.Errorf("failed to serialize embedded holder key: %w", ErrHolderKeyMismatch)
	}

	var embedded jose.JSONWebKey
	if err := embedded.UnmarshalJSON(raw); err != nil {
		return fmt.Errorf("failed to parse embedded holder key: %w", ErrHolderKeyMismatch)
	}

	if !token.KeysEqual(v.holderKey, &embedded) {
		return fmt.Errorf("sub_jwk does not match the holder public key: %w", ErrHolderKeyMismatch)
	}
	return nil
}

// decodePayload parses a token payload into its raw field map and maps the
// fixed fields onto out.
func decodePayload(raw []byte, out interface{}) (map[string]interface{}, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to parse payload: %w", ErrMalformedPresentation)
	}

	if err := mapstructure.Decode(fields, out); err != nil {
		return nil, fmt.Errorf("unexpected payload field types: %w", ErrMalformedPresentation)
	}
	return fields, nil
}

// claimsTree extracts the claim tree stored under claimsKey.
func claimsTree(fields map[string]interface{}, claimsKey string) (Branch, error) {
	raw, ok := fields[claimsKey]
	if !ok {
		return nil, ErrMissingCommitments
	}

	nested, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("claims field %q is not an object: %w", claimsKey, ErrMalformedPresentation)
	}
	return FromMap(nested), nil
}

// verifyLeaf re-derives the commitment for one released entry. During this
// walk the commitment tree is complete and the release tree is the subset,
// so a released claim without a commitment at the same path is a hard
// structural failure, never skipped.
func verifyLeaf(name string, released Leaf, commitment *Leaf) (Node, error) {
	if commitment == nil {
		return nil, fmt.Errorf("released claim %q has no commitment: %w", name, ErrStructureMismatch)
	}

	raw, ok := released.Value.(string)
	if !ok {
		return nil, fmt.Errorf("released claim %q is not a string: %w", name, ErrMalformedDisclosure)
	}
	expected, ok := commitment.Value.(string)
	if !ok {
		return nil, fmt.Errorf("commitment for claim %q is not a string: %w", name, ErrMalformedPresentation)
	}

	value, err := VerifyClaim(raw, expected)
	if err != nil {
		return nil, fmt.Errorf("claim %q: %w", name, err)
	}
	return Leaf{Value: value}, nil
}
