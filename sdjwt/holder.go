package sdjwt

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// HolderOption configures a Holder.
type HolderOption func(*Holder)

// WithReleaseClaimsKey sets the payload field name for disclosure trees.
// Must match the claims key the issuer used.
func WithReleaseClaimsKey(name string) HolderOption {
	return func(h *Holder) {
		h.claimsKey = name
	}
}

// Holder builds signed release tokens from a stored disclosure container
// and the subset of claims its owner agrees to reveal.
type Holder struct {
	signer    Signer
	claimsKey string
}

// NewHolder builds a Holder signing releases through signer.
func NewHolder(signer Signer, opts ...HolderOption) *Holder {
	holder := &Holder{
		signer:    signer,
		claimsKey: DefaultClaimsKey,
	}

	for _, opt := range opts {
		opt(holder)
	}
	return holder
}

// Release is a signed release token plus its unsigned payload view.
type Release struct {
	Token   string
	Payload map[string]interface{}
}

// CreateRelease opens the disclosure container and builds a release token
// carrying the raw disclosure entries for exactly the claims selected in
// disclose. Only the keys of disclose matter, its leaf values are
// placeholders; the released entries always come from the container. A
// selected claim without a stored disclosure fails with
// ErrStructureMismatch.
func (h *Holder) CreateRelease(nonce, audience string, disclose Branch, container string) (*Release, error) {
	stored, err := DecodeContainer(container, h.claimsKey)
	if err != nil {
		return nil, err
	}

	released, err := WalkByStructure(stored, disclose, func(name string, _ Leaf, raw *Leaf) (Node, error) {
		if raw == nil {
			return nil, fmt.Errorf("claim %q has no stored disclosure: %w", name, ErrStructureMismatch)
		}
		return *raw, nil
	})
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"nonce":     nonce,
		"aud":       audience,
		h.claimsKey: released,
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize release payload: %w", err)
	}

	tok, err := h.signer.Sign(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to sign release: %w", err)
	}

	return &Release{Token: tok, Payload: payload}, nil
}

// CombinedFormat joins an SD-JWT and a release token into the six-segment
// combined presentation a verifier consumes.
func CombinedFormat(sdJWT, releaseToken string) string {
	return sdJWT + "." + releaseToken
}

func encodeContainer(claimsKey string, disclosures Branch) (string, error) {
	raw, err := json.Marshal(map[string]Branch{claimsKey: disclosures})
	if err != nil {
		return "", fmt.Errorf("failed to serialize disclosure container: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeContainer recovers the disclosure tree from a holder's container.
// Padding is tolerated so containers survive re-encoding by other tooling.
func DecodeContainer(container, claimsKey string) (Branch, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(container, "="))
	if err != nil {
		return nil, fmt.Errorf("failed to decode disclosure container: %w", ErrMalformedDisclosure)
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, fmt.Errorf("failed to parse disclosure container: %w", ErrMalformedDisclosure)
	}

	msg, ok := wrapper[claimsKey]
	if !ok {
		return nil, fmt.Errorf("disclosure container: %w", ErrMissingCommitments)
	}

	var stored Branch
	if err := json.Unmarshal(msg, &stored); err != nil {
		return nil, fmt.Errorf("failed to parse disclosure tree: %w", ErrMalformedDisclosure)
	}
	return stored, nil
}
