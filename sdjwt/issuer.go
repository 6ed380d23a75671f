package sdjwt

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/go-jose/go-jose/v3"
)

const (
	// DefaultClaimsKey is the payload field carrying the commitment tree
	// in the SD-JWT and the disclosure trees derived from it.
	DefaultClaimsKey = "sd_claims"

	// DefaultExpiresIn is how long an issued SD-JWT stays valid when the
	// issuer is not configured otherwise.
	DefaultExpiresIn = 15 * time.Minute
)

// Signer is the external signing primitive. token.Signer implements it;
// tests may substitute a fake.
type Signer interface {
	Sign(payload []byte) (string, error)
}

// IssuerOption configures an Issuer.
type IssuerOption func(*Issuer)

// WithSaltSource replaces the salt randomness source. The default is
// crypto/rand.Reader; a seeded substitute makes issuance deterministic
// for tests. Never substitute a non-CSPRNG source in production.
func WithSaltSource(random io.Reader) IssuerOption {
	return func(i *Issuer) {
		i.random = random
	}
}

// WithClock replaces the issuance timestamp source.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.now = now
	}
}

// WithExpiresIn sets the token lifetime used to derive exp from iat.
func WithExpiresIn(d time.Duration) IssuerOption {
	return func(i *Issuer) {
		i.expiresIn = d
	}
}

// WithClaimsKey sets the payload field name for the commitment tree.
func WithClaimsKey(name string) IssuerOption {
	return func(i *Issuer) {
		i.claimsKey = name
	}
}

// Issuer creates SD-JWT credentials: a signed token committing to the user
// claims, and the disclosure container the holder keeps to open those
// commitments later.
type Issuer struct {
	id        string
	signer    Signer
	random    io.Reader
	now       func() time.Time
	expiresIn time.Duration
	claimsKey string
}

// NewIssuer builds an Issuer with identity id signing through signer.
func NewIssuer(id string, signer Signer, opts ...IssuerOption) *Issuer {
	issuer := &Issuer{
		id:        id,
		signer:    signer,
		random:    rand.Reader,
		now:       time.Now,
		expiresIn: DefaultExpiresIn,
		claimsKey: DefaultClaimsKey,
	}

	for _, opt := range opts {
		opt(issuer)
	}
	return issuer
}

// Credential is the result of issuance. SDJWT goes to the verifier inside
// a presentation; Container stays with the holder and is never shown to a
// verifier directly. Payload is the unsigned view of the SD-JWT body, kept
// for inspection and demo output.
type Credential struct {
	SDJWT     string
	Container string
	Payload   map[string]interface{}
}

// Issue commits to claims and returns the signed SD-JWT plus the holder's
// disclosure container. structure only distinguishes nested objects from
// leaves and may be empty; holderKey, when given, is embedded as sub_jwk
// for holder binding. Fresh salts are drawn for every call, so issuing the
// same claims twice never yields the same commitments.
func (i *Issuer) Issue(claims, structure Branch, holderKey *jose.JSONWebKey) (*Credential, error) {
	salts, err := WalkByStructure(structure, claims, func(string, Leaf, *Leaf) (Node, error) {
		salt, err := GenerateSalt(i.random)
		if err != nil {
			return nil, err
		}
		return Leaf{Value: salt}, nil
	})
	if err != nil {
		return nil, err
	}

	commitments, err := WalkByStructure(salts, claims, commitLeaf(HashClaim))
	if err != nil {
		return nil, err
	}

	disclosures, err := WalkByStructure(salts, claims, commitLeaf(RawClaim))
	if err != nil {
		return nil, err
	}

	iat := i.now().UTC().Unix()
	payload := map[string]interface{}{
		"iss":       i.id,
		"iat":       iat,
		"exp":       iat + int64(i.expiresIn/time.Second),
		i.claimsKey: commitments,
	}
	if holderKey != nil {
		payload["sub_jwk"] = holderKey
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize sd-jwt payload: %w", err)
	}

	sdJWT, err := i.signer.Sign(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to sign sd-jwt: %w", err)
	}

	container, err := encodeContainer(i.claimsKey, disclosures)
	if err != nil {
		return nil, err
	}

	return &Credential{
		SDJWT:     sdJWT,
		Container: container,
		Payload:   payload,
	}, nil
}

// commitLeaf lifts a (salt, value) codec function into a LeafFunc paired
// against the salt tree. The salt tree was just produced over the same
// claims, so a missing salt means the trees diverged.
func commitLeaf(encode func(salt string, value interface{}) (string, error)) LeafFunc {
	return func(name string, claim Leaf, salt *Leaf) (Node, error) {
		if salt == nil {
			return nil, fmt.Errorf("claim %q has no salt: %w", name, ErrStructureMismatch)
		}
		saltStr, ok := salt.Value.(string)
		if !ok {
			return nil, fmt.Errorf("salt for claim %q is not a string: %w", name, ErrStructureMismatch)
		}

		out, err := encode(saltStr, claim.Value)
		if err != nil {
			return nil, err
		}
		return Leaf{Value: out}, nil
	}
}
