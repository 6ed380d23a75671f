package sdjwt

import "errors"

// Every failure of issuance, release or verification wraps one of these
// sentinel errors; callers match with errors.Is. All of them are terminal
// for the operation that raised them, nothing is retried here.
var (
	// ErrStructureMismatch reports a shape conflict between two claim
	// trees that must be congruent (leaf on one side, branch on the
	// other, or a claim with no counterpart).
	ErrStructureMismatch = errors.New("claim structure mismatch")

	// ErrMalformedPresentation reports a combined presentation that does
	// not consist of two three-segment tokens.
	ErrMalformedPresentation = errors.New("malformed combined presentation")

	// ErrMalformedDisclosure reports a disclosed entry that is not a
	// two-element [salt, value] array.
	ErrMalformedDisclosure = errors.New("malformed disclosure")

	// ErrCommitmentMismatch reports a disclosed entry whose hash does not
	// equal the issuer's commitment.
	ErrCommitmentMismatch = errors.New("commitment mismatch")

	// ErrInvalidIssuer reports an issuer claim different from the one the
	// verifier expects.
	ErrInvalidIssuer = errors.New("invalid issuer")

	// ErrInvalidAudience reports an audience different from the one the
	// verifier supplied to the holder.
	ErrInvalidAudience = errors.New("invalid audience")

	// ErrInvalidNonce reports a nonce different from the one the verifier
	// supplied to the holder.
	ErrInvalidNonce = errors.New("invalid nonce")

	// ErrHolderKeyMismatch reports that the holder key embedded in the
	// SD-JWT is absent or differs from the key the verifier trusts.
	ErrHolderKeyMismatch = errors.New("holder key mismatch")

	// ErrMissingCommitments reports a token payload without a selective
	// disclosure claims field.
	ErrMissingCommitments = errors.New("no selective disclosure claims in token")

	// ErrInvalidArguments reports a verification call with holder binding
	// requested but no expected audience or nonce to check against.
	ErrInvalidArguments = errors.New("holder binding requires expected audience and nonce")
)
