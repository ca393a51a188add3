package ecash

import (
	"github.com/pkg/errors"
)

// Error kinds. Callers match them with errors.Is; every returned error wraps
// exactly one kind with context naming the invariant that failed.
var (
	// ErrKeyGeneration aborts issuance setup. It is never retried.
	ErrKeyGeneration = errors.New("key generation failed")
	// ErrConstruction rejects coin parameters before any cryptography runs.
	ErrConstruction = errors.New("invalid coin parameters")
	ErrSigning      = errors.New("blind signing failed")
	ErrBlinding     = errors.New("blinding failed")
	ErrUnblinding   = errors.New("unblinding failed")

	// ErrInvalidSignature and ErrHashMismatch are acceptance-time fraud signals.
	ErrInvalidSignature = errors.New("invalid coin signature")
	ErrHashMismatch     = errors.New("revealed share does not match commitment")

	ErrMalformedCoin  = errors.New("malformed coin")
	ErrLengthMismatch = errors.New("length mismatch")
	ErrMismatchedCoin = errors.New("identity shares belong to different coins")

	// ErrParamsMismatch is a validly signed coin built for a different RIS
	// length than the verifier is configured with.
	ErrParamsMismatch = errors.New("coin parameters differ from verifier parameters")

	// ErrForgedRIS marks a deposit whose shares do not open the coin's
	// commitments. Only the depositing merchant can have produced it.
	ErrForgedRIS = errors.New("deposited shares do not match coin commitments")

	ErrUnknownCoin         = errors.New("unknown coin")
	ErrDuplicateChallenge  = errors.New("index already challenged")
	ErrChallengeOutOfRange = errors.New("challenge index out of range")
)

// Party names who an error points at.
type Party string

const (
	PartySpender  Party = "spender"
	PartyMerchant Party = "merchant"
	PartySystem   Party = "system"
)

// Culprit classifies err so operators can tell spender fraud from merchant
// fraud from misconfiguration.
func Culprit(err error) Party {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidSignature),
		errors.Is(err, ErrHashMismatch),
		errors.Is(err, ErrMalformedCoin):
		return PartySpender
	case errors.Is(err, ErrDuplicateChallenge),
		errors.Is(err, ErrChallengeOutOfRange),
		errors.Is(err, ErrMismatchedCoin),
		errors.Is(err, ErrForgedRIS):
		return PartyMerchant
	case errors.Is(err, ErrParamsMismatch):
		return PartySystem
	default:
		return PartySystem
	}
}
