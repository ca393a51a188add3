// fraud.go - Double-spend forensics over two RIS vectors of the same coin.
//
// Two honest acceptances challenge independent random sides, so with K pairs
// they disagree somewhere with probability 1-2^-K. Where they disagree the two
// revealed halves XOR to the identity string. Vectors that agree everywhere
// are a replayed RIS, which points at the merchant instead.

package ecash

import (
	"fmt"

	"github.com/pkg/errors"
)

// DefaultMinEvidenceLength is the smallest K for which two fully agreeing
// vectors are treated as a replay rather than chance.
const DefaultMinEvidenceLength = 8

// VerdictKind is the outcome of comparing two RIS vectors.
type VerdictKind int

const (
	Inconclusive VerdictKind = iota
	DoubleSpendDetected
	MerchantFraudDetected
)

func (k VerdictKind) String() string {
	switch k {
	case DoubleSpendDetected:
		return "double-spend"
	case MerchantFraudDetected:
		return "merchant-fraud"
	default:
		return "inconclusive"
	}
}

// Verdict is the detector's finding for one coin.
type Verdict struct {
	Kind  VerdictKind
	GUID  string
	Owner string // set only for DoubleSpendDetected
	Index int    // first index whose opposite halves revealed the owner, -1 otherwise
}

func (v Verdict) String() string {
	switch v.Kind {
	case DoubleSpendDetected:
		return fmt.Sprintf("coin %s double-spent by %q (index %d)", v.GUID, v.Owner, v.Index)
	case MerchantFraudDetected:
		return fmt.Sprintf("coin %s: identical identity shares submitted twice, merchant is cheating", v.GUID)
	default:
		return fmt.Sprintf("coin %s: inconclusive", v.GUID)
	}
}

// Detector compares RIS vectors collected for one coin.
type Detector struct {
	// MinEvidenceLength is the K from which agreement on every index counts as
	// a replay. Zero means DefaultMinEvidenceLength.
	MinEvidenceLength int
}

// NewDetector returns a detector with the default evidence threshold.
func NewDetector() *Detector {
	return &Detector{MinEvidenceLength: DefaultMinEvidenceLength}
}

// DetermineCheater decides who misbehaved given two RIS vectors collected for
// guid. Vectors for another coin fail with ErrMismatchedCoin and vectors of
// unequal length with ErrLengthMismatch. It never reports an identity it did
// not decode from two opposite halves.
func (d *Detector) DetermineCheater(guid string, ris1, ris2 *RIS) (Verdict, error) {
	v := Verdict{Kind: Inconclusive, GUID: guid, Index: -1}
	if ris1 == nil || ris2 == nil {
		return v, errors.Wrap(ErrLengthMismatch, "missing identity share vector")
	}
	if ris1.GUID() != guid || ris2.GUID() != guid {
		return v, errors.Wrapf(ErrMismatchedCoin, "want %s, got %s and %s", guid, ris1.GUID(), ris2.GUID())
	}
	if ris1.Len() != ris2.Len() {
		return v, errors.Wrapf(ErrLengthMismatch, "vectors of %d and %d shares", ris1.Len(), ris2.Len())
	}

	differ := false
	for i := 0; i < ris1.Len(); i++ {
		s1, s2 := ris1.Share(i), ris2.Share(i)
		if s1.Side == s2.Side {
			continue
		}
		differ = true
		owner, err := Recover(s1, s2)
		if err != nil {
			continue
		}
		v.Kind, v.Owner, v.Index = DoubleSpendDetected, owner, i
		return v, nil
	}

	if !differ && ris1.Len() > 0 && ris1.Len() >= d.minEvidence() {
		v.Kind = MerchantFraudDetected
	}
	return v, nil
}

func (d *Detector) minEvidence() int {
	if d == nil || d.MinEvidenceLength <= 0 {
		return DefaultMinEvidenceLength
	}
	return d.MinEvidenceLength
}

// Recover XORs two opposite halves of one index back into the identity
// string and returns the owner it encodes.
func Recover(a, b Share) (string, error) {
	if a.Side == b.Side {
		return "", errors.Errorf("both shares are %s halves", a.Side)
	}
	combined, err := a.Value.Xor(b.Value)
	if err != nil {
		return "", err
	}
	return decodeIdentity(combined)
}
