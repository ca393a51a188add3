// coin.go - Coin type, identity commitments and the canonical signed message.
//
// A Coin is a bank-signed promise of value. It carries K pairs of hash
// commitments to identity shares; the shares themselves stay with the spender
// until a merchant challenges one side of an index.

package ecash

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"digicash/internal/blindrsa"
)

const (
	// DefaultRISLength is the number of identity-share pairs per coin.
	DefaultRISLength = 10
	// DefaultBankTag prefixes every canonical coin string.
	DefaultBankTag = "ELECTRONIC_PIGGYBANK"

	fieldSep = "-"
	hashSep  = ","
)

// Params are the protocol parameters shared by the bank, spenders and merchants.
type Params struct {
	RISLength int    // K, number of identity-share pairs
	BankTag   string // leading marker of the canonical string
	Hash      Hasher // commitment hash
}

// DefaultParams returns K=10, the default bank tag and SHA-256 commitments.
func DefaultParams() *Params {
	return &Params{
		RISLength: DefaultRISLength,
		BankTag:   DefaultBankTag,
		Hash:      SHA256(),
	}
}

// Validate rejects parameters no coin can be built or parsed with.
func (p *Params) Validate() error {
	if p == nil || p.Hash == nil {
		return errors.Wrap(ErrConstruction, "protocol parameters are incomplete")
	}
	if p.RISLength < 1 {
		return errors.Wrapf(ErrConstruction, "RIS length must be at least 1, got %d", p.RISLength)
	}
	if p.BankTag == "" || strings.ContainsAny(p.BankTag, fieldSep+hashSep) {
		return errors.Wrapf(ErrConstruction, "bank tag %q is empty or contains a delimiter", p.BankTag)
	}
	return nil
}

// Coin is the public coin record. It never holds identity shares or the
// blinding factor.
type Coin struct {
	Owner       string   // local label of the creating spender, never signed or sent
	Amount      uint64   // positive value
	GUID        string   // 32 hex chars, stable across all spends
	N           *big.Int // bank modulus
	E           *big.Int // bank public exponent
	LeftHashes  []Buffer // commitments to left shares
	RightHashes []Buffer // commitments to right shares
	Blinded     *big.Int // blinded canonical hash handed to the bank
	Signature   *big.Int // unblinded bank signature
}

// Secrets are the spender-only values behind a coin's commitments.
type Secrets struct {
	identity Buffer
	left     []Buffer
	right    []Buffer
}

// share returns the committed value on one side of index i.
func (s *Secrets) share(i int, side Side) Buffer {
	if side == Left {
		return s.left[i]
	}
	return s.right[i]
}

// NewCoin builds an unsigned coin for owner bound to the bank key pub. The
// returned Secrets must stay with the caller.
func NewCoin(owner string, amount uint64, pub *blindrsa.PublicKey, src Source, params *Params) (*Coin, *Secrets, error) {
	if err := params.Validate(); err != nil {
		return nil, nil, err
	}
	if amount == 0 {
		return nil, nil, errors.Wrap(ErrConstruction, "amount must be positive")
	}
	if owner == "" {
		return nil, nil, errors.Wrap(ErrConstruction, "owner must not be empty")
	}
	if pub == nil || pub.N == nil || pub.E == nil {
		return nil, nil, errors.Wrap(ErrConstruction, "bank public key is missing")
	}
	if src == nil {
		src = SystemSource()
	}

	id, err := uuid.NewRandomFromReader(src)
	if err != nil {
		return nil, nil, errors.Wrap(err, "draw coin guid")
	}
	secret, err := randomBytes(src, identitySecretSize)
	if err != nil {
		return nil, nil, err
	}
	identity := encodeIdentity(owner, secret)
	left, right, err := splitIdentity(src, identity, params.RISLength)
	if err != nil {
		return nil, nil, err
	}

	coin := &Coin{
		Owner:       owner,
		Amount:      amount,
		GUID:        strings.ReplaceAll(id.String(), "-", ""),
		N:           new(big.Int).Set(pub.N),
		E:           new(big.Int).Set(pub.E),
		LeftHashes:  make([]Buffer, params.RISLength),
		RightHashes: make([]Buffer, params.RISLength),
	}
	for i := 0; i < params.RISLength; i++ {
		coin.LeftHashes[i] = Buffer(params.Hash.Sum(left[i]))
		coin.RightHashes[i] = Buffer(params.Hash.Sum(right[i]))
	}
	return coin, &Secrets{identity: identity, left: left, right: right}, nil
}

// PublicKey is the bank key the coin is bound to.
func (c *Coin) PublicKey() *blindrsa.PublicKey {
	return &blindrsa.PublicKey{N: c.N, E: c.E}
}

// Canonical is the message the bank signs: tag, amount, guid and both
// commitment lists.
func (c *Coin) Canonical(tag string) string {
	return Canonical{
		Tag:         tag,
		Amount:      c.Amount,
		GUID:        c.GUID,
		LeftHashes:  c.LeftHashes,
		RightHashes: c.RightHashes,
	}.String()
}

// Public returns a copy without the owner label, the form handed to
// merchants.
func (c *Coin) Public() *Coin {
	return &Coin{
		Amount:      c.Amount,
		GUID:        c.GUID,
		N:           cloneInt(c.N),
		E:           cloneInt(c.E),
		LeftHashes:  cloneBuffers(c.LeftHashes),
		RightHashes: cloneBuffers(c.RightHashes),
		Signature:   cloneInt(c.Signature),
	}
}

// Canonical is the parsed form of a canonical coin string.
type Canonical struct {
	Tag         string
	Amount      uint64
	GUID        string
	LeftHashes  []Buffer
	RightHashes []Buffer
}

// String joins the fields as tag-amount-guid-left0,left1,...-right0,right1,...
func (c Canonical) String() string {
	return strings.Join([]string{
		c.Tag,
		strconv.FormatUint(c.Amount, 10),
		c.GUID,
		joinBuffers(c.LeftHashes),
		joinBuffers(c.RightHashes),
	}, fieldSep)
}

// ParseCanonical is the structural inverse of Canonical.String. It rejects a
// tag other than wantTag, a wrong field count, a zero amount, a malformed
// guid, non-hex or odd-sized hashes, and commitment lists of unequal or zero
// length.
func ParseCanonical(s, wantTag string, hashSize int) (*Canonical, error) {
	fields := strings.Split(s, fieldSep)
	if len(fields) != 5 {
		return nil, errors.Wrapf(ErrMalformedCoin, "want 5 fields, got %d", len(fields))
	}
	if fields[0] != wantTag {
		return nil, errors.Wrapf(ErrMalformedCoin, "bank tag: expected %s, got %s", wantTag, fields[0])
	}
	amount, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil || amount == 0 || strconv.FormatUint(amount, 10) != fields[1] {
		return nil, errors.Wrapf(ErrMalformedCoin, "amount %q", fields[1])
	}
	if !validGUID(fields[2]) {
		return nil, errors.Wrapf(ErrMalformedCoin, "guid %q", fields[2])
	}
	left, err := splitBuffers(fields[3], hashSize)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedCoin, "left hashes: %v", err)
	}
	right, err := splitBuffers(fields[4], hashSize)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedCoin, "right hashes: %v", err)
	}
	if len(left) != len(right) {
		return nil, errors.Wrapf(ErrMalformedCoin, "%d left hashes but %d right hashes", len(left), len(right))
	}
	return &Canonical{
		Tag:         fields[0],
		Amount:      amount,
		GUID:        fields[2],
		LeftHashes:  left,
		RightHashes: right,
	}, nil
}

func validGUID(s string) bool {
	if len(s) != 32 {
		return false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}

func joinBuffers(bs []Buffer) string {
	parts := make([]string, len(bs))
	for i, b := range bs {
		parts[i] = b.String()
	}
	return strings.Join(parts, hashSep)
}

func splitBuffers(s string, size int) ([]Buffer, error) {
	if s == "" {
		return nil, errors.New("empty commitment list")
	}
	parts := strings.Split(s, hashSep)
	out := make([]Buffer, len(parts))
	for i, p := range parts {
		if p != strings.ToLower(p) {
			return nil, errors.Errorf("hash %d is not lowercase hex", i)
		}
		b, err := DecodeBuffer(p, size)
		if err != nil {
			return nil, errors.Wrapf(err, "hash %d", i)
		}
		out[i] = b
	}
	return out, nil
}

func cloneBuffers(bs []Buffer) []Buffer {
	if bs == nil {
		return nil
	}
	out := make([]Buffer, len(bs))
	for i, b := range bs {
		out[i] = b.Clone()
	}
	return out
}

func cloneInt(x *big.Int) *big.Int {
	if x == nil {
		return nil
	}
	return new(big.Int).Set(x)
}
