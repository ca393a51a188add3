// bank.go - The issuing bank and the blind signature service boundary.
//
// A Bank owns exactly one key pair. It signs blinded values without looking at
// them; all content checks happen at acceptance time after unblinding.

package ecash

import (
	"io"
	"math/big"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"digicash/internal/blindrsa"
)

// DefaultKeyBits is the bank modulus size.
const DefaultKeyBits = 2048

// BlindSignatureService is the opaque RSA blind signature primitive.
type BlindSignatureService interface {
	GenerateKey(random io.Reader, bits int) (*blindrsa.PrivateKey, error)
	Blind(random io.Reader, msg []byte, pub *blindrsa.PublicKey) (blinded, r *big.Int, err error)
	Sign(blinded *big.Int, priv *blindrsa.PrivateKey) (*big.Int, error)
	Unblind(blindSig, r *big.Int, pub *blindrsa.PublicKey) (*big.Int, error)
	Verify(sig *big.Int, msg []byte, pub *blindrsa.PublicKey) bool
}

// Issuer signs blinded coins. *Bank implements it.
type Issuer interface {
	PublicKey() *blindrsa.PublicKey
	Sign(blinded *big.Int) (*big.Int, error)
}

// Option configures a Bank, Spender, Merchant or Ledger.
type Option func(*options)

type options struct {
	service BlindSignatureService
	logger  zerolog.Logger
	metrics Observer
}

func buildOptions(opts []Option) options {
	o := options{
		service: blindrsa.Scheme{},
		logger:  zerolog.Nop(),
		metrics: nopObserver{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithService replaces the blind signature primitive.
func WithService(s BlindSignatureService) Option {
	return func(o *options) { o.service = s }
}

// WithLogger attaches a structured logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver attaches a metrics observer.
func WithObserver(m Observer) Option {
	return func(o *options) { o.metrics = m }
}

// Bank holds the signing key of one issuer.
type Bank struct {
	key     *blindrsa.PrivateKey
	service BlindSignatureService
	logger  zerolog.Logger
	metrics Observer
	issued  atomic.Uint64
}

// NewBank generates a fresh key pair of the given size. A failed or unusable
// key is fatal to issuance and is reported as ErrKeyGeneration.
func NewBank(src Source, bits int, opts ...Option) (*Bank, error) {
	o := buildOptions(opts)
	if src == nil {
		src = SystemSource()
	}
	key, err := o.service.GenerateKey(src, bits)
	if err != nil {
		return nil, errors.Wrapf(ErrKeyGeneration, "%d-bit key: %v", bits, err)
	}
	if key == nil || key.D == nil || key.N == nil || key.E == nil {
		return nil, errors.Wrap(ErrKeyGeneration, "private exponent d is missing")
	}
	b := &Bank{
		key:     key,
		service: o.service,
		logger:  o.logger.With().Str("component", "bank").Logger(),
		metrics: o.metrics,
	}
	b.logger.Info().Int("bits", key.N.BitLen()).Msg("bank key generated")
	return b, nil
}

// PublicKey returns a copy of the verifying key.
func (b *Bank) PublicKey() *blindrsa.PublicKey {
	return &blindrsa.PublicKey{N: new(big.Int).Set(b.key.N), E: new(big.Int).Set(b.key.E)}
}

// Sign signs a blinded coin hash. The bank cannot and does not inspect it.
func (b *Bank) Sign(blinded *big.Int) (*big.Int, error) {
	sig, err := b.service.Sign(blinded, b.key)
	if err != nil {
		return nil, errors.Wrapf(ErrSigning, "%v", err)
	}
	n := b.issued.Add(1)
	b.metrics.CoinIssued()
	b.logger.Debug().Uint64("issued", n).Msg("blinded coin signed")
	return sig, nil
}

// Issued counts signatures handed out.
func (b *Bank) Issued() uint64 {
	return b.issued.Load()
}

// SelfTest signs and verifies a throwaway message end to end. It does not
// count as issuance.
func (b *Bank) SelfTest(src Source) error {
	if src == nil {
		src = SystemSource()
	}
	msg := []byte(DefaultBankTag + "-self-test")
	pub := &b.key.PublicKey
	blinded, r, err := b.service.Blind(src, msg, pub)
	if err != nil {
		return errors.Wrapf(ErrBlinding, "%v", err)
	}
	blindSig, err := b.service.Sign(blinded, b.key)
	if err != nil {
		return errors.Wrapf(ErrSigning, "%v", err)
	}
	sig, err := b.service.Unblind(blindSig, r, pub)
	if err != nil {
		return errors.Wrapf(ErrUnblinding, "%v", err)
	}
	if !b.service.Verify(sig, msg, pub) {
		return errors.Wrap(ErrInvalidSignature, "self-test signature does not verify")
	}
	return nil
}
