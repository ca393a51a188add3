// merchant.go - Coin acceptance: signature check, canonical parse and the
// cut-and-choose identity challenge.

package ecash

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"digicash/internal/blindrsa"
)

// Merchant accepts coins signed by one trusted bank key.
type Merchant struct {
	id      string
	trusted *blindrsa.PublicKey
	src     Source
	params  *Params
	service BlindSignatureService
	logger  zerolog.Logger
	metrics Observer
}

// NewMerchant creates a merchant that trusts the bank key trusted and draws
// its challenge bits from src.
func NewMerchant(id string, trusted *blindrsa.PublicKey, src Source, params *Params, opts ...Option) *Merchant {
	o := buildOptions(opts)
	if src == nil {
		src = SystemSource()
	}
	if params == nil {
		params = DefaultParams()
	}
	return &Merchant{
		id:      id,
		trusted: trusted,
		src:     src,
		params:  params,
		service: o.service,
		logger:  o.logger.With().Str("component", "merchant").Str("merchant", id).Logger(),
		metrics: o.metrics,
	}
}

// ID names the merchant in logs and deposits.
func (m *Merchant) ID() string { return m.id }

// Accept verifies the presented coin and challenges one random side of every
// identity-share pair. On any failure no RIS is produced and the coin must be
// treated as unpaid. Failures are never retried.
func (m *Merchant) Accept(p Presentment) (*RIS, error) {
	start := time.Now()
	ris, err := m.accept(p)
	if err != nil {
		culprit := Culprit(err)
		m.metrics.CoinRejected(m.id, culprit)
		m.logger.Warn().Err(err).Str("culprit", string(culprit)).Msg("coin rejected")
		return nil, err
	}
	m.metrics.CoinAccepted(m.id, time.Since(start))
	m.logger.Info().Str("guid", ris.GUID()).Msg("coin accepted")
	return ris, nil
}

func (m *Merchant) accept(p Presentment) (*RIS, error) {
	canonical, err := m.verify(p.Coin())
	if err != nil {
		return nil, err
	}

	shares := make([]Share, len(canonical.LeftHashes))
	for i := range shares {
		chooseLeft, err := randomBit(m.src)
		if err != nil {
			return nil, errors.Wrap(err, "draw challenge")
		}
		side, want := Right, canonical.RightHashes[i]
		if chooseLeft {
			side, want = Left, canonical.LeftHashes[i]
		}
		value, err := p.Reveal(i, side)
		if err != nil {
			return nil, errors.Wrapf(err, "coin %s index %d", canonical.GUID, i)
		}
		if !Buffer(m.params.Hash.Sum(value)).Equal(want) {
			return nil, errors.Wrapf(ErrHashMismatch, "coin %s index %d %s share", canonical.GUID, i, side)
		}
		shares[i] = Share{Side: side, Value: value}
	}
	return NewRIS(canonical.GUID, shares), nil
}

// verify checks the bank key and signature, then parses the signed message.
func (m *Merchant) verify(coin *Coin) (*Canonical, error) {
	return verifyCoin(m.service, m.trusted, m.params, coin)
}

func verifyCoin(service BlindSignatureService, trusted *blindrsa.PublicKey, params *Params, coin *Coin) (*Canonical, error) {
	if coin == nil {
		return nil, errors.Wrap(ErrMalformedCoin, "no coin presented")
	}
	if !trusted.Equal(coin.PublicKey()) {
		return nil, errors.Wrapf(ErrInvalidSignature, "coin %s is bound to an untrusted bank key", coin.GUID)
	}
	msg := coin.Canonical(params.BankTag)
	if !service.Verify(coin.Signature, []byte(msg), trusted) {
		return nil, errors.Wrapf(ErrInvalidSignature, "coin %s signature does not verify", coin.GUID)
	}
	canonical, err := ParseCanonical(msg, params.BankTag, params.Hash.Size())
	if err != nil {
		return nil, errors.Wrapf(err, "coin %s", coin.GUID)
	}
	if len(canonical.LeftHashes) != params.RISLength {
		return nil, errors.Wrapf(ErrParamsMismatch, "coin %s carries %d share pairs, want %d",
			coin.GUID, len(canonical.LeftHashes), params.RISLength)
	}
	return canonical, nil
}
