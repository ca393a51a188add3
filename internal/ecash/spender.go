// spender.go - The spender's wallet: withdrawal through blind signing and
// challenge answering at spend time.
//
// The wallet is the only holder of identity shares and blinding factors.
// Shares are released one side per index per presentation.

package ecash

import (
	"math/big"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// walletEntry is one withdrawn coin together with its private material.
type walletEntry struct {
	coin           *Coin
	secrets        *Secrets
	blindingFactor *big.Int
}

// Spender owns coins and answers merchant challenges for them.
type Spender struct {
	owner   string
	src     Source
	params  *Params
	service BlindSignatureService
	logger  zerolog.Logger

	mu    sync.RWMutex
	coins map[string]*walletEntry
}

// NewSpender creates an empty wallet for owner.
func NewSpender(owner string, src Source, params *Params, opts ...Option) *Spender {
	o := buildOptions(opts)
	if src == nil {
		src = SystemSource()
	}
	if params == nil {
		params = DefaultParams()
	}
	return &Spender{
		owner:   owner,
		src:     src,
		params:  params,
		service: o.service,
		logger:  o.logger.With().Str("component", "spender").Logger(),
		coins:   make(map[string]*walletEntry),
	}
}

// Owner is the identity encoded into every coin of this wallet.
func (s *Spender) Owner() string { return s.owner }

// Withdraw builds a coin worth amount, has issuer sign it blindly, unblinds
// the signature and checks it before storing the coin.
func (s *Spender) Withdraw(issuer Issuer, amount uint64) (*Coin, error) {
	pub := issuer.PublicKey()
	coin, secrets, err := NewCoin(s.owner, amount, pub, s.src, s.params)
	if err != nil {
		return nil, err
	}
	msg := []byte(coin.Canonical(s.params.BankTag))

	blinded, r, err := s.service.Blind(s.src, msg, pub)
	if err != nil {
		return nil, errors.Wrapf(ErrBlinding, "coin %s: %v", coin.GUID, err)
	}
	coin.Blinded = blinded

	blindSig, err := issuer.Sign(blinded)
	if err != nil {
		return nil, err
	}
	sig, err := s.service.Unblind(blindSig, r, pub)
	if err != nil {
		return nil, errors.Wrapf(ErrUnblinding, "coin %s: %v", coin.GUID, err)
	}
	if !s.service.Verify(sig, msg, pub) {
		return nil, errors.Wrapf(ErrInvalidSignature, "coin %s: bank returned a bad blind signature", coin.GUID)
	}
	coin.Signature = sig

	s.mu.Lock()
	s.coins[coin.GUID] = &walletEntry{coin: coin, secrets: secrets, blindingFactor: r}
	s.mu.Unlock()

	s.logger.Info().Str("guid", coin.GUID).Uint64("amount", amount).Msg("coin withdrawn")
	return coin.Public(), nil
}

// Coins lists the GUIDs in the wallet in lexical order.
func (s *Spender) Coins() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.coins))
	for guid := range s.coins {
		out = append(out, guid)
	}
	sort.Strings(out)
	return out
}

// Spend opens a presentation of coin guid for one merchant. Every call opens
// a fresh challenge session; presenting the same coin twice is what the
// fraud detector exposes.
func (s *Spender) Spend(guid string) (*Presentation, error) {
	s.mu.RLock()
	entry, ok := s.coins[guid]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrUnknownCoin, "guid %s", guid)
	}
	s.logger.Debug().Str("guid", guid).Msg("coin presented")
	return &Presentation{
		coin:     entry.coin.Public(),
		secrets:  entry.secrets,
		answered: make(map[int]Side),
	}, nil
}

// Presentment is what a merchant sees of a coin being spent.
type Presentment interface {
	Coin() *Coin
	Reveal(index int, side Side) (Buffer, error)
}

// Presentation is one spend of one coin. It answers at most one side per
// index, so a single acceptance can never learn both halves.
type Presentation struct {
	coin    *Coin
	secrets *Secrets

	mu       sync.Mutex
	answered map[int]Side
}

// Coin returns the public coin.
func (p *Presentation) Coin() *Coin { return p.coin }

// Reveal opens one side of index. A second challenge of the same index is
// refused with ErrDuplicateChallenge, even for the same side.
func (p *Presentation) Reveal(index int, side Side) (Buffer, error) {
	if index < 0 || index >= len(p.secrets.left) {
		return nil, errors.Wrapf(ErrChallengeOutOfRange, "index %d of %d", index, len(p.secrets.left))
	}
	if side != Left && side != Right {
		return nil, errors.Wrapf(ErrChallengeOutOfRange, "side %d", side)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if prev, ok := p.answered[index]; ok {
		return nil, errors.Wrapf(ErrDuplicateChallenge, "index %d already opened on the %s", index, prev)
	}
	p.answered[index] = side
	return p.secrets.share(index, side).Clone(), nil
}
