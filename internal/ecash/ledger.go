// ledger.go - In-memory clearing ledger for merchant deposits.
//
// Merchants deposit every RIS they collect. The ledger checks the coin and the
// revealed shares, then compares the deposit against every earlier deposit of
// the same coin. A coin deposited once is clean; each further deposit produces
// verdicts.
//
// Nothing is persisted; the ledger lives as long as the process.

package ecash

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"digicash/internal/blindrsa"
)

// Deposit is one RIS handed in by one merchant.
type Deposit struct {
	Merchant string
	GUID     string
	Amount   uint64
	RIS      *RIS
}

// Ledger is the clearing authority. It is safe for concurrent use.
type Ledger struct {
	trusted  *blindrsa.PublicKey
	params   *Params
	detector *Detector
	service  BlindSignatureService
	logger   zerolog.Logger
	metrics  Observer

	mu       sync.Mutex
	deposits map[string][]*Deposit
	verdicts []Verdict
}

// NewLedger creates an empty ledger for coins of the bank key trusted.
func NewLedger(trusted *blindrsa.PublicKey, params *Params, detector *Detector, opts ...Option) *Ledger {
	o := buildOptions(opts)
	if params == nil {
		params = DefaultParams()
	}
	if detector == nil {
		detector = NewDetector()
	}
	return &Ledger{
		trusted:  trusted,
		params:   params,
		detector: detector,
		service:  o.service,
		logger:   o.logger.With().Str("component", "ledger").Logger(),
		metrics:  o.metrics,
		deposits: make(map[string][]*Deposit),
	}
}

// Deposit records ris collected by merchant for coin and returns the verdicts
// against earlier deposits of the same coin. A deposit whose shares do not
// open the coin's commitments fails with ErrForgedRIS and is not recorded.
func (l *Ledger) Deposit(merchant string, coin *Coin, ris *RIS) ([]Verdict, error) {
	canonical, err := verifyCoin(l.service, l.trusted, l.params, coin)
	if err != nil {
		return nil, err
	}
	if ris == nil || ris.GUID() != canonical.GUID {
		got := ""
		if ris != nil {
			got = ris.GUID()
		}
		return nil, errors.Wrapf(ErrMismatchedCoin, "deposit for coin %s carries shares of %q", canonical.GUID, got)
	}
	if ris.Len() != len(canonical.LeftHashes) {
		return nil, errors.Wrapf(ErrForgedRIS, "coin %s: %d shares for %d pairs", canonical.GUID, ris.Len(), len(canonical.LeftHashes))
	}
	for i := 0; i < ris.Len(); i++ {
		s := ris.Share(i)
		want := canonical.RightHashes[i]
		if s.Side == Left {
			want = canonical.LeftHashes[i]
		}
		if !Buffer(l.params.Hash.Sum(s.Value)).Equal(want) {
			return nil, errors.Wrapf(ErrForgedRIS, "coin %s index %d %s share from %s", canonical.GUID, i, s.Side, merchant)
		}
	}

	dep := &Deposit{Merchant: merchant, GUID: canonical.GUID, Amount: canonical.Amount, RIS: ris}

	l.mu.Lock()
	defer l.mu.Unlock()

	var found []Verdict
	for _, prev := range l.deposits[dep.GUID] {
		v, err := l.detector.DetermineCheater(dep.GUID, prev.RIS, ris)
		if err != nil {
			return nil, err
		}
		found = append(found, v)
	}
	l.deposits[dep.GUID] = append(l.deposits[dep.GUID], dep)
	l.verdicts = append(l.verdicts, found...)

	for _, v := range found {
		l.metrics.VerdictReached(v.Kind)
		l.logger.Warn().
			Str("guid", v.GUID).
			Str("verdict", v.Kind.String()).
			Str("owner", v.Owner).
			Str("merchant", merchant).
			Msg("coin deposited more than once")
	}
	if len(found) == 0 {
		l.logger.Info().Str("guid", dep.GUID).Str("merchant", merchant).Uint64("amount", dep.Amount).Msg("coin deposited")
	}
	return found, nil
}

// HasDeposit reports whether coin guid has been deposited at least once.
func (l *Ledger) HasDeposit(guid string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.deposits[guid]) > 0
}

// Deposits returns the deposits recorded for guid in arrival order.
func (l *Ledger) Deposits(guid string) []Deposit {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Deposit, len(l.deposits[guid]))
	for i, d := range l.deposits[guid] {
		out[i] = *d
	}
	return out
}

// Verdicts returns every verdict reached so far.
func (l *Ledger) Verdicts() []Verdict {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Verdict(nil), l.verdicts...)
}
