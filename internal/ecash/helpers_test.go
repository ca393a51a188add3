package ecash

import (
	"crypto/rand"
	"io"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"digicash/internal/blindrsa"
)

const testKeyBits = 1024

var (
	sharedBankOnce sync.Once
	sharedBank     *Bank
	sharedBankErr  error
)

// testBank returns a bank reused across tests; key generation dominates the
// run time otherwise.
func testBank(t *testing.T) *Bank {
	t.Helper()
	sharedBankOnce.Do(func() {
		sharedBank, sharedBankErr = NewBank(rand.Reader, testKeyBits)
	})
	require.NoError(t, sharedBankErr)
	return sharedBank
}

// bitSource answers every byte read with the next scripted challenge bit,
// cycling when the script runs out.
type bitSource struct {
	mu   sync.Mutex
	bits []bool
	next int
}

func newBitSource(bits ...bool) *bitSource {
	return &bitSource{bits: bits}
}

func (s *bitSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range p {
		p[i] = 0
		if s.bits[s.next%len(s.bits)] {
			p[i] = 1
		}
		s.next++
	}
	return len(p), nil
}

// sides turns a left/right pattern such as "LRLL" into challenge bits.
func sides(pattern string) []bool {
	out := make([]bool, len(pattern))
	for i, c := range pattern {
		out[i] = c == 'L'
	}
	return out
}

// withdrawTestCoin issues a coin for owner through the shared bank.
func withdrawTestCoin(t *testing.T, owner string, amount uint64, params *Params) (*Spender, *Coin) {
	t.Helper()
	bank := testBank(t)
	spender := NewSpender(owner, rand.Reader, params)
	coin, err := spender.Withdraw(bank, amount)
	require.NoError(t, err)
	return spender, coin
}

// acceptWith runs one acceptance of guid at a merchant using scripted sides.
func acceptWith(t *testing.T, spender *Spender, guid, pattern string, params *Params) *RIS {
	t.Helper()
	m := NewMerchant("m-"+pattern, testBank(t).PublicKey(), newBitSource(sides(pattern)...), params)
	p, err := spender.Spend(guid)
	require.NoError(t, err)
	ris, err := m.Accept(p)
	require.NoError(t, err)
	return ris
}

// brokenKeyService generates keys without a private exponent.
type brokenKeyService struct {
	blindrsa.Scheme
	err error
}

func (s brokenKeyService) GenerateKey(random io.Reader, bits int) (*blindrsa.PrivateKey, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &blindrsa.PrivateKey{PublicKey: blindrsa.PublicKey{N: big.NewInt(3233), E: big.NewInt(17)}}, nil
}

// tamperedPresentment flips one bit of the share revealed at index.
type tamperedPresentment struct {
	Presentment
	index int
}

func (p tamperedPresentment) Reveal(index int, side Side) (Buffer, error) {
	v, err := p.Presentment.Reveal(index, side)
	if err == nil && index == p.index {
		v[0] ^= 0x01
	}
	return v, err
}
