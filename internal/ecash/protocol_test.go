package ecash

import (
	"crypto/rand"
	"encoding/json"
	"math/big"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoubleSpendScenario(t *testing.T) {
	params := DefaultParams()
	spender, coin := withdrawTestCoin(t, "alice", 20, params)

	ris1 := acceptWith(t, spender, coin.GUID, "LLLLLLLLLL", params)
	ris2 := acceptWith(t, spender, coin.GUID, "LLLRLLLLLL", params)

	d := NewDetector()
	v, err := d.DetermineCheater(coin.GUID, ris1, ris2)
	require.NoError(t, err)
	assert.Equal(t, DoubleSpendDetected, v.Kind)
	assert.Equal(t, "alice", v.Owner)
	assert.Equal(t, 3, v.Index)

	v, err = d.DetermineCheater(coin.GUID, ris1, ris1)
	require.NoError(t, err)
	assert.Equal(t, MerchantFraudDetected, v.Kind)
	assert.Empty(t, v.Owner)
}

func TestDoubleSpendWithRandomChallenges(t *testing.T) {
	params := DefaultParams()
	bank := testBank(t)
	spender, coin := withdrawTestCoin(t, "alice", 20, params)

	accept := func(id string) *RIS {
		p, err := spender.Spend(coin.GUID)
		require.NoError(t, err)
		ris, err := NewMerchant(id, bank.PublicKey(), rand.Reader, params).Accept(p)
		require.NoError(t, err)
		return ris
	}
	ris1, ris2 := accept("m1"), accept("m2")

	differ := false
	for i := 0; i < ris1.Len(); i++ {
		differ = differ || ris1.Share(i).Side != ris2.Share(i).Side
	}
	v, err := NewDetector().DetermineCheater(coin.GUID, ris1, ris2)
	require.NoError(t, err)
	if differ {
		assert.Equal(t, DoubleSpendDetected, v.Kind)
		assert.Equal(t, "alice", v.Owner)
	} else {
		// both merchants drew the same K bits, probability 2^-10
		assert.NotEqual(t, DoubleSpendDetected, v.Kind)
	}
}

func TestSingleAcceptanceRevealsOneHalfPerPair(t *testing.T) {
	params := DefaultParams()
	spender, coin := withdrawTestCoin(t, "alice", 20, params)
	ris := acceptWith(t, spender, coin.GUID, "LRRLRLLRRL", params)

	require.Equal(t, params.RISLength, ris.Len())
	for i := 0; i < ris.Len(); i++ {
		s := ris.Share(i)
		_, err := decodeIdentity(s.Value)
		assert.Error(t, err, "a single half must not decode as an identity")
		_, err = Recover(s, s)
		assert.Error(t, err)
	}

	v, err := NewDetector().DetermineCheater(coin.GUID, ris, ris)
	require.NoError(t, err)
	assert.NotEqual(t, DoubleSpendDetected, v.Kind)
}

func TestMerchantRejectsTamperedCoin(t *testing.T) {
	params := DefaultParams()
	bank := testBank(t)
	spender, coin := withdrawTestCoin(t, "alice", 20, params)
	m := NewMerchant("m1", bank.PublicKey(), rand.Reader, params)

	tamper := map[string]func(c *Coin){
		"amount":     func(c *Coin) { c.Amount = 2000 },
		"guid":       func(c *Coin) { c.GUID = "00000000000000000000000000000000" },
		"left hash":  func(c *Coin) { c.LeftHashes[4][0] ^= 0x80 },
		"signature":  func(c *Coin) { c.Signature = new(big.Int).Add(c.Signature, big.NewInt(1)) },
		"no sig":     func(c *Coin) { c.Signature = nil },
		"other bank": func(c *Coin) { c.E = big.NewInt(3) },
	}
	for name, mutate := range tamper {
		t.Run(name, func(t *testing.T) {
			p, err := spender.Spend(coin.GUID)
			require.NoError(t, err)
			mutate(p.Coin())
			ris, err := m.Accept(p)
			assert.Nil(t, ris)
			assert.True(t, errors.Is(err, ErrInvalidSignature), "got %v", err)
			assert.Equal(t, PartySpender, Culprit(err))
		})
	}
}

func TestMerchantRejectsWrongRISLength(t *testing.T) {
	params := DefaultParams()
	spender, coin := withdrawTestCoin(t, "alice", 20, params)

	other := DefaultParams()
	other.RISLength = 12
	p, err := spender.Spend(coin.GUID)
	require.NoError(t, err)
	_, err = NewMerchant("m1", testBank(t).PublicKey(), rand.Reader, other).Accept(p)
	assert.True(t, errors.Is(err, ErrParamsMismatch), "got %v", err)
	assert.False(t, errors.Is(err, ErrMalformedCoin))
	assert.Equal(t, PartySystem, Culprit(err))
}

func TestMerchantRejectsForeignBankTag(t *testing.T) {
	params := DefaultParams()
	spender, coin := withdrawTestCoin(t, "alice", 20, params)

	other := DefaultParams()
	other.BankTag = "OTHER_BANK"
	p, err := spender.Spend(coin.GUID)
	require.NoError(t, err)
	_, err = NewMerchant("m1", testBank(t).PublicKey(), rand.Reader, other).Accept(p)
	assert.True(t, errors.Is(err, ErrInvalidSignature), "got %v", err)
}

func TestMerchantDetectsHashMismatch(t *testing.T) {
	params := DefaultParams()
	spender, coin := withdrawTestCoin(t, "alice", 20, params)
	p, err := spender.Spend(coin.GUID)
	require.NoError(t, err)

	m := NewMerchant("m1", testBank(t).PublicKey(), rand.Reader, params)
	ris, err := m.Accept(tamperedPresentment{Presentment: p, index: 6})
	assert.Nil(t, ris)
	require.True(t, errors.Is(err, ErrHashMismatch), "got %v", err)
	assert.Contains(t, err.Error(), "index 6")
	assert.Equal(t, PartySpender, Culprit(err))
}

func TestPresentationAnswersOneSidePerIndex(t *testing.T) {
	spender, coin := withdrawTestCoin(t, "alice", 20, DefaultParams())
	p, err := spender.Spend(coin.GUID)
	require.NoError(t, err)

	_, err = p.Reveal(0, Left)
	require.NoError(t, err)
	_, err = p.Reveal(0, Right)
	assert.True(t, errors.Is(err, ErrDuplicateChallenge))
	_, err = p.Reveal(0, Left)
	assert.True(t, errors.Is(err, ErrDuplicateChallenge))
	_, err = p.Reveal(DefaultRISLength, Left)
	assert.True(t, errors.Is(err, ErrChallengeOutOfRange))
	assert.Equal(t, PartyMerchant, Culprit(err))

	_, err = spender.Spend("ffffffffffffffffffffffffffffffff")
	assert.True(t, errors.Is(err, ErrUnknownCoin))
}

func TestPresentedCoinCarriesNoSecrets(t *testing.T) {
	spender, coin := withdrawTestCoin(t, "alice", 20, DefaultParams())
	p, err := spender.Spend(coin.GUID)
	require.NoError(t, err)
	assert.Empty(t, p.Coin().Owner)
	assert.Empty(t, coin.Owner)
	assert.Equal(t, []string{coin.GUID}, spender.Coins())
}

func TestDetectorRejectsMismatchedInput(t *testing.T) {
	params := DefaultParams()
	spender, coin1 := withdrawTestCoin(t, "alice", 20, params)
	coin2, err := spender.Withdraw(testBank(t), 10)
	require.NoError(t, err)

	ris1 := acceptWith(t, spender, coin1.GUID, "LLLLLLLLLL", params)
	ris2 := acceptWith(t, spender, coin2.GUID, "RRRRRRRRRR", params)

	d := NewDetector()
	_, err = d.DetermineCheater(coin1.GUID, ris1, ris2)
	assert.True(t, errors.Is(err, ErrMismatchedCoin))
	assert.Equal(t, PartyMerchant, Culprit(err))

	short := NewRIS(coin1.GUID, []Share{ris1.Share(0)})
	_, err = d.DetermineCheater(coin1.GUID, ris1, short)
	assert.True(t, errors.Is(err, ErrLengthMismatch))
}

func TestDetectorInconclusive(t *testing.T) {
	params := DefaultParams()
	params.RISLength = 4
	spender, coin := withdrawTestCoin(t, "dave", 1, params)
	ris := acceptWith(t, spender, coin.GUID, "LRLR", params)

	v, err := NewDetector().DetermineCheater(coin.GUID, ris, ris)
	require.NoError(t, err)
	assert.Equal(t, Inconclusive, v.Kind, "K=4 cannot tell a replay from chance")

	v, err = (&Detector{MinEvidenceLength: 4}).DetermineCheater(coin.GUID, ris, ris)
	require.NoError(t, err)
	assert.Equal(t, MerchantFraudDetected, v.Kind)

	empty := NewRIS(coin.GUID, nil)
	v, err = NewDetector().DetermineCheater(coin.GUID, empty, empty)
	require.NoError(t, err)
	assert.Equal(t, Inconclusive, v.Kind)

	// opposite halves that were never committed decode to nothing
	junk := NewRIS(coin.GUID, []Share{{Side: Right, Value: Buffer("not an identity")}, ris.Share(1), ris.Share(2), ris.Share(3)})
	v, err = NewDetector().DetermineCheater(coin.GUID, ris, junk)
	require.NoError(t, err)
	assert.Equal(t, Inconclusive, v.Kind)
	assert.Empty(t, v.Owner)
}

func TestConcurrentAcceptance(t *testing.T) {
	params := DefaultParams()
	bank := testBank(t)
	spender, coin := withdrawTestCoin(t, "alice", 20, params)

	const merchants = 8
	results := make([]*RIS, merchants)
	errs := make([]error, merchants)
	var wg sync.WaitGroup
	for i := 0; i < merchants; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := spender.Spend(coin.GUID)
			if err != nil {
				errs[i] = err
				return
			}
			results[i], errs[i] = NewMerchant("m", bank.PublicKey(), rand.Reader, params).Accept(p)
		}(i)
	}
	wg.Wait()
	for i := 0; i < merchants; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, coin.GUID, results[i].GUID())
	}
}

func TestBankKeyGenerationFailure(t *testing.T) {
	_, err := NewBank(rand.Reader, testKeyBits, WithService(brokenKeyService{}))
	assert.True(t, errors.Is(err, ErrKeyGeneration), "got %v", err)

	_, err = NewBank(rand.Reader, testKeyBits, WithService(brokenKeyService{err: errors.New("no entropy")}))
	assert.True(t, errors.Is(err, ErrKeyGeneration), "got %v", err)
	assert.Contains(t, err.Error(), "no entropy")
	assert.Equal(t, PartySystem, Culprit(err))

	_, err = NewBank(rand.Reader, 64)
	assert.True(t, errors.Is(err, ErrKeyGeneration))
}

func TestBankSigning(t *testing.T) {
	bank := testBank(t)
	require.NoError(t, bank.SelfTest(rand.Reader))

	before := bank.Issued()
	_, err := bank.Sign(big.NewInt(0))
	assert.True(t, errors.Is(err, ErrSigning))
	assert.Equal(t, before, bank.Issued())

	_, err = bank.Sign(big.NewInt(42))
	require.NoError(t, err)
	assert.Equal(t, before+1, bank.Issued())
}

func TestIndependentBanks(t *testing.T) {
	params := DefaultParams()
	other, err := NewBank(rand.Reader, testKeyBits)
	require.NoError(t, err)

	spender := NewSpender("erin", rand.Reader, params)
	coin, err := spender.Withdraw(other, 7)
	require.NoError(t, err)

	p, err := spender.Spend(coin.GUID)
	require.NoError(t, err)
	_, err = NewMerchant("m1", testBank(t).PublicKey(), rand.Reader, params).Accept(p)
	assert.True(t, errors.Is(err, ErrInvalidSignature))

	p, err = spender.Spend(coin.GUID)
	require.NoError(t, err)
	_, err = NewMerchant("m2", other.PublicKey(), rand.Reader, params).Accept(p)
	assert.NoError(t, err)
}

func TestRISJSON(t *testing.T) {
	params := DefaultParams()
	spender, coin := withdrawTestCoin(t, "alice", 20, params)
	ris := acceptWith(t, spender, coin.GUID, "LRLRRRLLRL", params)

	data, err := json.Marshal(ris)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"side":"right"`)

	var decoded RIS
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, ris.Equal(&decoded))

	assert.Error(t, json.Unmarshal([]byte(`{"guid":"x","shares":[]}`), &decoded))
	assert.Error(t, json.Unmarshal([]byte(`{"guid":"`+coin.GUID+`","shares":[{"side":"up","value":"00"}]}`), &decoded))
}
