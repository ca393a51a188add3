package ecash

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digicash/internal/blindrsa"
)

func TestNewCoinCommitmentBinding(t *testing.T) {
	params := DefaultParams()
	coin, secrets, err := NewCoin("alice", 20, testBank(t).PublicKey(), nil, params)
	require.NoError(t, err)

	owner, err := decodeIdentity(secrets.identity)
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)
	assert.Len(t, coin.GUID, 32)
	require.Len(t, coin.LeftHashes, params.RISLength)
	require.Len(t, coin.RightHashes, params.RISLength)

	for i := 0; i < params.RISLength; i++ {
		assert.True(t, Buffer(params.Hash.Sum(secrets.left[i])).Equal(coin.LeftHashes[i]), "left commitment %d", i)
		assert.True(t, Buffer(params.Hash.Sum(secrets.right[i])).Equal(coin.RightHashes[i]), "right commitment %d", i)

		identity, err := secrets.left[i].Xor(secrets.right[i])
		require.NoError(t, err)
		assert.True(t, identity.Equal(secrets.identity), "pair %d does not rebuild the identity", i)
		assert.False(t, secrets.left[i].Equal(secrets.right[i]))
	}

	msg := coin.Canonical(params.BankTag)
	for i := 0; i < params.RISLength; i++ {
		assert.NotContains(t, msg, secrets.left[i].String())
		assert.NotContains(t, msg, secrets.right[i].String())
	}
}

func TestNewCoinRejectsBadParameters(t *testing.T) {
	pub := testBank(t).PublicKey()
	zeroK := DefaultParams()
	zeroK.RISLength = 0
	badTag := DefaultParams()
	badTag.BankTag = "BANK-ONE"

	cases := map[string]struct {
		owner  string
		amount uint64
		pub    *blindrsa.PublicKey
		params *Params
	}{
		"zero RIS length": {"alice", 20, pub, zeroK},
		"zero amount":     {"alice", 0, pub, DefaultParams()},
		"empty owner":     {"", 20, pub, DefaultParams()},
		"missing key":     {"alice", 20, nil, DefaultParams()},
		"delimiter tag":   {"alice", 20, pub, badTag},
		"nil params":      {"alice", 20, pub, nil},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			coin, secrets, err := NewCoin(tc.owner, tc.amount, tc.pub, nil, tc.params)
			assert.True(t, errors.Is(err, ErrConstruction), "got %v", err)
			assert.Nil(t, coin)
			assert.Nil(t, secrets)
		})
	}
}

func TestCanonicalRoundTrip(t *testing.T) {
	params := DefaultParams()
	coin, _, err := NewCoin("alice", 20, testBank(t).PublicKey(), nil, params)
	require.NoError(t, err)

	msg := coin.Canonical(params.BankTag)
	assert.True(t, strings.HasPrefix(msg, DefaultBankTag+"-20-"+coin.GUID+"-"))

	parsed, err := ParseCanonical(msg, params.BankTag, params.Hash.Size())
	require.NoError(t, err)
	assert.Equal(t, uint64(20), parsed.Amount)
	assert.Equal(t, coin.GUID, parsed.GUID)
	assert.Equal(t, coin.LeftHashes, parsed.LeftHashes)
	assert.Equal(t, coin.RightHashes, parsed.RightHashes)
	assert.Equal(t, msg, parsed.String())
}

func TestCanonicalIsInjective(t *testing.T) {
	params := DefaultParams()
	coin, _, err := NewCoin("alice", 20, testBank(t).PublicKey(), nil, params)
	require.NoError(t, err)
	base := coin.Canonical(params.BankTag)

	amount := *coin
	amount.Amount = 2
	guid := *coin
	guid.GUID = strings.Repeat("0", 32)
	swapped := *coin
	swapped.LeftHashes, swapped.RightHashes = coin.RightHashes, coin.LeftHashes
	shifted := *coin
	shifted.LeftHashes = append([]Buffer{}, coin.LeftHashes...)
	shifted.LeftHashes[0], shifted.LeftHashes[1] = coin.LeftHashes[1], coin.LeftHashes[0]

	seen := map[string]string{base: "base"}
	for name, c := range map[string]*Coin{"amount": &amount, "guid": &guid, "swapped": &swapped, "shifted": &shifted} {
		msg := c.Canonical(params.BankTag)
		prev, dup := seen[msg]
		assert.False(t, dup, "%s collides with %s", name, prev)
		seen[msg] = name
	}
}

func TestParseCanonicalRejectsMalformed(t *testing.T) {
	params := DefaultParams()
	coin, _, err := NewCoin("alice", 20, testBank(t).PublicKey(), nil, params)
	require.NoError(t, err)
	good := coin.Canonical(params.BankTag)
	fields := strings.Split(good, "-")

	join := func(f ...string) string { return strings.Join(f, "-") }
	firstLeft := strings.Split(fields[3], ",")[0]

	cases := map[string]string{
		"wrong tag":        join("OTHER_BANK", fields[1], fields[2], fields[3], fields[4]),
		"missing field":    join(fields[0], fields[1], fields[2], fields[3]),
		"extra field":      good + "-x",
		"zero amount":      join(fields[0], "0", fields[2], fields[3], fields[4]),
		"padded amount":    join(fields[0], "020", fields[2], fields[3], fields[4]),
		"short guid":       join(fields[0], fields[1], "abcd", fields[3], fields[4]),
		"uneven lists":     join(fields[0], fields[1], fields[2], fields[3]+","+firstLeft, fields[4]),
		"non-hex hash":     join(fields[0], fields[1], fields[2], "zz"+fields[3][2:], fields[4]),
		"uppercase hash":   join(fields[0], fields[1], fields[2], strings.ToUpper(fields[3]), fields[4]),
		"truncated hash":   join(fields[0], fields[1], fields[2], fields[3][2:], fields[4]),
		"empty commitment": join(fields[0], fields[1], fields[2], "", fields[4]),
	}
	for name, s := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCanonical(s, params.BankTag, params.Hash.Size())
			assert.True(t, errors.Is(err, ErrMalformedCoin), "got %v", err)
		})
	}
}

func TestSeededSourceReproducesCoins(t *testing.T) {
	pub := testBank(t).PublicKey()
	build := func() *Coin {
		src, err := NewSeededSource([]byte("seed"))
		require.NoError(t, err)
		coin, _, err := NewCoin("alice", 5, pub, src, DefaultParams())
		require.NoError(t, err)
		return coin
	}
	a, b := build(), build()
	assert.Equal(t, a.GUID, b.GUID)
	assert.Equal(t, a.LeftHashes, b.LeftHashes)

	other, err := NewSeededSource([]byte("other seed"))
	require.NoError(t, err)
	c, _, err := NewCoin("alice", 5, pub, other, DefaultParams())
	require.NoError(t, err)
	assert.NotEqual(t, a.GUID, c.GUID)
}

func TestHashers(t *testing.T) {
	for _, name := range []string{HashSHA256, HashBLAKE2b, HashMiMC} {
		t.Run(name, func(t *testing.T) {
			h, err := HasherByName(name)
			require.NoError(t, err)
			assert.Equal(t, name, h.Name())

			a := h.Sum([]byte("IDENT:alice"))
			assert.Len(t, a, h.Size())
			assert.Equal(t, a, h.Sum([]byte("IDENT:alice")))
			assert.NotEqual(t, a, h.Sum([]byte("IDENT:alicf")))
		})
	}

	_, err := HasherByName("md5")
	assert.Error(t, err)
}

func TestCoinWithMiMCCommitments(t *testing.T) {
	params := DefaultParams()
	params.Hash = MiMC()
	spender, coin := withdrawTestCoin(t, "carol", 3, params)
	ris := acceptWith(t, spender, coin.GUID, "LRLRLRLRLR", params)
	assert.Equal(t, params.RISLength, ris.Len())
}

func TestBufferXor(t *testing.T) {
	x, err := Buffer{0x0f, 0xf0}.Xor(Buffer{0xff, 0xff})
	require.NoError(t, err)
	assert.Equal(t, Buffer{0xf0, 0x0f}, x)

	_, err = Buffer{0x01}.Xor(Buffer{0x01, 0x02})
	assert.True(t, errors.Is(err, ErrLengthMismatch))

	_, err = DecodeBuffer("0011", 3)
	assert.True(t, errors.Is(err, ErrLengthMismatch))
	b, err := DecodeBuffer("0011", 2)
	require.NoError(t, err)
	assert.Equal(t, "0011", b.String())
}

func TestIdentityEncoding(t *testing.T) {
	secret := make([]byte, identitySecretSize)
	owner, err := decodeIdentity(encodeIdentity("bob:the:builder", secret))
	require.NoError(t, err)
	assert.Equal(t, "bob:the:builder", owner)

	for _, bad := range []string{"alice", "IDENT:alice", "IDENT::00", "IDENT:alice:zz"} {
		_, err := decodeIdentity(Buffer(bad))
		assert.Error(t, err, bad)
	}
}
