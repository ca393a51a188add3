// blindrsa.go - RSA full-domain-hash blind signatures.
//
// The requester hashes the message to a representative m in Z_n, blinds it as
// m*r^e mod n, the signer raises the blinded value to d, and the requester
// multiplies by r^-1 to obtain an ordinary RSA signature on m. The signer never
// learns m or the final signature.

package blindrsa

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"io"
	"math/big"

	"github.com/pkg/errors"
)

var one = big.NewInt(1)

// PublicKey is the verifying half of a bank key.
type PublicKey struct {
	N *big.Int
	E *big.Int
}

// Equal reports whether two public keys have the same modulus and exponent.
func (pk *PublicKey) Equal(other *PublicKey) bool {
	if pk == nil || other == nil || pk.N == nil || other.N == nil || pk.E == nil || other.E == nil {
		return false
	}
	return pk.N.Cmp(other.N) == 0 && pk.E.Cmp(other.E) == 0
}

// PrivateKey holds the signing exponent next to the public key.
type PrivateKey struct {
	PublicKey
	D *big.Int
}

// Scheme is the stateless RSA-FDH blind signature service.
type Scheme struct{}

// GenerateKey creates a fresh RSA key pair of the given modulus size.
func (Scheme) GenerateKey(random io.Reader, bits int) (*PrivateKey, error) {
	if bits < 512 {
		return nil, errors.Errorf("unsupported modulus size %d", bits)
	}
	key, err := rsa.GenerateKey(random, bits)
	if err != nil {
		return nil, err
	}
	if key.D == nil || key.D.Sign() == 0 {
		return nil, errors.New("private exponent d is missing")
	}
	return &PrivateKey{
		PublicKey: PublicKey{N: new(big.Int).Set(key.N), E: big.NewInt(int64(key.E))},
		D:         new(big.Int).Set(key.D),
	}, nil
}

// Blind hides msg from the signer. The returned factor r must stay with the
// caller until Unblind.
func (Scheme) Blind(random io.Reader, msg []byte, pub *PublicKey) (blinded, r *big.Int, err error) {
	if err := checkPublic(pub); err != nil {
		return nil, nil, err
	}
	m := representative(msg, pub.N)
	for {
		r, err = randomUnit(random, pub.N)
		if err != nil {
			return nil, nil, err
		}
		if new(big.Int).GCD(nil, nil, r, pub.N).Cmp(one) == 0 {
			break
		}
	}
	blinded = new(big.Int).Exp(r, pub.E, pub.N)
	blinded.Mul(blinded, m)
	blinded.Mod(blinded, pub.N)
	return blinded, r, nil
}

// Sign raises a blinded value to the private exponent.
func (Scheme) Sign(blinded *big.Int, priv *PrivateKey) (*big.Int, error) {
	if priv == nil || priv.D == nil {
		return nil, errors.New("private key is missing")
	}
	if err := checkPublic(&priv.PublicKey); err != nil {
		return nil, err
	}
	if blinded == nil || blinded.Sign() <= 0 || blinded.Cmp(priv.N) >= 0 {
		return nil, errors.New("blinded value out of range")
	}
	return new(big.Int).Exp(blinded, priv.D, priv.N), nil
}

// Unblind strips the blinding factor from a blind signature.
func (Scheme) Unblind(blindSig, r *big.Int, pub *PublicKey) (*big.Int, error) {
	if err := checkPublic(pub); err != nil {
		return nil, err
	}
	if blindSig == nil || blindSig.Sign() <= 0 || blindSig.Cmp(pub.N) >= 0 {
		return nil, errors.New("blind signature out of range")
	}
	if r == nil {
		return nil, errors.New("blinding factor is missing")
	}
	rInv := new(big.Int).ModInverse(r, pub.N)
	if rInv == nil {
		return nil, errors.New("blinding factor is not invertible")
	}
	sig := new(big.Int).Mul(blindSig, rInv)
	return sig.Mod(sig, pub.N), nil
}

// Verify reports whether sig is a valid signature of msg under pub.
func (Scheme) Verify(sig *big.Int, msg []byte, pub *PublicKey) bool {
	if checkPublic(pub) != nil || sig == nil || sig.Sign() <= 0 || sig.Cmp(pub.N) >= 0 {
		return false
	}
	m := representative(msg, pub.N)
	return new(big.Int).Exp(sig, pub.E, pub.N).Cmp(m) == 0
}

// representative maps msg into Z_n as SHA-256(msg) mod n.
func representative(msg []byte, n *big.Int) *big.Int {
	digest := sha256.Sum256(msg)
	m := new(big.Int).SetBytes(digest[:])
	return m.Mod(m, n)
}

// randomUnit draws r uniformly from [2, n).
func randomUnit(random io.Reader, n *big.Int) (*big.Int, error) {
	max := new(big.Int).Sub(n, big.NewInt(2))
	r, err := rand.Int(random, max)
	if err != nil {
		return nil, err
	}
	return r.Add(r, big.NewInt(2)), nil
}

func checkPublic(pub *PublicKey) error {
	if pub == nil || pub.N == nil || pub.E == nil {
		return errors.New("public key is missing")
	}
	if pub.N.Cmp(big.NewInt(3)) < 0 || pub.E.Sign() <= 0 {
		return errors.New("public key is invalid")
	}
	return nil
}
