// crypto.go - Randomness, commitment hashing and byte-buffer helpers for the e-cash protocol.
//
// Every random draw in the package goes through a Source so tests and
// simulations can replay exact challenge choices. Commitments are computed with
// a pluggable Hasher; the signed message is hashed inside blindrsa instead.

package ecash

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bw6-761/fr"
	mimcNative "github.com/consensys/gnark-crypto/ecc/bw6-761/fr/mimc"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20"
)

// Source is the single randomness operation the protocol needs.
// crypto/rand.Reader satisfies it.
type Source interface {
	Read(p []byte) (n int, err error)
}

// SystemSource returns the operating system CSPRNG.
func SystemSource() Source {
	return rand.Reader
}

// seededSource is a ChaCha20 keystream keyed by SHA-256(seed).
type seededSource struct {
	mu     sync.Mutex
	stream *chacha20.Cipher
}

// NewSeededSource returns a reproducible Source. Two sources built from the
// same seed produce the same bytes. Use it for simulations, never for real
// issuance.
func NewSeededSource(seed []byte) (Source, error) {
	key := sha256.Sum256(seed)
	nonce := make([]byte, chacha20.NonceSize)
	stream, err := chacha20.NewUnauthenticatedCipher(key[:], nonce)
	if err != nil {
		return nil, errors.Wrap(err, "seeded source")
	}
	return &seededSource{stream: stream}, nil
}

func (s *seededSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range p {
		p[i] = 0
	}
	s.stream.XORKeyStream(p, p)
	return len(p), nil
}

// randomBytes draws exactly n bytes from src.
func randomBytes(src Source, n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(src, b); err != nil {
		return nil, errors.Wrap(err, "read randomness")
	}
	return b, nil
}

// randomBit draws one uniformly random bit from src.
func randomBit(src Source) (bool, error) {
	b, err := randomBytes(src, 1)
	if err != nil {
		return false, err
	}
	return b[0]&1 == 1, nil
}

// Hasher is the commitment hash primitive: deterministic, collision
// resistant, fixed output size.
type Hasher interface {
	Name() string
	Size() int
	Sum(data []byte) []byte
}

const (
	HashSHA256  = "sha256"
	HashBLAKE2b = "blake2b"
	HashMiMC    = "mimc"
)

// HasherByName resolves a configured hash name.
func HasherByName(name string) (Hasher, error) {
	switch name {
	case "", HashSHA256:
		return SHA256(), nil
	case HashBLAKE2b:
		return BLAKE2b(), nil
	case HashMiMC:
		return MiMC(), nil
	default:
		return nil, errors.Errorf("unknown commitment hash %q", name)
	}
}

type sha256Hasher struct{}

// SHA256 is the default commitment hash.
func SHA256() Hasher { return sha256Hasher{} }

func (sha256Hasher) Name() string { return HashSHA256 }
func (sha256Hasher) Size() int    { return sha256.Size }
func (sha256Hasher) Sum(data []byte) []byte {
	d := sha256.Sum256(data)
	return d[:]
}

type blake2bHasher struct{}

// BLAKE2b commits with BLAKE2b-256.
func BLAKE2b() Hasher { return blake2bHasher{} }

func (blake2bHasher) Name() string { return HashBLAKE2b }
func (blake2bHasher) Size() int    { return blake2b.Size256 }
func (blake2bHasher) Sum(data []byte) []byte {
	d := blake2b.Sum256(data)
	return d[:]
}

type mimcHasher struct{}

// MiMC commits with the BW6-761 MiMC permutation. MiMC absorbs field
// elements, so the input is first compressed with SHA-256 and left padded to
// one scalar; a 256-bit value is always canonical in the 377-bit field.
func MiMC() Hasher { return mimcHasher{} }

func (mimcHasher) Name() string { return HashMiMC }
func (mimcHasher) Size() int    { return fr.Bytes }
func (mimcHasher) Sum(data []byte) []byte {
	pre := sha256.Sum256(data)
	var block [fr.Bytes]byte
	copy(block[fr.Bytes-len(pre):], pre[:])
	h := mimcNative.NewMiMC()
	h.Write(block[:])
	return h.Sum(nil)
}

// Buffer is a byte string whose length is part of its contract: operations
// combining two buffers require equal lengths.
type Buffer []byte

// Xor returns b XOR o. Buffers of different length fail with ErrLengthMismatch.
func (b Buffer) Xor(o Buffer) (Buffer, error) {
	if len(b) != len(o) {
		return nil, errors.Wrapf(ErrLengthMismatch, "xor of %d and %d bytes", len(b), len(o))
	}
	out := make(Buffer, len(b))
	for i := range b {
		out[i] = b[i] ^ o[i]
	}
	return out, nil
}

// Equal reports whether both buffers hold the same bytes.
func (b Buffer) Equal(o Buffer) bool {
	if len(b) != len(o) {
		return false
	}
	for i := range b {
		if b[i] != o[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (b Buffer) Clone() Buffer {
	if b == nil {
		return nil
	}
	out := make(Buffer, len(b))
	copy(out, b)
	return out
}

// String is the lowercase hex encoding.
func (b Buffer) String() string {
	return hex.EncodeToString(b)
}

// DecodeBuffer parses lowercase or uppercase hex. A non-negative size pins
// the decoded length; a mismatch fails with ErrLengthMismatch.
func DecodeBuffer(s string, size int) (Buffer, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrapf(err, "decode hex %q", s)
	}
	if size >= 0 && len(b) != size {
		return nil, errors.Wrapf(ErrLengthMismatch, "want %d bytes, got %d", size, len(b))
	}
	return Buffer(b), nil
}
