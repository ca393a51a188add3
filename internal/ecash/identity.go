package ecash

import (
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

// IdentityPrefix starts every identity string.
const IdentityPrefix = "IDENT"

const identitySecretSize = 16

// encodeIdentity builds "IDENT:<owner>:<hex secret>". The per-coin secret
// keeps every share long enough that its commitment cannot be searched.
func encodeIdentity(owner string, secret []byte) Buffer {
	return Buffer(IdentityPrefix + ":" + owner + ":" + hex.EncodeToString(secret))
}

// decodeIdentity recovers the owner label from an identity string.
func decodeIdentity(b Buffer) (string, error) {
	s := string(b)
	if !strings.HasPrefix(s, IdentityPrefix+":") {
		return "", errors.New("missing identity prefix")
	}
	rest := s[len(IdentityPrefix)+1:]
	sep := strings.LastIndexByte(rest, ':')
	if sep <= 0 {
		return "", errors.New("missing identity secret")
	}
	secret, err := hex.DecodeString(rest[sep+1:])
	if err != nil || len(secret) != identitySecretSize {
		return "", errors.New("malformed identity secret")
	}
	return rest[:sep], nil
}

// splitIdentity draws k random pads and pairs each with pad XOR identity.
func splitIdentity(src Source, identity Buffer, k int) (left, right []Buffer, err error) {
	left = make([]Buffer, k)
	right = make([]Buffer, k)
	for i := 0; i < k; i++ {
		pad, err := randomBytes(src, len(identity))
		if err != nil {
			return nil, nil, err
		}
		left[i] = Buffer(pad)
		if right[i], err = left[i].Xor(identity); err != nil {
			return nil, nil, err
		}
	}
	return left, right, nil
}
