// ris.go - Revealed Identity Share vectors and their JSON envelope.
//
// A RIS is what one merchant learns from one acceptance: for every index the
// side it challenged and the value the spender opened. It is immutable once
// built and is forwarded to a clearing authority as JSON.

package ecash

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Side selects one half of an identity-share pair.
type Side uint8

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

// MarshalJSON encodes the side as "left" or "right".
func (s Side) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (s *Side) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "left":
		*s = Left
	case "right":
		*s = Right
	default:
		return errors.Errorf("invalid side %q", name)
	}
	return nil
}

// Share is one revealed half.
type Share struct {
	Side  Side
	Value Buffer
}

// RIS is the vector of shares one acceptance produced for one coin.
type RIS struct {
	guid   string
	shares []Share
}

// NewRIS copies shares into a new vector.
func NewRIS(guid string, shares []Share) *RIS {
	r := &RIS{guid: guid, shares: make([]Share, len(shares))}
	for i, s := range shares {
		r.shares[i] = Share{Side: s.Side, Value: s.Value.Clone()}
	}
	return r
}

// GUID is the coin this vector was collected for.
func (r *RIS) GUID() string { return r.guid }

// Len is the number of shares.
func (r *RIS) Len() int { return len(r.shares) }

// Share returns a copy of share i.
func (r *RIS) Share(i int) Share {
	s := r.shares[i]
	return Share{Side: s.Side, Value: s.Value.Clone()}
}

// Equal reports whether both vectors carry the same guid, sides and values.
func (r *RIS) Equal(o *RIS) bool {
	if r.guid != o.guid || len(r.shares) != len(o.shares) {
		return false
	}
	for i := range r.shares {
		if r.shares[i].Side != o.shares[i].Side || !r.shares[i].Value.Equal(o.shares[i].Value) {
			return false
		}
	}
	return true
}

// --- JSON envelope ---

type shareJSON struct {
	Side  Side   `json:"side"`
	Value string `json:"value"`
}

type risJSON struct {
	GUID   string      `json:"guid"`
	Shares []shareJSON `json:"shares"`
}

// MarshalJSON implements the json.Marshaler interface.
func (r *RIS) MarshalJSON() ([]byte, error) {
	out := risJSON{GUID: r.guid, Shares: make([]shareJSON, len(r.shares))}
	for i, s := range r.shares {
		out.Shares[i] = shareJSON{Side: s.Side, Value: s.Value.String()}
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (r *RIS) UnmarshalJSON(data []byte) error {
	var in risJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if !validGUID(in.GUID) {
		return errors.Errorf("invalid guid %q", in.GUID)
	}
	shares := make([]Share, len(in.Shares))
	for i, s := range in.Shares {
		v, err := DecodeBuffer(s.Value, -1)
		if err != nil {
			return errors.Wrapf(err, "share %d", i)
		}
		shares[i] = Share{Side: s.Side, Value: v}
	}
	r.guid = in.GUID
	r.shares = shares
	return nil
}
