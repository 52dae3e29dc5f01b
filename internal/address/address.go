package address

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58/base58"
)

const Size = 32

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidLength  = errors.New("invalid address length")
)

// Address identifies a slot, a signer or a program. Signer addresses are ed25519
// public keys; program-derived addresses are guaranteed to be off the curve.
type Address [Size]byte

var Zero Address

func FromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != Size {
		return a, fmt.Errorf("%w: %d", ErrInvalidLength, len(b))
	}
	copy(a[:], b)
	return a, nil
}

func FromPublicKey(pub ed25519.PublicKey) (Address, error) {
	return FromBytes(pub)
}

func Parse(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, ErrInvalidAddress
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return FromBytes(raw)
}

func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string {
	return base58.Encode(a[:])
}

func (a Address) Bytes() []byte {
	return append([]byte(nil), a[:]...)
}

func (a Address) IsZero() bool {
	return a == Zero
}

func (a Address) Equal(b Address) bool {
	return bytes.Equal(a[:], b[:])
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// U64LE encodes a numeric seed the way poll ids are keyed.
func U64LE(v uint64) []byte {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, v)
	return out
}
