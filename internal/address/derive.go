package address

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

const (
	MaxSeeds      = 16
	MaxSeedLength = 512

	derivationMarker = "ProgramDerivedAddress"
)

var (
	ErrOnCurve       = errors.New("derived address lies on the ed25519 curve")
	ErrBumpNotFound  = errors.New("no viable bump seed found")
	ErrTooManySeeds  = errors.New("too many seeds")
	ErrMaxSeedLength = errors.New("seed exceeds maximum length")
)

var onCurve = IsOnCurve

// FindProgramAddress walks the bump from 255 down and returns the first address
// that cannot be a keypair address.
func FindProgramAddress(program Address, seeds [][]byte) (Address, uint8, error) {
	if err := checkSeeds(seeds); err != nil {
		return Zero, 0, err
	}
	for bump := 255; bump >= 0; bump-- {
		addr, err := createProgramAddress(program, seeds, uint8(bump))
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return Zero, 0, err
		}
	}
	return Zero, 0, ErrBumpNotFound
}

func CreateProgramAddress(program Address, seeds [][]byte, bump uint8) (Address, error) {
	if err := checkSeeds(seeds); err != nil {
		return Zero, err
	}
	return createProgramAddress(program, seeds, bump)
}

func createProgramAddress(program Address, seeds [][]byte, bump uint8) (Address, error) {
	digest := derivationDigest(program, seeds, bump)
	if onCurve(digest[:]) {
		return Zero, ErrOnCurve
	}
	return Address(digest), nil
}

// Every seed is length-prefixed, so ["ab","c"] and ["a","bc"] hash differently.
func derivationDigest(program Address, seeds [][]byte, bump uint8) [32]byte {
	h := sha256.New()
	var prefix [4]byte
	for _, seed := range seeds {
		binary.LittleEndian.PutUint32(prefix[:], uint32(len(seed)))
		h.Write(prefix[:])
		h.Write(seed)
	}
	h.Write([]byte{bump})
	h.Write(program[:])
	h.Write([]byte(derivationMarker))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func IsOnCurve(b []byte) bool {
	if len(b) != Size {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

func checkSeeds(seeds [][]byte) error {
	if len(seeds) > MaxSeeds {
		return fmt.Errorf("%w: %d > %d", ErrTooManySeeds, len(seeds), MaxSeeds)
	}
	for i, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return fmt.Errorf("%w: seed %d is %d bytes", ErrMaxSeedLength, i, len(seed))
		}
	}
	return nil
}
