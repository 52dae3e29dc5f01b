package schema

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"seedslot/go-backend/internal/address"
)

const (
	DiscriminatorSize = 8
	stringPrefixSize  = 4
	u64Size           = 8
)

var (
	ErrSizeExceeded          = errors.New("bounded field exceeds maximum size")
	ErrDiscriminatorMismatch = errors.New("account discriminator mismatch")
	ErrTruncated             = errors.New("account data truncated")
)

type Discriminator [DiscriminatorSize]byte

// DiscriminatorFor derives the 8-byte type tag prefixed to every slot.
func DiscriminatorFor(typeName string) Discriminator {
	sum := sha256.Sum256([]byte("account:" + typeName))
	var d Discriminator
	copy(d[:], sum[:DiscriminatorSize])
	return d
}

// BoundedStringSpace is the worst-case encoded size of a bounded string.
func BoundedStringSpace(max int) int {
	return stringPrefixSize + max
}

func CheckBounded(field, value string, max int) error {
	if len(value) > max {
		return fmt.Errorf("%w: %s is %d bytes, max %d", ErrSizeExceeded, field, len(value), max)
	}
	return nil
}

type encoder struct {
	buf []byte
	off int
	err error
}

func newEncoder(dst []byte) *encoder {
	return &encoder{buf: dst}
}

func (e *encoder) reserve(n int) []byte {
	if e.err != nil {
		return nil
	}
	if e.off+n > len(e.buf) {
		e.err = fmt.Errorf("%w: slot holds %d bytes, need %d", ErrSizeExceeded, len(e.buf), e.off+n)
		return nil
	}
	out := e.buf[e.off : e.off+n]
	e.off += n
	return out
}

func (e *encoder) discriminator(d Discriminator) {
	if b := e.reserve(DiscriminatorSize); b != nil {
		copy(b, d[:])
	}
}

func (e *encoder) address(a address.Address) {
	if b := e.reserve(address.Size); b != nil {
		copy(b, a[:])
	}
}

func (e *encoder) u64(v uint64) {
	if b := e.reserve(u64Size); b != nil {
		binary.LittleEndian.PutUint64(b, v)
	}
}

func (e *encoder) boundedString(field, v string, max int) {
	if e.err != nil {
		return
	}
	if err := CheckBounded(field, v, max); err != nil {
		e.err = err
		return
	}
	if b := e.reserve(stringPrefixSize); b != nil {
		binary.LittleEndian.PutUint32(b, uint32(len(v)))
	}
	if b := e.reserve(len(v)); b != nil {
		copy(b, v)
	}
}

// finish zero-fills everything after the encoded record.
func (e *encoder) finish() error {
	if e.err != nil {
		return e.err
	}
	clear(e.buf[e.off:])
	return nil
}

type decoder struct {
	buf []byte
	off int
	err error
}

func newDecoder(data []byte, want Discriminator) *decoder {
	d := &decoder{buf: data}
	got := d.take(DiscriminatorSize)
	if d.err == nil && Discriminator(got) != want {
		d.err = ErrDiscriminatorMismatch
	}
	return d
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || d.off+n > len(d.buf) {
		d.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, d.off, len(d.buf))
		return nil
	}
	out := d.buf[d.off : d.off+n]
	d.off += n
	return out
}

func (d *decoder) address() address.Address {
	var a address.Address
	if b := d.take(address.Size); b != nil {
		copy(a[:], b)
	}
	return a
}

func (d *decoder) u64() uint64 {
	if b := d.take(u64Size); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

func (d *decoder) boundedString(field string, max int) string {
	b := d.take(stringPrefixSize)
	if b == nil {
		return ""
	}
	n := int(binary.LittleEndian.Uint32(b))
	if n > max {
		d.err = fmt.Errorf("%w: stored %s is %d bytes, max %d", ErrSizeExceeded, field, n, max)
		return ""
	}
	return string(d.take(n))
}

// HasDiscriminator reports whether data starts with the given type tag.
func HasDiscriminator(data []byte, d Discriminator) bool {
	return len(data) >= DiscriminatorSize && Discriminator(data[:DiscriminatorSize]) == d
}
