package signature

import (
	"fmt"
)

// SignerBitmap records which positions of an ordered stake table contributed
// to an aggregated signature. Bits are big endian within each byte.
type SignerBitmap struct {
	Bits []byte
	Len  int
}

// NewSignerBitmap allocates a byte slice of minimal size that can hold n bits.
func NewSignerBitmap(n int) SignerBitmap {
	return SignerBitmap{Bits: make([]byte, (n+7)>>3), Len: n}
}

// Set sets the bit at index i. The function panics if i is out of range.
func (b SignerBitmap) Set(i int) {
	b.check(i)
	b.Bits[i>>3] |= byte(1 << (7 - uint(i&7)))
}

// Clear clears the bit at index i.
func (b SignerBitmap) Clear(i int) {
	b.check(i)
	b.Bits[i>>3] &= ^byte(1 << (7 - uint(i&7)))
}

// IsSet returns whether the bit at index i is set.
func (b SignerBitmap) IsSet(i int) bool {
	b.check(i)
	return (b.Bits[i>>3]>>(7-uint(i&7)))&1 == 1
}

// Count returns the number of set bits.
func (b SignerBitmap) Count() int {
	n := 0
	for i := 0; i < b.Len; i++ {
		if b.IsSet(i) {
			n++
		}
	}
	return n
}

// Indices lists the set positions in increasing order.
func (b SignerBitmap) Indices() []int {
	out := make([]int, 0, b.Count())
	for i := 0; i < b.Len; i++ {
		if b.IsSet(i) {
			out = append(out, i)
		}
	}
	return out
}

// Validate checks that the encoding is consistent with a stake table of size n:
// correct length, and no bits set in the padding of the last byte.
func (b SignerBitmap) Validate(n int) error {
	if b.Len != n || len(b.Bits) != (n+7)>>3 {
		return fmt.Errorf("bitmap of length %d does not match stake table of size %d: %w", b.Len, n, ErrInvalidInputs)
	}
	if pad := n & 7; pad != 0 {
		if b.Bits[len(b.Bits)-1]&(byte(0xff)>>uint(pad)) != 0 {
			return fmt.Errorf("non-zero padding bits in signer bitmap: %w", ErrInvalidInputs)
		}
	}
	return nil
}

func (b SignerBitmap) check(i int) {
	if i < 0 || i >= b.Len {
		panic(fmt.Sprintf("signer index %d out of range [0, %d)", i, b.Len))
	}
}
