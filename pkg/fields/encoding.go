package fields

import (
	"fmt"

	"github.com/jpfielding/jxlmeta.go/pkg/bitio"
)

// distrKind distinguishes the U32 variants
type distrKind uint8

const (
	kindVal distrKind = iota
	kindBits
	kindBitsOffset
)

// U32Distr is one of the four variants a U32Enc chooses between
type U32Distr struct {
	kind  distrKind
	value uint32 // constant for Val, offset for BitsOffset
	nbits int
}

// Val is a constant costing no bits beyond the selector
func Val(v uint32) U32Distr {
	return U32Distr{kind: kindVal, value: v}
}

// Bits is a raw n-bit value
func Bits(n int) U32Distr {
	return U32Distr{kind: kindBits, nbits: n}
}

// BitsOffset is a raw n-bit value added to offset
func BitsOffset(n int, offset uint32) U32Distr {
	return U32Distr{kind: kindBitsOffset, nbits: n, value: offset}
}

// ExtraBits returns the payload width following the selector
func (d U32Distr) ExtraBits() int {
	return d.nbits
}

// Contains returns true if v is representable by this variant
func (d U32Distr) Contains(v uint32) bool {
	switch d.kind {
	case kindVal:
		return v == d.value
	case kindBits:
		return uint64(v) < uint64(1)<<d.nbits
	case kindBitsOffset:
		return v >= d.value && uint64(v-d.value) < uint64(1)<<d.nbits
	}
	return false
}

func (d U32Distr) String() string {
	switch d.kind {
	case kindVal:
		return fmt.Sprintf("Val(%d)", d.value)
	case kindBits:
		return fmt.Sprintf("Bits(%d)", d.nbits)
	default:
		return fmt.Sprintf("BitsOffset(%d, %d)", d.nbits, d.value)
	}
}

func (d U32Distr) read(r *bitio.BitReader) (uint32, error) {
	if d.kind == kindVal {
		return d.value, nil
	}
	raw, err := r.ReadBits(d.nbits)
	if err != nil {
		return 0, err
	}
	v := raw + uint64(d.value)
	if v > 0xFFFFFFFF {
		return 0, fmt.Errorf("%w: %s decoded %d", ErrMalformed, d, v)
	}
	return uint32(v), nil
}

func (d U32Distr) write(w *bitio.BitWriter, v uint32) error {
	switch d.kind {
	case kindBits:
		return w.WriteBits(uint64(v), d.nbits)
	case kindBitsOffset:
		return w.WriteBits(uint64(v-d.value), d.nbits)
	}
	return nil
}

// U32Enc selects among four variants with a 2-bit selector
type U32Enc [4]U32Distr

// NewU32Enc builds an encoding from its four variants in selector order
func NewU32Enc(d0, d1, d2, d3 U32Distr) U32Enc {
	return U32Enc{d0, d1, d2, d3}
}

// Selector returns the lowest-indexed variant containing v
func (e U32Enc) Selector(v uint32) (int, error) {
	for i, d := range e {
		if d.Contains(v) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %d not representable by %v", ErrOutOfRange, v, e)
}

// ReadU32 decodes a selector and its payload
func ReadU32(r *bitio.BitReader, e U32Enc) (uint32, error) {
	sel, err := r.ReadBits(2)
	if err != nil {
		return 0, err
	}
	return e[sel].read(r)
}

// WriteU32 encodes v with the lowest-indexed variant that holds it
func WriteU32(w *bitio.BitWriter, e U32Enc, v uint32) error {
	sel, err := e.Selector(v)
	if err != nil {
		return err
	}
	if err := w.WriteBits(uint64(sel), 2); err != nil {
		return err
	}
	return e[sel].write(w, v)
}

// ReadU64 decodes the variable length 64-bit coding:
// 0, 1+4 bits, 17+8 bits, or 12 bits followed by 8-bit groups (last 4 bits).
func ReadU64(r *bitio.BitReader) (uint64, error) {
	sel, err := r.ReadBits(2)
	if err != nil {
		return 0, err
	}
	switch sel {
	case 0:
		return 0, nil
	case 1:
		v, err := r.ReadBits(4)
		return v + 1, err
	case 2:
		v, err := r.ReadBits(8)
		return v + 17, err
	}
	value, err := r.ReadBits(12)
	if err != nil {
		return 0, err
	}
	for shift := 12; ; shift += 8 {
		more, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		if !more {
			break
		}
		if shift == 60 {
			v, err := r.ReadBits(4)
			if err != nil {
				return 0, err
			}
			value |= v << shift
			break
		}
		v, err := r.ReadBits(8)
		if err != nil {
			return 0, err
		}
		value |= v << shift
	}
	return value, nil
}

// WriteU64 is the inverse of ReadU64
func WriteU64(w *bitio.BitWriter, value uint64) error {
	switch {
	case value == 0:
		return w.WriteBits(0, 2)
	case value <= 16:
		if err := w.WriteBits(1, 2); err != nil {
			return err
		}
		return w.WriteBits(value-1, 4)
	case value <= 272:
		if err := w.WriteBits(2, 2); err != nil {
			return err
		}
		return w.WriteBits(value-17, 8)
	}
	if err := w.WriteBits(3, 2); err != nil {
		return err
	}
	if err := w.WriteBits(value&0xFFF, 12); err != nil {
		return err
	}
	value >>= 12
	shift := 12
	for value > 0 && shift < 60 {
		if err := w.WriteBits(1, 1); err != nil {
			return err
		}
		if err := w.WriteBits(value&0xFF, 8); err != nil {
			return err
		}
		value >>= 8
		shift += 8
	}
	if value > 0 {
		// 4 remaining bits close the sequence without a stop bit
		if err := w.WriteBits(1, 1); err != nil {
			return err
		}
		return w.WriteBits(value&0xF, 4)
	}
	return w.WriteBits(0, 1)
}

// PackSigned maps signed values to unsigned: 0, -1, 1, -2, ... -> 0, 1, 2, 3, ...
func PackSigned(v int32) uint32 {
	return uint32(v<<1) ^ uint32(v>>31)
}

// UnpackSigned is the inverse of PackSigned
func UnpackSigned(u uint32) int32 {
	return int32(u>>1) ^ -int32(u&1)
}
