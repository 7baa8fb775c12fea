package fields

import (
	"fmt"
	"math"
)

// F16 visits an IEEE 754 binary16 field. Infinities and NaN are rejected in
// both directions.
func (v *Visitor) F16(def float32, value *float32) error {
	switch v.dir {
	case DirRead:
		raw, err := v.r.ReadBits(16)
		if err != nil {
			return err
		}
		f, err := halfToFloat(uint16(raw))
		if err != nil {
			return err
		}
		*value = f
	case DirWrite:
		h, err := floatToHalf(*value)
		if err != nil {
			return err
		}
		if err := v.w.WriteBits(uint64(h), 16); err != nil {
			return err
		}
	case DirSetDefault:
		*value = def
	}
	v.track(*value == def)
	return nil
}

func halfToFloat(h uint16) (float32, error) {
	sign := uint32(h>>15) << 31
	exp := uint32(h>>10) & 0x1F
	mant := uint32(h) & 0x3FF
	switch {
	case exp == 0x1F:
		return 0, fmt.Errorf("%w: non-finite f16 %#04x", ErrMalformed, h)
	case exp == 0:
		// subnormal: mant * 2^-24
		f := float32(mant) * (1.0 / (1 << 24))
		if sign != 0 {
			f = -f
		}
		return f, nil
	}
	return math.Float32frombits(sign | (exp+112)<<23 | mant<<13), nil
}

func floatToHalf(f float32) (uint16, error) {
	if math.IsNaN(float64(f)) || math.Abs(float64(f)) > 65504 {
		return 0, fmt.Errorf("%w: %v not representable as f16", ErrOutOfRange, f)
	}
	bits := math.Float32bits(f)
	sign := uint16(bits>>16) & 0x8000
	abs := math.Float32frombits(bits &^ (1 << 31))
	if abs < 1.0/(1<<14) {
		// subnormal or zero
		return sign | uint16(math.RoundToEven(float64(abs)*(1<<24))), nil
	}
	exp := int(bits>>23&0xFF) - 127
	mant := bits & 0x7FFFFF
	// round to nearest even on the 13 dropped bits
	half := uint32(exp+15)<<10 | mant>>13
	rem := mant & 0x1FFF
	if rem > 0x1000 || (rem == 0x1000 && half&1 == 1) {
		half++
	}
	if half >= 0x7C00 {
		return 0, fmt.Errorf("%w: %v not representable as f16", ErrOutOfRange, f)
	}
	return sign | uint16(half), nil
}
