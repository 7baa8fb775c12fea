package headers

import (
	"fmt"

	"github.com/jpfielding/jxlmeta.go/pkg/fields"
)

var (
	intBitsEnc   = fields.NewU32Enc(fields.Val(8), fields.Val(10), fields.Val(12), fields.BitsOffset(6, 1))
	floatBitsEnc = fields.NewU32Enc(fields.Val(32), fields.Val(16), fields.Val(24), fields.BitsOffset(6, 1))
)

// BitDepth of the samples as stored in the original image
type BitDepth struct {
	FloatingPointSample bool
	BitsPerSample       uint32
	// ExponentBitsPerSample is zero for integer samples
	ExponentBitsPerSample uint32
}

func (b *BitDepth) Name() string { return "BitDepth" }

func (b *BitDepth) VisitFields(v *fields.Visitor) error {
	if err := v.Bool(false, &b.FloatingPointSample); err != nil {
		return err
	}
	if v.Conditional(!b.FloatingPointSample) {
		if err := v.U32(intBitsEnc, 8, &b.BitsPerSample); err != nil {
			return err
		}
		b.ExponentBitsPerSample = 0
		if b.BitsPerSample > 31 {
			return fmt.Errorf("%w: %d bits per integer sample", fields.ErrMalformed, b.BitsPerSample)
		}
		return nil
	}

	if err := v.U32(floatBitsEnc, 32, &b.BitsPerSample); err != nil {
		return err
	}
	// exponent bits are coded minus one
	expMinus1 := b.ExponentBitsPerSample - 1
	if err := v.Bits(4, 8-1, &expMinus1); err != nil {
		return err
	}
	b.ExponentBitsPerSample = expMinus1 + 1
	if b.ExponentBitsPerSample < 2 || b.ExponentBitsPerSample > 8 {
		return fmt.Errorf("%w: %d exponent bits", fields.ErrMalformed, b.ExponentBitsPerSample)
	}
	mantissa := int(b.BitsPerSample) - int(b.ExponentBitsPerSample) - 1
	if mantissa < 2 || mantissa > 23 {
		return fmt.Errorf("%w: %d mantissa bits", fields.ErrMalformed, mantissa)
	}
	return nil
}

// ExtraChannelType names what an extra channel holds
type ExtraChannelType uint32

const (
	ExtraChannelAlpha         ExtraChannelType = 0
	ExtraChannelDepth         ExtraChannelType = 1
	ExtraChannelSpotColor     ExtraChannelType = 2
	ExtraChannelSelectionMask ExtraChannelType = 3
	ExtraChannelBlack         ExtraChannelType = 4
	ExtraChannelCFA           ExtraChannelType = 5
	ExtraChannelThermal       ExtraChannelType = 6
	ExtraChannelUnknown       ExtraChannelType = 15
	ExtraChannelOptional      ExtraChannelType = 16
)

func (t ExtraChannelType) String() string {
	switch t {
	case ExtraChannelAlpha:
		return "alpha"
	case ExtraChannelDepth:
		return "depth"
	case ExtraChannelSpotColor:
		return "spot-color"
	case ExtraChannelSelectionMask:
		return "selection-mask"
	case ExtraChannelBlack:
		return "black"
	case ExtraChannelCFA:
		return "cfa"
	case ExtraChannelThermal:
		return "thermal"
	case ExtraChannelUnknown:
		return "unknown"
	case ExtraChannelOptional:
		return "optional"
	default:
		return fmt.Sprintf("reserved%d", uint32(t)-7)
	}
}

// enumEnc codes every small enumeration of the metadata
var enumEnc = fields.NewU32Enc(fields.Val(0), fields.Val(1), fields.BitsOffset(4, 2), fields.BitsOffset(6, 18))

var (
	dimShiftEnc   = fields.NewU32Enc(fields.Val(0), fields.Val(3), fields.Val(4), fields.BitsOffset(3, 1))
	cfaChannelEnc = fields.NewU32Enc(fields.Val(1), fields.Bits(2), fields.BitsOffset(4, 3), fields.BitsOffset(8, 19))
)

// ExtraChannelInfo describes one non-color channel
type ExtraChannelInfo struct {
	AllDefaultCache bool

	Type     ExtraChannelType
	BitDepth BitDepth
	// DimShift downsamples the channel by 1<<DimShift in both directions
	DimShift uint32
	Label    string

	AlphaAssociated bool
	SpotColor       [4]float32
	CFAChannel      uint32
}

func (e *ExtraChannelInfo) Name() string { return "ExtraChannelInfo" }

func (e *ExtraChannelInfo) VisitFields(v *fields.Visitor) error {
	if skip, err := v.AllDefault(e, &e.AllDefaultCache); err != nil || skip {
		return err
	}
	typ := uint32(e.Type)
	if err := v.U32(enumEnc, uint32(ExtraChannelAlpha), &typ); err != nil {
		return err
	}
	if typ > uint32(ExtraChannelOptional) {
		return fmt.Errorf("%w: extra channel type %d", fields.ErrMalformed, typ)
	}
	e.Type = ExtraChannelType(typ)
	if err := v.VisitNested(&e.BitDepth); err != nil {
		return err
	}
	if err := v.U32(dimShiftEnc, 0, &e.DimShift); err != nil {
		return err
	}
	if e.DimShift > 3 {
		return fmt.Errorf("%w: dim_shift %d", fields.ErrMalformed, e.DimShift)
	}
	if err := fields.VisitNameString(v, &e.Label); err != nil {
		return err
	}
	if v.Conditional(e.Type == ExtraChannelAlpha) {
		if err := v.Bool(false, &e.AlphaAssociated); err != nil {
			return err
		}
	}
	if v.Conditional(e.Type == ExtraChannelSpotColor) {
		for c := range e.SpotColor {
			if err := v.F16(0, &e.SpotColor[c]); err != nil {
				return err
			}
		}
	}
	if v.Conditional(e.Type == ExtraChannelCFA) {
		if err := v.U32(cfaChannelEnc, 1, &e.CFAChannel); err != nil {
			return err
		}
	}
	return nil
}

// Size is the channel extent for an image extent of size
func (e *ExtraChannelInfo) Size(size uint64) uint64 {
	return (size + (1 << e.DimShift) - 1) >> e.DimShift
}
