// Package headers holds the codestream-wide metadata every frame refers to.
package headers

import (
	"errors"
	"fmt"

	"github.com/jpfielding/jxlmeta.go/pkg/fields"
)

// ErrInvalidDimensions signals a size that cannot be declared
var ErrInvalidDimensions = errors.New("invalid image dimensions")

var sizeEnc = fields.NewU32Enc(fields.BitsOffset(9, 1), fields.BitsOffset(13, 1), fields.BitsOffset(18, 1), fields.BitsOffset(30, 1))

// aspect ratios indexed by the 3-bit ratio field, 0 means explicit xsize
var ratios = [8][2]uint64{{0, 0}, {1, 1}, {12, 10}, {4, 3}, {3, 2}, {16, 9}, {5, 4}, {2, 1}}

func fixedAspectRatio(ratio uint32, ysize uint64) uint64 {
	r := ratios[ratio]
	return ysize * r[0] / r[1]
}

func findAspectRatio(xsize, ysize uint64) uint32 {
	for i := uint32(1); i < uint32(len(ratios)); i++ {
		if xsize == fixedAspectRatio(i, ysize) {
			return i
		}
	}
	return 0
}

// SizeHeader declares the main image size. Multiples of 8 up to 256 use a
// short form and common aspect ratios omit the width.
type SizeHeader struct {
	Small           bool
	YSizeDiv8Minus1 uint32
	YSizeRaw        uint32
	Ratio           uint32
	XSizeDiv8Minus1 uint32
	XSizeRaw        uint32
}

func (s *SizeHeader) Name() string { return "SizeHeader" }

func (s *SizeHeader) VisitFields(v *fields.Visitor) error {
	if err := v.Bool(false, &s.Small); err != nil {
		return err
	}
	if v.Conditional(s.Small) {
		if err := v.Bits(5, 0, &s.YSizeDiv8Minus1); err != nil {
			return err
		}
	}
	if v.Conditional(!s.Small) {
		if err := v.U32(sizeEnc, 1, &s.YSizeRaw); err != nil {
			return err
		}
	}
	if err := v.Bits(3, 0, &s.Ratio); err != nil {
		return err
	}
	if v.Conditional(s.Ratio == 0 && s.Small) {
		if err := v.Bits(5, 0, &s.XSizeDiv8Minus1); err != nil {
			return err
		}
	}
	if v.Conditional(s.Ratio == 0 && !s.Small) {
		if err := v.U32(sizeEnc, 1, &s.XSizeRaw); err != nil {
			return err
		}
	}
	return nil
}

// Set picks the shortest representation of xsize by ysize
func (s *SizeHeader) Set(xsize, ysize uint64) error {
	if xsize == 0 || ysize == 0 || xsize > 1<<30 || ysize > 1<<30 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, xsize, ysize)
	}
	*s = SizeHeader{}
	s.Ratio = findAspectRatio(xsize, ysize)
	s.Small = ysize <= 256 && ysize%8 == 0 && (s.Ratio != 0 || (xsize <= 256 && xsize%8 == 0))
	if s.Small {
		s.YSizeDiv8Minus1 = uint32(ysize/8 - 1)
	} else {
		s.YSizeRaw = uint32(ysize)
	}
	if s.Ratio == 0 {
		if s.Small {
			s.XSizeDiv8Minus1 = uint32(xsize/8 - 1)
		} else {
			s.XSizeRaw = uint32(xsize)
		}
	}
	return nil
}

// YSize in pixels
func (s *SizeHeader) YSize() uint64 {
	if s.Small {
		return uint64(s.YSizeDiv8Minus1+1) * 8
	}
	return uint64(s.YSizeRaw)
}

// XSize in pixels
func (s *SizeHeader) XSize() uint64 {
	if s.Ratio != 0 {
		return fixedAspectRatio(s.Ratio, s.YSize())
	}
	if s.Small {
		return uint64(s.XSizeDiv8Minus1+1) * 8
	}
	return uint64(s.XSizeRaw)
}

var (
	previewDiv8Enc = fields.NewU32Enc(fields.Val(16), fields.Val(32), fields.BitsOffset(5, 1), fields.BitsOffset(9, 33))
	previewEnc     = fields.NewU32Enc(fields.BitsOffset(6, 1), fields.BitsOffset(8, 65), fields.BitsOffset(10, 321), fields.BitsOffset(12, 1345))
)

// MaxPreviewSize bounds both preview dimensions
const MaxPreviewSize = 4096

// PreviewHeader declares the size of the optional preview frame
type PreviewHeader struct {
	Div8      bool
	YSizeDiv8 uint32
	YSizeRaw  uint32
	Ratio     uint32
	XSizeDiv8 uint32
	XSizeRaw  uint32
}

func (p *PreviewHeader) Name() string { return "PreviewHeader" }

func (p *PreviewHeader) VisitFields(v *fields.Visitor) error {
	if err := v.Bool(false, &p.Div8); err != nil {
		return err
	}
	if v.Conditional(p.Div8) {
		if err := v.U32(previewDiv8Enc, 1, &p.YSizeDiv8); err != nil {
			return err
		}
	}
	if v.Conditional(!p.Div8) {
		if err := v.U32(previewEnc, 1, &p.YSizeRaw); err != nil {
			return err
		}
	}
	if err := v.Bits(3, 0, &p.Ratio); err != nil {
		return err
	}
	if v.Conditional(p.Ratio == 0 && p.Div8) {
		if err := v.U32(previewDiv8Enc, 1, &p.XSizeDiv8); err != nil {
			return err
		}
	}
	if v.Conditional(p.Ratio == 0 && !p.Div8) {
		if err := v.U32(previewEnc, 1, &p.XSizeRaw); err != nil {
			return err
		}
	}
	return nil
}

// Set picks the shortest representation of xsize by ysize
func (p *PreviewHeader) Set(xsize, ysize uint64) error {
	if xsize == 0 || ysize == 0 || xsize > MaxPreviewSize || ysize > MaxPreviewSize {
		return fmt.Errorf("%w: preview %dx%d", ErrInvalidDimensions, xsize, ysize)
	}
	*p = PreviewHeader{}
	p.Ratio = findAspectRatio(xsize, ysize)
	p.Div8 = ysize%8 == 0 && (p.Ratio != 0 || xsize%8 == 0)
	if p.Div8 {
		p.YSizeDiv8 = uint32(ysize / 8)
	} else {
		p.YSizeRaw = uint32(ysize)
	}
	if p.Ratio == 0 {
		if p.Div8 {
			p.XSizeDiv8 = uint32(xsize / 8)
		} else {
			p.XSizeRaw = uint32(xsize)
		}
	}
	return nil
}

// YSize in pixels
func (p *PreviewHeader) YSize() uint64 {
	if p.Div8 {
		return uint64(p.YSizeDiv8) * 8
	}
	return uint64(p.YSizeRaw)
}

// XSize in pixels
func (p *PreviewHeader) XSize() uint64 {
	if p.Ratio != 0 {
		return fixedAspectRatio(p.Ratio, p.YSize())
	}
	if p.Div8 {
		return uint64(p.XSizeDiv8) * 8
	}
	return uint64(p.XSizeRaw)
}

var (
	tpsNumEnc   = fields.NewU32Enc(fields.Val(100), fields.Val(1000), fields.BitsOffset(10, 1), fields.BitsOffset(30, 1))
	tpsDenEnc   = fields.NewU32Enc(fields.Val(1), fields.Val(1001), fields.BitsOffset(8, 1), fields.BitsOffset(10, 1))
	numLoopsEnc = fields.NewU32Enc(fields.Val(0), fields.Bits(3), fields.Bits(16), fields.Bits(32))
)

// AnimationHeader declares the tick rate shared by all frame durations
type AnimationHeader struct {
	TpsNumerator   uint32
	TpsDenominator uint32
	// NumLoops of 0 repeats forever
	NumLoops      uint32
	HaveTimecodes bool
}

func (a *AnimationHeader) Name() string { return "AnimationHeader" }

func (a *AnimationHeader) VisitFields(v *fields.Visitor) error {
	if err := v.U32(tpsNumEnc, 100, &a.TpsNumerator); err != nil {
		return err
	}
	if err := v.U32(tpsDenEnc, 1, &a.TpsDenominator); err != nil {
		return err
	}
	if err := v.U32(numLoopsEnc, 0, &a.NumLoops); err != nil {
		return err
	}
	return v.Bool(false, &a.HaveTimecodes)
}

// TicksPerSecond as a float
func (a *AnimationHeader) TicksPerSecond() float64 {
	if a.TpsDenominator == 0 {
		return 0
	}
	return float64(a.TpsNumerator) / float64(a.TpsDenominator)
}
