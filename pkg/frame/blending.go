package frame

import (
	"fmt"

	"github.com/jpfielding/jxlmeta.go/pkg/fields"
)

// BlendMode selects how a frame combines with a previously saved one.
// Blending happens after the color transform.
type BlendMode uint32

const (
	// BlendReplace: sample = new
	BlendReplace BlendMode = iota
	// BlendAdd: sample = old + new
	BlendAdd
	// BlendBlend is alpha compositing, see the blend package
	BlendBlend
	// BlendAlphaWeightedAdd: sample = old + alpha * new
	BlendAlphaWeightedAdd
	// BlendMul: sample = old * new; color channels skip the color transform
	BlendMul
)

func (m BlendMode) String() string {
	switch m {
	case BlendReplace:
		return "replace"
	case BlendAdd:
		return "add"
	case BlendBlend:
		return "blend"
	case BlendAlphaWeightedAdd:
		return "alpha-weighted-add"
	case BlendMul:
		return "mul"
	default:
		return fmt.Sprintf("BlendMode(%d)", uint32(m))
	}
}

// ParseBlendMode is the inverse of String
func ParseBlendMode(s string) (BlendMode, error) {
	for m := BlendReplace; m <= BlendMul; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown blend mode %q", s)
}

// UsesAlpha is true for the modes weighted by an alpha channel
func (m BlendMode) UsesAlpha() bool {
	return m == BlendBlend || m == BlendAlphaWeightedAdd
}

var (
	blendModeEnc    = fields.NewU32Enc(fields.Val(0), fields.Val(1), fields.Val(2), fields.BitsOffset(2, 3))
	alphaChannelEnc = fields.NewU32Enc(fields.Val(0), fields.Val(1), fields.Val(2), fields.BitsOffset(3, 3))
	sourceEnc       = fields.NewU32Enc(fields.Val(0), fields.Val(1), fields.Val(2), fields.Val(3))
)

// BlendingInfo describes blending for the color channels or one extra channel
type BlendingInfo struct {
	Mode BlendMode
	// AlphaChannel is the extra channel used as alpha, only coded with more
	// than one extra channel
	AlphaChannel uint32
	// Clamp limits alpha (or the Mul factor) to [0, 1]
	Clamp bool
	// Source is the reference slot blended onto, 0-3
	Source uint32

	hasMultipleExtraChannels bool
	isPartialFrame           bool
}

func (b *BlendingInfo) Name() string { return "BlendingInfo" }

func (b *BlendingInfo) VisitFields(v *fields.Visitor) error {
	mode := uint32(b.Mode)
	if err := v.U32(blendModeEnc, uint32(BlendReplace), &mode); err != nil {
		return err
	}
	if mode > uint32(BlendMul) {
		return fmt.Errorf("%w: blend mode %d", fields.ErrMalformed, mode)
	}
	b.Mode = BlendMode(mode)
	if v.Conditional(b.hasMultipleExtraChannels && b.Mode.UsesAlpha()) {
		if err := v.U32(alphaChannelEnc, 0, &b.AlphaChannel); err != nil {
			return err
		}
	}
	if v.Conditional(b.Mode.UsesAlpha() || b.Mode == BlendMul) {
		if err := v.Bool(false, &b.Clamp); err != nil {
			return err
		}
	}
	// the previous frame is needed unless a full frame replaces it
	if v.Conditional(b.Mode != BlendReplace || b.isPartialFrame) {
		if err := v.U32(sourceEnc, 0, &b.Source); err != nil {
			return err
		}
	}
	return nil
}
