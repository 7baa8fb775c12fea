package headers

import (
	"fmt"

	"github.com/jpfielding/jxlmeta.go/pkg/color"
	"github.com/jpfielding/jxlmeta.go/pkg/fields"
)

// bitstream values of the color enums
var (
	colorSpaceCodes = map[color.ColorSpace]uint32{
		color.ColorSpaceRGB: 0, color.ColorSpaceGray: 1, color.ColorSpaceXYB: 2, color.ColorSpaceUnknown: 3,
	}
	whitePointCodes = map[color.WhitePoint]uint32{
		color.WhitePointD65: 1, color.WhitePointCustom: 2, color.WhitePointE: 10, color.WhitePointDCI: 11,
	}
	primariesCodes = map[color.Primaries]uint32{
		color.PrimariesSRGB: 1, color.PrimariesCustom: 2, color.Primaries2100: 9, color.PrimariesP3: 11,
	}
	transferCodes = map[color.TransferFunction]uint32{
		color.TransferBT709: 1, color.TransferUnknown: 2, color.TransferLinear: 8, color.TransferSRGB: 13,
		color.TransferPQ: 16, color.TransferDCI: 17, color.TransferHLG: 18,
	}
)

// visitEnum codes an enum through its bitstream value table
func visitEnum[E comparable](v *fields.Visitor, codes map[E]uint32, def E, value *E) error {
	code, ok := codes[*value]
	if !ok && v.Direction() == fields.DirWrite {
		return fmt.Errorf("%w: enum value %v", fields.ErrOutOfRange, *value)
	}
	if err := v.U32(enumEnc, codes[def], &code); err != nil {
		return err
	}
	for e, c := range codes {
		if c == code {
			*value = e
			return nil
		}
	}
	return fmt.Errorf("%w: enum code %d", fields.ErrMalformed, code)
}

var customxyEnc = fields.NewU32Enc(fields.Bits(19), fields.BitsOffset(19, 524288), fields.BitsOffset(20, 1048576), fields.BitsOffset(21, 2097152))

// CIExy is a chromaticity scaled by 1e6
type CIExy struct {
	X, Y int32
}

func (c *CIExy) Name() string { return "Customxy" }

func (c *CIExy) VisitFields(v *fields.Visitor) error {
	for _, p := range []*int32{&c.X, &c.Y} {
		u := fields.PackSigned(*p)
		if err := v.U32(customxyEnc, 0, &u); err != nil {
			return err
		}
		*p = fields.UnpackSigned(u)
	}
	return nil
}

// gammaMul scales the coded gamma
const gammaMul = 10000000

// ColorEncoding codes a color.Encoding. ICC profiles are carried outside
// the header, only their presence is signalled.
type ColorEncoding struct {
	AllDefaultCache bool

	WantICC bool
	Enc     color.Encoding

	White            CIExy
	Red, Green, Blue CIExy
}

// NewColorEncoding wraps e
func NewColorEncoding(e color.Encoding) ColorEncoding {
	return ColorEncoding{Enc: e, WantICC: len(e.ICC) != 0}
}

func (c *ColorEncoding) Name() string { return "ColorEncoding" }

func (c *ColorEncoding) VisitFields(v *fields.Visitor) error {
	if skip, err := v.AllDefault(c, &c.AllDefaultCache); err != nil || skip {
		return err
	}
	if err := v.Bool(false, &c.WantICC); err != nil {
		return err
	}
	e := &c.Enc
	if err := visitEnum(v, colorSpaceCodes, color.ColorSpaceRGB, &e.ColorSpace); err != nil {
		return err
	}
	if v.Conditional(!c.WantICC) {
		if v.Conditional(e.ColorSpace != color.ColorSpaceXYB) {
			if err := visitEnum(v, whitePointCodes, color.WhitePointD65, &e.WhitePoint); err != nil {
				return err
			}
			if v.Conditional(e.WhitePoint == color.WhitePointCustom) {
				if err := v.VisitNested(&c.White); err != nil {
					return err
				}
			}
		}
		if v.Conditional(e.ColorSpace != color.ColorSpaceXYB && e.ColorSpace != color.ColorSpaceGray) {
			if err := visitEnum(v, primariesCodes, color.PrimariesSRGB, &e.Primaries); err != nil {
				return err
			}
			if v.Conditional(e.Primaries == color.PrimariesCustom) {
				for _, p := range []*CIExy{&c.Red, &c.Green, &c.Blue} {
					if err := v.VisitNested(p); err != nil {
						return err
					}
				}
			}
		}
		if err := c.visitTransfer(v); err != nil {
			return err
		}
		if err := visitEnum(v, intentCodes, color.IntentRelative, &e.Intent); err != nil {
			return err
		}
	}
	if v.IsReading() && e.ColorSpace == color.ColorSpaceXYB {
		e.WhitePoint, e.Primaries, e.Transfer = color.WhitePointD65, color.PrimariesSRGB, color.TransferLinear
	}
	return nil
}

var intentCodes = map[color.RenderingIntent]uint32{
	color.IntentPerceptual: 0, color.IntentRelative: 1, color.IntentSaturation: 2, color.IntentAbsolute: 3,
}

func (c *ColorEncoding) visitTransfer(v *fields.Visitor) error {
	e := &c.Enc
	// XYB implies a linear transfer function
	if !v.Conditional(e.ColorSpace != color.ColorSpaceXYB) {
		return nil
	}
	haveGamma := e.Transfer == color.TransferGamma
	if err := v.Bool(false, &haveGamma); err != nil {
		return err
	}
	if v.Conditional(haveGamma) {
		g := uint32(e.Gamma*gammaMul + 0.5)
		if err := v.Bits(24, gammaMul, &g); err != nil {
			return err
		}
		if g == 0 || g > gammaMul {
			return fmt.Errorf("%w: gamma %d/%d", fields.ErrMalformed, g, gammaMul)
		}
		e.Transfer = color.TransferGamma
		e.Gamma = float64(g) / gammaMul
		return nil
	}
	return visitEnum(v, transferCodes, color.TransferSRGB, &e.Transfer)
}

// ToneMapping describes the display luminance the samples are graded for
type ToneMapping struct {
	AllDefaultCache bool

	IntensityTarget      float32
	MinNits              float32
	RelativeToMaxDisplay bool
	LinearBelow          float32
}

func (t *ToneMapping) Name() string { return "ToneMapping" }

func (t *ToneMapping) VisitFields(v *fields.Visitor) error {
	if skip, err := v.AllDefault(t, &t.AllDefaultCache); err != nil || skip {
		return err
	}
	if err := v.F16(255, &t.IntensityTarget); err != nil {
		return err
	}
	if err := v.F16(0, &t.MinNits); err != nil {
		return err
	}
	if err := v.Bool(false, &t.RelativeToMaxDisplay); err != nil {
		return err
	}
	if err := v.F16(0, &t.LinearBelow); err != nil {
		return err
	}
	if v.IsReading() && (t.IntensityTarget <= 0 || t.MinNits < 0 || t.MinNits > t.IntensityTarget) {
		return fmt.Errorf("%w: tone mapping %v..%v nits", fields.ErrMalformed, t.MinNits, t.IntensityTarget)
	}
	return nil
}
