package color

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnsupportedTransform signals a conversion that requires profile math
var ErrUnsupportedTransform = errors.New("unsupported color transform")

// Transformer converts rows of planar samples between encodings in place.
// Implementations backed by a CMS can be swapped in where ICC profiles matter.
type Transformer interface {
	// Transform converts r, g, b (equal length) from one encoding to another.
	// Gray input carries identical planes and produces identical planes.
	Transform(from, to Encoding, r, g, b []float32) error
}

// Default handles encodings sharing white point and primaries: any mix of
// sRGB, linear, BT.709 and pure gamma transfer functions plus gray <-> RGB.
var Default Transformer = analyticTransformer{}

type analyticTransformer struct{}

// Check returns nil if Default can convert between the encodings
func Check(from, to Encoding) error {
	if len(from.ICC) != 0 || len(to.ICC) != 0 {
		return fmt.Errorf("%w: ICC profiles need a CMS", ErrUnsupportedTransform)
	}
	if from.ColorSpace == ColorSpaceXYB || to.ColorSpace == ColorSpaceXYB ||
		from.ColorSpace == ColorSpaceUnknown || to.ColorSpace == ColorSpaceUnknown {
		return fmt.Errorf("%w: %s -> %s", ErrUnsupportedTransform, from, to)
	}
	if from.WhitePoint != to.WhitePoint {
		return fmt.Errorf("%w: white point %s -> %s", ErrUnsupportedTransform, from, to)
	}
	if !from.IsGray() && !to.IsGray() && from.Primaries != to.Primaries {
		return fmt.Errorf("%w: primaries %s -> %s", ErrUnsupportedTransform, from, to)
	}
	for _, tf := range []TransferFunction{from.Transfer, to.Transfer} {
		switch tf {
		case TransferSRGB, TransferLinear, TransferBT709, TransferGamma:
		default:
			return fmt.Errorf("%w: transfer function %s -> %s", ErrUnsupportedTransform, from, to)
		}
	}
	return nil
}

func (analyticTransformer) Transform(from, to Encoding, r, g, b []float32) error {
	if err := Check(from, to); err != nil {
		return err
	}
	if len(r) != len(g) || len(r) != len(b) {
		return fmt.Errorf("mismatched row lengths %d/%d/%d", len(r), len(g), len(b))
	}
	for i := range r {
		lr := toLinear(from, r[i])
		lg := toLinear(from, g[i])
		lb := toLinear(from, b[i])
		if to.IsGray() && !from.IsGray() {
			// Rec. 709 luminance
			y := 0.2126*lr + 0.7152*lg + 0.0722*lb
			lr, lg, lb = y, y, y
		}
		r[i] = fromLinear(to, lr)
		g[i] = fromLinear(to, lg)
		b[i] = fromLinear(to, lb)
	}
	return nil
}

func toLinear(e Encoding, v float32) float32 {
	x := float64(v)
	sign := 1.0
	if x < 0 {
		sign, x = -1, -x
	}
	switch e.Transfer {
	case TransferSRGB:
		if x <= 0.04045 {
			x /= 12.92
		} else {
			x = math.Pow((x+0.055)/1.055, 2.4)
		}
	case TransferBT709:
		if x < 0.081 {
			x /= 4.5
		} else {
			x = math.Pow((x+0.099)/1.099, 1/0.45)
		}
	case TransferGamma:
		x = math.Pow(x, 1/e.Gamma)
	}
	return float32(sign * x)
}

func fromLinear(e Encoding, v float32) float32 {
	x := float64(v)
	sign := 1.0
	if x < 0 {
		sign, x = -1, -x
	}
	switch e.Transfer {
	case TransferSRGB:
		if x <= 0.0031308 {
			x *= 12.92
		} else {
			x = 1.055*math.Pow(x, 1/2.4) - 0.055
		}
	case TransferBT709:
		if x < 0.018 {
			x *= 4.5
		} else {
			x = 1.099*math.Pow(x, 0.45) - 0.099
		}
	case TransferGamma:
		x = math.Pow(x, e.Gamma)
	}
	return float32(sign * x)
}
