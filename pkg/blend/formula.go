// Package blend implements the per-pixel blend modes, the four reference
// slots frames are saved into, and a compositor that places a decoded layer
// onto its blend source.
//
// Samples are nominal-range floats after the color transform. When the image
// has no alpha channel every alpha is 1.
package blend

import (
	"fmt"

	"github.com/jpfielding/jxlmeta.go/pkg/frame"
)

// Pixel holds the inputs of one blended sample
type Pixel struct {
	Old, New           float32
	OldAlpha, NewAlpha float32
}

// Channel describes the sample being blended
type Channel struct {
	// IsAlpha marks the alpha channel the mode is weighted by
	IsAlpha bool
	// Associated marks premultiplied color
	Associated bool
	// Clamp limits the new alpha (or the Mul factor) to [0, 1]
	Clamp bool
}

// Replace returns new
func Replace(_, nw float32) float32 { return nw }

// Add returns old + new
func Add(old, nw float32) float32 { return old + nw }

// Mul returns old * new
func Mul(old, nw float32) float32 { return old * nw }

// UnionAlpha is the alpha of new composited over old: old + new*(1-old)
func UnionAlpha(oldAlpha, newAlpha float32) float32 {
	return oldAlpha + newAlpha*(1-oldAlpha)
}

// Over composites new over old. Associated color is already premultiplied.
// Unassociated color is weighted by both alphas and divided by the union
// alpha; a fully transparent result is 0.
func Over(p Pixel, associated bool) float32 {
	if associated {
		return (1-p.NewAlpha)*p.Old + p.New
	}
	alpha := UnionAlpha(p.OldAlpha, p.NewAlpha)
	if alpha == 0 {
		return 0
	}
	return ((1-p.NewAlpha)*p.Old*p.OldAlpha + p.NewAlpha*p.New) / alpha
}

// AlphaWeightedAdd returns old + alpha*new
func AlphaWeightedAdd(old, nw, alpha float32) float32 {
	return old + alpha*nw
}

func clamp01(v float32) float32 {
	return min(max(v, 0), 1)
}

// Sample blends one sample with mode
func Sample(mode frame.BlendMode, ch Channel, p Pixel) (float32, error) {
	if ch.Clamp {
		p.NewAlpha = clamp01(p.NewAlpha)
		if ch.IsAlpha && mode.UsesAlpha() {
			p.New = clamp01(p.New)
		}
	}
	switch mode {
	case frame.BlendReplace:
		return Replace(p.Old, p.New), nil
	case frame.BlendAdd:
		return Add(p.Old, p.New), nil
	case frame.BlendBlend:
		if ch.IsAlpha {
			return UnionAlpha(p.Old, p.New), nil
		}
		return Over(p, ch.Associated), nil
	case frame.BlendAlphaWeightedAdd:
		if ch.IsAlpha {
			return UnionAlpha(p.Old, p.New), nil
		}
		return AlphaWeightedAdd(p.Old, p.New, p.NewAlpha), nil
	case frame.BlendMul:
		nw := p.New
		if ch.Clamp {
			nw = clamp01(nw)
		}
		return Mul(p.Old, nw), nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownMode, mode)
	}
}
