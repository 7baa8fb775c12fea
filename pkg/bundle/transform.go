package bundle

import (
	"fmt"
	"log/slog"

	"github.com/jpfielding/jxlmeta.go/pkg/color"
	"github.com/jpfielding/jxlmeta.go/pkg/image"
	"github.com/jpfielding/jxlmeta.go/pkg/parallel"
)

// TransformTo converts the color planes to encoding to in place. Extra
// channels and metadata are untouched. A nil transformer uses color.Default,
// a nil runner converts sequentially.
func (ib *ImageBundle) TransformTo(to color.Encoding, tr color.Transformer, r parallel.Runner) error {
	if ib.current.SameColorEncoding(to) {
		ib.current = to
		return nil
	}
	if !ib.HasColor() {
		return ErrNoColor
	}
	if tr == nil {
		tr = color.Default
	}
	from := ib.current
	im := ib.color
	err := parallel.Run(r, im.YSize(), func(y int) error {
		return tr.Transform(from, to, im.Planes[0].Row(y), im.Planes[1].Row(y), im.Planes[2].Row(y))
	})
	if err != nil {
		return fmt.Errorf("transform %s to %s: %w", from, to, err)
	}
	ib.current = to
	return nil
}

// TransformIfNeeded returns in when it already has encoding to, otherwise a
// transformed copy
func TransformIfNeeded(in *ImageBundle, to color.Encoding, tr color.Transformer, r parallel.Runner) (*ImageBundle, error) {
	if in.current.SameColorEncoding(to) {
		return in, nil
	}
	slog.Debug("transforming bundle copy", slog.String("from", in.current.String()), slog.String("to", to.String()))
	out := in.Copy()
	if err := out.TransformTo(to, tr, r); err != nil {
		return nil, err
	}
	return out, nil
}

// CopyTo converts rect of the color planes to encoding to and returns them
// as a newly allocated image of sample type T. The bundle is unchanged.
func CopyTo[T image.Sample](ib *ImageBundle, rect image.Rect, to color.Encoding, tr color.Transformer, r parallel.Runner) (*image.Image3[T], error) {
	if !ib.HasColor() {
		return nil, ErrNoColor
	}
	if clip := rect.Intersect(ib.XSize(), ib.YSize()); clip != rect || rect.IsEmpty() {
		return nil, fmt.Errorf("%w: rect %+v outside %dx%d", ErrSizeMismatch, rect, ib.XSize(), ib.YSize())
	}
	if tr == nil {
		tr = color.Default
	}
	quantize := quantizer[T]()
	same := ib.current.SameColorEncoding(to)
	from := ib.current
	out := image.NewImage3[T](rect.XSize, rect.YSize)
	err := parallel.Run(r, rect.YSize, func(y int) error {
		var rows [3][]float32
		for c := range rows {
			src := ib.color.Planes[c].Row(rect.Y0 + y)[rect.X0 : rect.X0+rect.XSize]
			rows[c] = append([]float32(nil), src...)
		}
		if !same {
			if err := tr.Transform(from, to, rows[0], rows[1], rows[2]); err != nil {
				return err
			}
		}
		for c := range rows {
			dst := out.Planes[c].Row(y)
			for x, v := range rows[c] {
				dst[x] = quantize(v)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("copy %s to %s: %w", from, to, err)
	}
	return out, nil
}

// CopyToSRGB copies rect as 8-bit sRGB
func (ib *ImageBundle) CopyToSRGB(rect image.Rect, r parallel.Runner) (*image.Image3B, error) {
	return CopyTo[uint8](ib, rect, color.SRGB(ib.IsGray()), nil, r)
}

// quantizer maps nominal [0, 1] floats onto the range of T
func quantizer[T image.Sample]() func(float32) T {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return func(v float32) T { return T(image.To8(v)) }
	case uint16:
		return func(v float32) T { return T(image.To16(v)) }
	default:
		return func(v float32) T { return T(v) }
	}
}
