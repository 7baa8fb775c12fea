package image

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// FromStdImage splits any image.Image into float color planes and a float
// alpha plane. Alpha is nil when every pixel is opaque. Color is returned
// unassociated (not premultiplied).
func FromStdImage(src image.Image) (*Image3F, *ImageF) {
	b := src.Bounds()
	xs, ys := b.Dx(), b.Dy()
	out := NewImage3[float32](xs, ys)
	alpha := NewPlane[float32](xs, ys)
	opaque := true
	for y := 0; y < ys; y++ {
		r, g, bl, a := out.Planes[0].Row(y), out.Planes[1].Row(y), out.Planes[2].Row(y), alpha.Row(y)
		for x := 0; x < xs; x++ {
			c := color.NRGBA64Model.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
			r[x] = float32(c.R) / 0xFFFF
			g[x] = float32(c.G) / 0xFFFF
			bl[x] = float32(c.B) / 0xFFFF
			a[x] = float32(c.A) / 0xFFFF
			if c.A != 0xFFFF {
				opaque = false
			}
		}
	}
	if opaque {
		return out, nil
	}
	return out, alpha
}

// ToNRGBA quantizes float color (and optional alpha) to 8 bits
func ToNRGBA(im *Image3F, alpha *ImageF) *image.NRGBA {
	xs, ys := im.XSize(), im.YSize()
	dst := image.NewNRGBA(image.Rect(0, 0, xs, ys))
	for y := 0; y < ys; y++ {
		r, g, b := im.Planes[0].Row(y), im.Planes[1].Row(y), im.Planes[2].Row(y)
		row := dst.Pix[y*dst.Stride : y*dst.Stride+xs*4]
		for x := 0; x < xs; x++ {
			row[4*x] = To8(r[x])
			row[4*x+1] = To8(g[x])
			row[4*x+2] = To8(b[x])
			row[4*x+3] = 0xFF
			if alpha != nil {
				row[4*x+3] = To8(alpha.At(x, y))
			}
		}
	}
	return dst
}

// To8 rounds a nominal [0, 1] sample to 8 bits with clamping
func To8(v float32) uint8 {
	return uint8(math.Round(float64(clamp01(v)) * 0xFF))
}

// To16 rounds a nominal [0, 1] sample to 16 bits with clamping
func To16(v float32) uint16 {
	return uint16(math.Round(float64(clamp01(v)) * 0xFFFF))
}

func clamp01(v float32) float32 {
	if v != v || v < 0 {
		return 0
	}
	return min(v, 1)
}

// Scale resamples src to xsize by ysize with Catmull-Rom filtering
func Scale(src image.Image, xsize, ysize int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, xsize, ysize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}
