package image

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlane_RowsAndClone(t *testing.T) {
	p := NewPlane[uint16](3, 2)
	p.Set(2, 1, 7)
	p.Set(5, 5, 9) // ignored
	assert.Equal(t, []uint16{0, 0, 7}, p.Row(1))
	assert.Equal(t, uint16(0), p.At(-1, 0))

	c := p.Clone()
	c.Set(0, 0, 1)
	assert.Equal(t, uint16(0), p.At(0, 0))
	assert.Equal(t, uint16(7), c.At(2, 1))
}

func TestPlane_ShrinkTo(t *testing.T) {
	p := NewPlane[float32](4, 4)
	p.Set(1, 1, 0.5)
	require.NoError(t, p.ShrinkTo(2, 2))
	assert.Equal(t, 2, p.XSize())
	assert.Equal(t, []float32{0, 0.5}, p.Row(1))
	assert.Error(t, p.ShrinkTo(3, 1))

	// clone of a shrunk plane is compact
	c := p.Clone()
	assert.Len(t, c.Pix, 4)
}

func TestRect_Intersect(t *testing.T) {
	tests := []struct {
		name string
		in   Rect
		want Rect
	}{
		{"inside", Rect{1, 1, 2, 2}, Rect{1, 1, 2, 2}},
		{"clipped", Rect{-1, 2, 4, 4}, Rect{0, 2, 3, 2}},
		{"outside", Rect{10, 10, 2, 2}, Rect{X0: 10, Y0: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Intersect(4, 4))
		})
	}
	assert.True(t, Rect{X0: 10, Y0: 10}.IsEmpty())
}

func TestStdImage_RoundTrip(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 128, B: 0, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 128})

	im, alpha := FromStdImage(src)
	require.NotNil(t, alpha)
	assert.InDelta(t, 1.0, im.Planes[0].At(0, 0), 1e-6)

	out := ToNRGBA(im, alpha)
	assert.Equal(t, src.Pix, out.Pix)

	opaque := image.NewGray(image.Rect(0, 0, 1, 1))
	_, alpha = FromStdImage(opaque)
	assert.Nil(t, alpha)
}

func TestScale(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := range src.Pix {
		src.Pix[i] = 200
	}
	dst := Scale(src, 2, 2)
	assert.Equal(t, 2, dst.Bounds().Dx())
	assert.InDelta(t, 200, int(dst.Pix[0]), 1)
}
