// Package image holds planar rasters: one slice per channel, row-major.
package image

import "fmt"

// Sample is a planar pixel component type
type Sample interface {
	~uint8 | ~uint16 | ~float32
}

// Rect is a half open region [X0, X0+XSize) x [Y0, Y0+YSize)
type Rect struct {
	X0, Y0       int
	XSize, YSize int
}

// Intersect clips r to the area of an xsize by ysize raster
func (r Rect) Intersect(xsize, ysize int) Rect {
	x1 := min(r.X0+r.XSize, xsize)
	y1 := min(r.Y0+r.YSize, ysize)
	x0 := max(r.X0, 0)
	y0 := max(r.Y0, 0)
	if x1 <= x0 || y1 <= y0 {
		return Rect{X0: x0, Y0: y0}
	}
	return Rect{X0: x0, Y0: y0, XSize: x1 - x0, YSize: y1 - y0}
}

// IsEmpty returns true for zero area
func (r Rect) IsEmpty() bool {
	return r.XSize <= 0 || r.YSize <= 0
}

// Plane is a single channel raster
type Plane[T Sample] struct {
	xsize, ysize int
	stride       int
	Pix          []T
}

// NewPlane allocates a zeroed xsize by ysize plane
func NewPlane[T Sample](xsize, ysize int) *Plane[T] {
	return &Plane[T]{xsize: xsize, ysize: ysize, stride: xsize, Pix: make([]T, xsize*ysize)}
}

// XSize is the width in samples
func (p *Plane[T]) XSize() int {
	if p == nil {
		return 0
	}
	return p.xsize
}

// YSize is the height in rows
func (p *Plane[T]) YSize() int {
	if p == nil {
		return 0
	}
	return p.ysize
}

// Row returns row y, sharing storage with the plane
func (p *Plane[T]) Row(y int) []T {
	off := y * p.stride
	return p.Pix[off : off+p.xsize]
}

// At returns the sample at (x, y) or the zero value when outside
func (p *Plane[T]) At(x, y int) T {
	if x < 0 || y < 0 || x >= p.xsize || y >= p.ysize {
		var zero T
		return zero
	}
	return p.Pix[y*p.stride+x]
}

// Set stores v at (x, y), ignoring coordinates outside the plane
func (p *Plane[T]) Set(x, y int, v T) {
	if x < 0 || y < 0 || x >= p.xsize || y >= p.ysize {
		return
	}
	p.Pix[y*p.stride+x] = v
}

// Fill sets every sample to v
func (p *Plane[T]) Fill(v T) {
	for y := 0; y < p.ysize; y++ {
		row := p.Row(y)
		for x := range row {
			row[x] = v
		}
	}
}

// Clone deep copies the plane into compact storage
func (p *Plane[T]) Clone() *Plane[T] {
	if p == nil {
		return nil
	}
	c := NewPlane[T](p.xsize, p.ysize)
	for y := 0; y < p.ysize; y++ {
		copy(c.Row(y), p.Row(y))
	}
	return c
}

// ShrinkTo reduces the visible size without reallocating
func (p *Plane[T]) ShrinkTo(xsize, ysize int) error {
	if xsize > p.xsize || ysize > p.ysize || xsize < 0 || ysize < 0 {
		return fmt.Errorf("cannot shrink %dx%d plane to %dx%d", p.xsize, p.ysize, xsize, ysize)
	}
	p.xsize, p.ysize = xsize, ysize
	return nil
}

// SameSize returns true if both planes have identical dimensions
func SameSize[A, B Sample](a *Plane[A], b *Plane[B]) bool {
	return a.XSize() == b.XSize() && a.YSize() == b.YSize()
}

// Image3 is a three channel planar image
type Image3[T Sample] struct {
	Planes [3]*Plane[T]
}

// NewImage3 allocates three zeroed planes
func NewImage3[T Sample](xsize, ysize int) *Image3[T] {
	return &Image3[T]{Planes: [3]*Plane[T]{
		NewPlane[T](xsize, ysize),
		NewPlane[T](xsize, ysize),
		NewPlane[T](xsize, ysize),
	}}
}

// XSize is the width shared by all planes
func (im *Image3[T]) XSize() int {
	if im == nil {
		return 0
	}
	return im.Planes[0].XSize()
}

// YSize is the height shared by all planes
func (im *Image3[T]) YSize() int {
	if im == nil {
		return 0
	}
	return im.Planes[0].YSize()
}

// Plane returns channel c
func (im *Image3[T]) Plane(c int) *Plane[T] {
	return im.Planes[c]
}

// Clone deep copies all three planes
func (im *Image3[T]) Clone() *Image3[T] {
	if im == nil {
		return nil
	}
	return &Image3[T]{Planes: [3]*Plane[T]{im.Planes[0].Clone(), im.Planes[1].Clone(), im.Planes[2].Clone()}}
}

// ShrinkTo shrinks all planes
func (im *Image3[T]) ShrinkTo(xsize, ysize int) error {
	for _, p := range im.Planes {
		if err := p.ShrinkTo(xsize, ysize); err != nil {
			return err
		}
	}
	return nil
}

type (
	// Image3F is float color, nominal range [0, 1]
	Image3F = Image3[float32]
	// Image3B is 8-bit color
	Image3B = Image3[uint8]
	// Image3U is 16-bit color
	Image3U = Image3[uint16]
	// ImageF is a float channel
	ImageF = Plane[float32]
	// ImageU is a 16-bit channel, used for extra channels
	ImageU = Plane[uint16]
	// ImageB is an 8-bit channel
	ImageB = Plane[uint8]
)
