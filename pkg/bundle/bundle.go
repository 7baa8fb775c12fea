// Package bundle holds the pixel payload of one frame: planar color plus
// extra channels, or a transcoded JPEG coefficient payload.
package bundle

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/jpfielding/jxlmeta.go/pkg/blend"
	"github.com/jpfielding/jxlmeta.go/pkg/color"
	"github.com/jpfielding/jxlmeta.go/pkg/frame"
	"github.com/jpfielding/jxlmeta.go/pkg/headers"
	"github.com/jpfielding/jxlmeta.go/pkg/image"
)

var (
	// ErrMetadataMismatch signals a bundle bound to other metadata, or
	// channels the metadata does not declare
	ErrMetadataMismatch = errors.New("bundle metadata mismatch")
	// ErrSizeMismatch signals channels of differing dimensions
	ErrSizeMismatch = errors.New("bundle channel sizes differ")
	// ErrNoColor signals an operation that needs planar color
	ErrNoColor = errors.New("bundle has no planar color")
	// ErrNotGray signals a gray encoding with differing planes
	ErrNotGray = errors.New("gray image planes differ")
	// ErrMissingProfile signals a color encoding that cannot be interpreted
	ErrMissingProfile = errors.New("color encoding has no usable profile")
)

// JPEGData is a losslessly transcoded JPEG. The coefficient layout is owned
// by the codec that produced it.
type JPEGData struct {
	Width, Height uint32
	Components    int
	Coefficients  []byte
}

func (j *JPEGData) Clone() *JPEGData {
	if j == nil {
		return nil
	}
	c := *j
	c.Coefficients = bytes.Clone(j.Coefficients)
	return &c
}

// ImageBundle is a frame payload. Exactly one of planar color and JPEG is
// populated once a Set method was called.
type ImageBundle struct {
	JPEG *JPEGData
	// signal the color space of a transcoded JPEG
	ColorTransform    frame.ColorTransform
	ChromaSubsampling frame.YCbCrChromaSubsampling

	Origin frame.Origin
	// animation related, GIF and APNG style
	Duration        uint32
	UseForNextFrame bool
	Blend           bool

	metadata     *headers.ImageMetadata
	color        *image.Image3F
	current      color.Encoding
	extra        []*image.ImageF
	decodedBytes uint64
}

// New binds an empty bundle to md. md must outlive the bundle.
func New(md *headers.ImageMetadata) *ImageBundle {
	return &ImageBundle{metadata: md, ColorTransform: frame.ColorTransformNone}
}

// Metadata returns the shared metadata the bundle was created for
func (ib *ImageBundle) Metadata() *headers.ImageMetadata { return ib.metadata }

// Copy deep clones color, extra channels and the JPEG payload
func (ib *ImageBundle) Copy() *ImageBundle {
	c := *ib
	c.color = ib.color.Clone()
	c.current.ICC = bytes.Clone(ib.current.ICC)
	c.extra = make([]*image.ImageF, len(ib.extra))
	for i, e := range ib.extra {
		c.extra[i] = e.Clone()
	}
	c.JPEG = ib.JPEG.Clone()
	return &c
}

// IsJPEG reports whether the payload is transcoded coefficients
func (ib *ImageBundle) IsJPEG() bool { return ib.JPEG != nil }

// XSize prefers the JPEG size, then color, then the first extra channel
func (ib *ImageBundle) XSize() int {
	switch {
	case ib.IsJPEG():
		return int(ib.JPEG.Width)
	case ib.color.XSize() != 0:
		return ib.color.XSize()
	case len(ib.extra) != 0:
		return ib.extra[0].XSize()
	}
	return 0
}

func (ib *ImageBundle) YSize() int {
	switch {
	case ib.IsJPEG():
		return int(ib.JPEG.Height)
	case ib.color.YSize() != 0:
		return ib.color.YSize()
	case len(ib.extra) != 0:
		return ib.extra[0].YSize()
	}
	return 0
}

// CheckShrinkTo reports whether ShrinkTo(xsize, ysize) would succeed
func (ib *ImageBundle) CheckShrinkTo(xsize, ysize int) error {
	_, err := ib.shrinkSizes(xsize, ysize)
	return err
}

// shrinkSizes returns the target size of each extra channel
func (ib *ImageBundle) shrinkSizes(xsize, ysize int) ([][2]int, error) {
	if ib.IsJPEG() {
		return nil, errors.New("cannot shrink transcoded JPEG")
	}
	if xsize < 0 || ysize < 0 {
		return nil, fmt.Errorf("%w: shrink to %dx%d", ErrSizeMismatch, xsize, ysize)
	}
	if ib.HasColor() && (xsize > ib.color.XSize() || ysize > ib.color.YSize()) {
		return nil, fmt.Errorf("%w: cannot shrink %dx%d color to %dx%d", ErrSizeMismatch, ib.color.XSize(), ib.color.YSize(), xsize, ysize)
	}
	sizes := make([][2]int, len(ib.extra))
	for i, e := range ib.extra {
		info := ib.metadata.ExtraChannels[i]
		wx, wy := int(info.Size(uint64(xsize))), int(info.Size(uint64(ysize)))
		if wx > e.XSize() || wy > e.YSize() {
			return nil, fmt.Errorf("%w: cannot shrink %dx%d extra channel %d to %dx%d", ErrSizeMismatch, e.XSize(), e.YSize(), i, wx, wy)
		}
		sizes[i] = [2]int{wx, wy}
	}
	return sizes, nil
}

// ShrinkTo crops color and extra channels to the top left xsize by ysize.
// Every channel is checked before any is cropped.
func (ib *ImageBundle) ShrinkTo(xsize, ysize int) error {
	sizes, err := ib.shrinkSizes(xsize, ysize)
	if err != nil {
		return err
	}
	if ib.HasColor() {
		if err := ib.color.ShrinkTo(xsize, ysize); err != nil {
			return err
		}
	}
	for i, e := range ib.extra {
		if err := e.ShrinkTo(sizes[i][0], sizes[i][1]); err != nil {
			return fmt.Errorf("extra channel %d: %w", i, err)
		}
	}
	return nil
}

// HasColor reports whether planar color is installed
func (ib *ImageBundle) HasColor() bool { return ib.color.XSize() != 0 }

// RemoveColor drops planar color, used when a reference becomes the main frame
func (ib *ImageBundle) RemoveColor() { ib.color = nil }

// Color returns the planar color, nil when absent
func (ib *ImageBundle) Color() *image.Image3F { return ib.color }

// SetFromImage installs color in encoding current and drops any JPEG
// payload. Gray encodings require identical planes.
func (ib *ImageBundle) SetFromImage(im *image.Image3F, current color.Encoding) error {
	if current.IsGray() && !identicalPlanes(im) {
		return ErrNotGray
	}
	prevJPEG, prevColor, prevCurrent := ib.JPEG, ib.color, ib.current
	ib.JPEG = nil
	ib.color = im
	ib.current = current
	if err := ib.VerifySizes(); err != nil {
		ib.JPEG, ib.color, ib.current = prevJPEG, prevColor, prevCurrent
		return err
	}
	return nil
}

func identicalPlanes(im *image.Image3F) bool {
	for y := 0; y < im.YSize(); y++ {
		r, g, b := im.Planes[0].Row(y), im.Planes[1].Row(y), im.Planes[2].Row(y)
		for x := range r {
			if r[x] != g[x] || r[x] != b[x] {
				return false
			}
		}
	}
	return true
}

// SetJPEG installs a transcoded payload and drops planar color
func (ib *ImageBundle) SetJPEG(j *JPEGData, current color.Encoding) {
	ib.color = nil
	ib.JPEG = j
	ib.current = current
}

// Current is the encoding of the installed color, independent of the
// metadata's original encoding
func (ib *ImageBundle) Current() color.Encoding { return ib.current }

func (ib *ImageBundle) IsGray() bool       { return ib.current.IsGray() }
func (ib *ImageBundle) IsSRGB() bool       { return ib.current.IsSRGB() }
func (ib *ImageBundle) IsLinearSRGB() bool { return ib.current.IsLinearSRGB() }

// SetDecodedBytes records how much input produced the bundle
func (ib *ImageBundle) SetDecodedBytes(n uint64) { ib.decodedBytes = n }
func (ib *ImageBundle) DecodedBytes() uint64     { return ib.decodedBytes }

// Layer exposes the planes for compositing without copying
func (ib *ImageBundle) Layer() (*blend.Layer, error) {
	if !ib.HasColor() {
		return nil, ErrNoColor
	}
	if len(ib.extra) != ib.metadata.NumExtraChannels() {
		return nil, fmt.Errorf("%w: %d of %d extra channels set", ErrMetadataMismatch, len(ib.extra), ib.metadata.NumExtraChannels())
	}
	return &blend.Layer{Color: ib.color, Extra: ib.extra}, nil
}

// SetFromLayer installs a composited layer in encoding current
func (ib *ImageBundle) SetFromLayer(l *blend.Layer, current color.Encoding) error {
	if err := ib.SetFromImage(l.Color, current); err != nil {
		return err
	}
	return ib.SetExtraChannels(l.Extra)
}

// VerifySizes checks that color and every extra channel agree, taking the
// declared dim shift of each channel into account
func (ib *ImageBundle) VerifySizes() error {
	xs, ys := uint64(ib.XSize()), uint64(ib.YSize())
	if ib.HasColor() && (uint64(ib.color.XSize()) != xs || uint64(ib.color.YSize()) != ys) {
		return fmt.Errorf("%w: color %dx%d, bundle %dx%d", ErrSizeMismatch, ib.color.XSize(), ib.color.YSize(), xs, ys)
	}
	for i, e := range ib.extra {
		wx, wy := xs, ys
		if i < ib.metadata.NumExtraChannels() {
			info := ib.metadata.ExtraChannels[i]
			wx, wy = info.Size(xs), info.Size(ys)
			if i == 0 && !ib.HasColor() && !ib.IsJPEG() {
				// the first extra channel defines the size
				wx, wy = uint64(e.XSize()), uint64(e.YSize())
			}
		}
		if uint64(e.XSize()) != wx || uint64(e.YSize()) != wy {
			return fmt.Errorf("%w: extra channel %d is %dx%d, want %dx%d", ErrSizeMismatch, i, e.XSize(), e.YSize(), wx, wy)
		}
	}
	return nil
}

// VerifyMetadata checks the bundle against the metadata owned by its
// container: same instance, one raster per declared extra channel, an
// interpretable color encoding and consistent sizes.
func (ib *ImageBundle) VerifyMetadata(owner *headers.ImageMetadata) error {
	if ib.metadata != owner {
		return fmt.Errorf("%w: bound to other metadata", ErrMetadataMismatch)
	}
	if len(ib.extra) != 0 && len(ib.extra) != owner.NumExtraChannels() {
		return fmt.Errorf("%w: %d extra channels, metadata declares %d", ErrMetadataMismatch, len(ib.extra), owner.NumExtraChannels())
	}
	if (ib.HasColor() || ib.IsJPEG()) && !ib.current.HasProfile() {
		return fmt.Errorf("%w: %s", ErrMissingProfile, ib.current)
	}
	return ib.VerifySizes()
}
