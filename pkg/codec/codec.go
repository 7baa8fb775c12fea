// Package codec is the top level aggregate of a decode or encode session:
// codestream metadata, an optional preview, the frame sequence and the
// limits and hints that configure a decoder.
package codec

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/bits"

	"github.com/jpfielding/jxlmeta.go/pkg/bundle"
	"github.com/jpfielding/jxlmeta.go/pkg/color"
	"github.com/jpfielding/jxlmeta.go/pkg/headers"
	"github.com/jpfielding/jxlmeta.go/pkg/image"
	"github.com/jpfielding/jxlmeta.go/pkg/parallel"
)

var (
	ErrEmptyImage = errors.New("empty image")
	ErrTooWide    = errors.New("image too wide")
	ErrTooTall    = errors.New("image too tall")
	ErrTooBig     = errors.New("image too big")
	// ErrZeroBitDepth signals metadata without a sample bit depth
	ErrZeroBitDepth = errors.New("bit depth is zero")
	// ErrNotAnimated signals a second frame without declared animation
	ErrNotAnimated = errors.New("multiple frames require animation")
)

// DecodeTarget selects what a decoder produces
type DecodeTarget int

const (
	DecodePixels DecodeTarget = iota
	// DecodeQuantizedCoeffs keeps JPEG input as coefficients
	DecodeQuantizedCoeffs
	DecodeLosslessFloat
)

func (t DecodeTarget) String() string {
	switch t {
	case DecodePixels:
		return "pixels"
	case DecodeQuantizedCoeffs:
		return "quantized-coeffs"
	case DecodeLosslessFloat:
		return "lossless-float"
	default:
		return fmt.Sprintf("DecodeTarget(%d)", int(t))
	}
}

// Blobs are metadata payloads passed through unparsed
type Blobs struct {
	Exif  []byte
	IPTC  []byte
	JUMBF []byte
	XMP   []byte
}

// Intensity targets in nits used when the input does not carry one
const (
	DefaultIntensityTarget = 255
	PQIntensityTarget      = 10000
	HLGIntensityTarget     = 1000
)

// CodecInOut owns the metadata of one codestream and every bundle bound to it
type CodecInOut struct {
	// decoder input, enforced by VerifyDimensions
	DecMaxXSize  uint32
	DecMaxYSize  uint32
	DecMaxPixels uint64
	DecHints     DecoderHints
	DecTarget    DecodeTarget
	// TargetNits maps white for inputs without absolute luminance, 0 picks
	// a default from the transfer function
	TargetNits float32

	// decoder output: pixels decoded over all (possibly cropped) frames
	DecPixels uint64

	Blobs   Blobs
	Preview *bundle.ImageBundle
	Frames  []*bundle.ImageBundle

	metadata *headers.CodecMetadata
}

// New returns a session with default metadata, no limits and one empty frame
func New() *CodecInOut {
	c := &CodecInOut{
		DecMaxXSize:  math.MaxUint32,
		DecMaxYSize:  math.MaxUint32,
		DecMaxPixels: math.MaxUint64,
		metadata:     &headers.CodecMetadata{M: headers.DefaultImageMetadata()},
	}
	c.Preview = bundle.New(&c.metadata.M)
	c.Frames = []*bundle.ImageBundle{bundle.New(&c.metadata.M)}
	return c
}

// Metadata is the codestream metadata every bundle refers to
func (c *CodecInOut) Metadata() *headers.CodecMetadata { return c.metadata }

// Main is the single frame of a still image
func (c *CodecInOut) Main() *bundle.ImageBundle { return c.Frames[0] }

// NewFrame appends an empty frame bound to the metadata. Only animations
// hold more than one frame.
func (c *CodecInOut) NewFrame() (*bundle.ImageBundle, error) {
	if len(c.Frames) > 0 && !c.metadata.M.HaveAnimation {
		return nil, ErrNotAnimated
	}
	ib := bundle.New(&c.metadata.M)
	c.Frames = append(c.Frames, ib)
	return ib, nil
}

func (c *CodecInOut) XSize() uint64 { return c.metadata.XSize() }
func (c *CodecInOut) YSize() uint64 { return c.metadata.YSize() }

// SetSize declares the image size
func (c *CodecInOut) SetSize(xsize, ysize uint64) error {
	return c.metadata.Size.Set(xsize, ysize)
}

// SetFromImage installs color into Main and declares its size and intensity
// target
func (c *CodecInOut) SetFromImage(im *image.Image3F, current color.Encoding) error {
	if err := c.VerifyDimensions(uint64(im.XSize()), uint64(im.YSize())); err != nil {
		return err
	}
	if err := c.Main().SetFromImage(im, current); err != nil {
		return err
	}
	c.setIntensityTarget(current)
	return c.SetSize(uint64(im.XSize()), uint64(im.YSize()))
}

func (c *CodecInOut) setIntensityTarget(e color.Encoding) {
	target := c.TargetNits
	if target == 0 {
		switch e.Transfer {
		case color.TransferPQ:
			target = PQIntensityTarget
		case color.TransferHLG:
			target = HLGIntensityTarget
		default:
			target = DefaultIntensityTarget
		}
	}
	c.metadata.M.ToneMapping.IntensityTarget = target
}

// VerifyDimensions bounds decoder memory against hostile sizes; call it
// before allocating anything proportional to the image
func (c *CodecInOut) VerifyDimensions(xsize, ysize uint64) error {
	switch {
	case xsize == 0 || ysize == 0:
		return fmt.Errorf("%w: %dx%d", ErrEmptyImage, xsize, ysize)
	case xsize > uint64(c.DecMaxXSize):
		return fmt.Errorf("%w: %d > %d", ErrTooWide, xsize, c.DecMaxXSize)
	case ysize > uint64(c.DecMaxYSize):
		return fmt.Errorf("%w: %d > %d", ErrTooTall, ysize, c.DecMaxYSize)
	}
	hi, pixels := bits.Mul64(xsize, ysize)
	if hi != 0 || pixels > c.DecMaxPixels {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooBig, xsize, ysize, c.DecMaxPixels)
	}
	return nil
}

// TransformTo converts the preview (when declared) and every frame, stopping
// at the first failure
func (c *CodecInOut) TransformTo(to color.Encoding, tr color.Transformer, r parallel.Runner) error {
	if c.metadata.M.HavePreview {
		if err := c.Preview.TransformTo(to, tr, r); err != nil {
			return fmt.Errorf("preview: %w", err)
		}
	}
	for i, ib := range c.Frames {
		if err := ib.TransformTo(to, tr, r); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return nil
}

// ShrinkTo crops every frame, not the preview, and declares the new size.
// Nothing changes unless every frame can be cropped.
func (c *CodecInOut) ShrinkTo(xsize, ysize uint64) error {
	size := c.metadata.Size
	if err := size.Set(xsize, ysize); err != nil {
		return err
	}
	for i, ib := range c.Frames {
		if err := ib.CheckShrinkTo(int(xsize), int(ysize)); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	for i, ib := range c.Frames {
		if err := ib.ShrinkTo(int(xsize), int(ysize)); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	c.metadata.Size = size
	return nil
}

// CheckMetadata validates the metadata and that every bundle is bound to it
func (c *CodecInOut) CheckMetadata() error {
	md := &c.metadata.M
	if md.BitDepth.BitsPerSample == 0 {
		return ErrZeroBitDepth
	}
	if enc := md.ColorEncoding(); !enc.HasProfile() {
		return fmt.Errorf("%w: %s", bundle.ErrMissingProfile, enc)
	}
	if c.Preview.Metadata() != md {
		return fmt.Errorf("preview: %w", bundle.ErrMetadataMismatch)
	}
	if c.Preview.XSize() != 0 {
		if err := c.Preview.VerifyMetadata(md); err != nil {
			return fmt.Errorf("preview: %w", err)
		}
	}
	for i, ib := range c.Frames {
		if err := ib.VerifyMetadata(md); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return nil
}

// ApplyColorHints picks the encoding of pixels from a codec that carries
// none: a "color_space" hint wins, otherwise sRGB. The result is declared in
// the metadata.
func (c *CodecInOut) ApplyColorHints(isGray bool) (color.Encoding, error) {
	enc := color.SRGB(isGray)
	found := false
	err := c.DecHints.Foreach(func(key, value string) error {
		switch key {
		case HintColorSpace:
			parsed, err := color.ParseDescription(value)
			if err != nil {
				return err
			}
			if parsed.IsGray() != isGray {
				return fmt.Errorf("%s hint %q: gray mismatch", key, value)
			}
			enc, found = parsed, true
		default:
			slog.Debug("ignoring decoder hint", slog.String("key", key), slog.String("value", value))
		}
		return nil
	})
	if err != nil {
		return color.Encoding{}, err
	}
	if !found {
		slog.Debug("no color hint, assuming sRGB", slog.Bool("gray", isGray))
	}
	c.metadata.M.SetColorEncoding(enc)
	return enc, nil
}
