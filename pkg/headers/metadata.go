package headers

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jpfielding/jxlmeta.go/pkg/bitio"
	"github.com/jpfielding/jxlmeta.go/pkg/color"
	"github.com/jpfielding/jxlmeta.go/pkg/fields"
)

// Signature is the codestream marker 0xFF 0x0A as read LSB first
const Signature = 0x0AFF

// ErrBadSignature signals a stream that is not a codestream
var ErrBadSignature = errors.New("missing codestream signature")

var numExtraChannelsEnc = fields.NewU32Enc(fields.Val(0), fields.Val(1), fields.BitsOffset(4, 2), fields.BitsOffset(12, 1))

// ImageMetadata holds the facts shared by every frame of a codestream. It
// is owned by CodecMetadata; frames and bundles only point at it.
type ImageMetadata struct {
	AllDefaultCache bool

	// ExtraFields is derived on write from the fields it guards
	ExtraFields       bool
	Orientation       uint32
	HaveIntrinsicSize bool
	IntrinsicSize     SizeHeader
	HavePreview       bool
	Preview           PreviewHeader
	HaveAnimation     bool
	Animation         AnimationHeader

	BitDepth                     BitDepth
	Modular16BitBufferSufficient bool
	ExtraChannels                []ExtraChannelInfo
	XYBEncoded                   bool
	Color                        ColorEncoding
	ToneMapping                  ToneMapping

	Extensions uint64
}

func (m *ImageMetadata) Name() string { return "ImageMetadata" }

func (m *ImageMetadata) VisitFields(v *fields.Visitor) error {
	if skip, err := v.AllDefault(m, &m.AllDefaultCache); err != nil || skip {
		return err
	}
	if !v.IsReading() && v.Direction() != fields.DirSetDefault {
		m.ExtraFields = m.Orientation != 1 || m.HaveIntrinsicSize || m.HavePreview || m.HaveAnimation ||
			!fields.IsAllDefault(&m.ToneMapping)
	}
	if err := v.Bool(false, &m.ExtraFields); err != nil {
		return err
	}
	if v.Conditional(m.ExtraFields) {
		orientMinus1 := m.Orientation - 1
		if err := v.Bits(3, 0, &orientMinus1); err != nil {
			return err
		}
		m.Orientation = orientMinus1 + 1
		if err := v.Bool(false, &m.HaveIntrinsicSize); err != nil {
			return err
		}
		if v.Conditional(m.HaveIntrinsicSize) {
			if err := v.VisitNested(&m.IntrinsicSize); err != nil {
				return err
			}
		}
		if err := v.Bool(false, &m.HavePreview); err != nil {
			return err
		}
		if v.Conditional(m.HavePreview) {
			if err := v.VisitNested(&m.Preview); err != nil {
				return err
			}
		}
		if err := v.Bool(false, &m.HaveAnimation); err != nil {
			return err
		}
		if v.Conditional(m.HaveAnimation) {
			if err := v.VisitNested(&m.Animation); err != nil {
				return err
			}
		}
	} else if v.IsReading() || v.Direction() == fields.DirSetDefault {
		m.Orientation = 1
		m.HaveIntrinsicSize, m.HavePreview, m.HaveAnimation = false, false, false
	}

	if err := v.VisitNested(&m.BitDepth); err != nil {
		return err
	}
	if err := v.Bool(true, &m.Modular16BitBufferSufficient); err != nil {
		return err
	}

	num := uint32(len(m.ExtraChannels))
	if err := v.U32(numExtraChannelsEnc, 0, &num); err != nil {
		return err
	}
	if v.IsReading() || v.Direction() == fields.DirSetDefault {
		m.ExtraChannels = nil
		if num > 0 {
			m.ExtraChannels = make([]ExtraChannelInfo, num)
		}
	}
	for i := range m.ExtraChannels {
		if err := v.VisitNested(&m.ExtraChannels[i]); err != nil {
			return fmt.Errorf("extra channel %d: %w", i, err)
		}
	}

	if err := v.Bool(true, &m.XYBEncoded); err != nil {
		return err
	}
	if err := v.VisitNested(&m.Color); err != nil {
		return err
	}
	if v.Conditional(m.ExtraFields) {
		if err := v.VisitNested(&m.ToneMapping); err != nil {
			return err
		}
	} else if v.IsReading() || v.Direction() == fields.DirSetDefault {
		if err := fields.SetDefault(&m.ToneMapping); err != nil {
			return err
		}
	}

	if err := v.BeginExtensions(&m.Extensions); err != nil {
		return err
	}
	return v.EndExtensions()
}

// NumExtraChannels is the number of declared extra channels
func (m *ImageMetadata) NumExtraChannels() int {
	return len(m.ExtraChannels)
}

// Find returns the first extra channel of type t, or nil
func (m *ImageMetadata) Find(t ExtraChannelType) *ExtraChannelInfo {
	for i := range m.ExtraChannels {
		if m.ExtraChannels[i].Type == t {
			return &m.ExtraChannels[i]
		}
	}
	return nil
}

// HasAlpha returns true if an alpha channel is declared
func (m *ImageMetadata) HasAlpha() bool {
	return m.Find(ExtraChannelAlpha) != nil
}

// ColorEncoding is the encoding of the decoded color samples
func (m *ImageMetadata) ColorEncoding() color.Encoding {
	return m.Color.Enc
}

// SetColorEncoding replaces the declared color encoding
func (m *ImageMetadata) SetColorEncoding(e color.Encoding) {
	m.Color = NewColorEncoding(e)
}

// SetUintSamples declares integer samples of the given bit depth
func (m *ImageMetadata) SetUintSamples(bits uint32) {
	m.BitDepth = BitDepth{BitsPerSample: bits}
	m.Modular16BitBufferSufficient = bits <= 12
}

// SetFloat32Samples declares IEEE float samples
func (m *ImageMetadata) SetFloat32Samples() {
	m.BitDepth = BitDepth{FloatingPointSample: true, BitsPerSample: 32, ExponentBitsPerSample: 8}
	m.Modular16BitBufferSufficient = false
}

// SetAlphaBits declares (or removes, for zero bits) the alpha channel
func (m *ImageMetadata) SetAlphaBits(bits uint32, associated bool) {
	if bits == 0 {
		kept := m.ExtraChannels[:0]
		for _, ec := range m.ExtraChannels {
			if ec.Type != ExtraChannelAlpha {
				kept = append(kept, ec)
			}
		}
		m.ExtraChannels = kept
		return
	}
	if alpha := m.Find(ExtraChannelAlpha); alpha != nil {
		alpha.BitDepth = BitDepth{BitsPerSample: bits}
		alpha.AlphaAssociated = associated
		return
	}
	m.ExtraChannels = append(m.ExtraChannels, ExtraChannelInfo{
		Type:            ExtraChannelAlpha,
		BitDepth:        BitDepth{BitsPerSample: bits},
		AlphaAssociated: associated,
	})
	if bits > 12 {
		m.Modular16BitBufferSufficient = false
	}
}

// DefaultImageMetadata returns metadata with every field at its default:
// 8-bit sRGB, XYB encoded, no extra channels
func DefaultImageMetadata() ImageMetadata {
	var m ImageMetadata
	// SetDefault cannot fail for ImageMetadata
	_ = fields.SetDefault(&m)
	return m
}

// CodecMetadata owns the ImageMetadata of one codestream together with its size
type CodecMetadata struct {
	Size SizeHeader
	M    ImageMetadata
}

// NewCodecMetadata returns default metadata for an xsize by ysize image
func NewCodecMetadata(xsize, ysize uint64) (*CodecMetadata, error) {
	c := &CodecMetadata{M: DefaultImageMetadata()}
	if err := c.Size.Set(xsize, ysize); err != nil {
		return nil, err
	}
	return c, nil
}

// XSize is the declared image width
func (c *CodecMetadata) XSize() uint64 {
	return c.Size.XSize()
}

// YSize is the declared image height
func (c *CodecMetadata) YSize() uint64 {
	return c.Size.YSize()
}

// ReadCodestreamHeaders decodes signature, size and image metadata and
// leaves r byte aligned at the first frame header
func ReadCodestreamHeaders(r *bitio.BitReader) (*CodecMetadata, error) {
	sig, err := r.ReadBits(16)
	if err != nil {
		return nil, err
	}
	if sig != Signature {
		return nil, fmt.Errorf("%w: %#04x", ErrBadSignature, sig)
	}
	c := &CodecMetadata{}
	if _, err := fields.Read(r, &c.Size); err != nil {
		return nil, fmt.Errorf("size header: %w", err)
	}
	if _, err := fields.Read(r, &c.M); err != nil {
		return nil, fmt.Errorf("image metadata: %w", err)
	}
	r.JumpToByteBoundary()
	slog.Debug("decoded codestream headers",
		slog.Uint64("xsize", c.XSize()), slog.Uint64("ysize", c.YSize()),
		slog.Int("extra_channels", c.M.NumExtraChannels()))
	return c, nil
}

// WriteCodestreamHeaders is the inverse of ReadCodestreamHeaders
func WriteCodestreamHeaders(w *bitio.BitWriter, c *CodecMetadata) error {
	if err := w.WriteBits(Signature, 16); err != nil {
		return err
	}
	if _, err := fields.Write(&c.Size, w); err != nil {
		return fmt.Errorf("size header: %w", err)
	}
	if _, err := fields.Write(&c.M, w); err != nil {
		return fmt.Errorf("image metadata: %w", err)
	}
	w.ZeroPadToByte()
	return nil
}
