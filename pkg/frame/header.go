// Package frame implements the per-frame header: which frame kind follows,
// how it is coded, where it lands on the canvas and how it is blended.
package frame

import (
	"fmt"
	"log/slog"

	"github.com/jpfielding/jxlmeta.go/pkg/bitio"
	"github.com/jpfielding/jxlmeta.go/pkg/fields"
	"github.com/jpfielding/jxlmeta.go/pkg/headers"
)

// Encoding of the frame payload
type Encoding uint32

const (
	EncodingVarDCT Encoding = iota
	EncodingModular
)

func (e Encoding) String() string {
	if e == EncodingModular {
		return "modular"
	}
	return "vardct"
}

// Type of frame
type Type uint32

const (
	// TypeRegular may be cropped, is blended onto earlier frames and is displayed
	TypeRegular Type = iota
	// TypeDC is a downsampled frame that only seeds the DC of a later frame.
	// It cannot be cropped, blended or referenced.
	TypeDC
	// TypeReferenceOnly is only saved as a patch source. It may be cropped
	// but its origin is always zero.
	TypeReferenceOnly
)

func (t Type) String() string {
	switch t {
	case TypeRegular:
		return "regular"
	case TypeDC:
		return "dc"
	case TypeReferenceOnly:
		return "reference-only"
	default:
		return fmt.Sprintf("Type(%d)", uint32(t))
	}
}

// ParseType is the inverse of String
func ParseType(s string) (Type, error) {
	for t := TypeRegular; t <= TypeReferenceOnly; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown frame type %q", s)
}

// ColorTransform applied to the decoded samples
type ColorTransform uint32

const (
	// ColorTransformXYB requires xyb encoded metadata
	ColorTransformXYB ColorTransform = iota
	// ColorTransformNone leaves samples in the declared color encoding
	ColorTransformNone
	// ColorTransformYCbCr is the declared encoding transformed to YCbCr
	ColorTransformYCbCr
)

func (c ColorTransform) String() string {
	switch c {
	case ColorTransformXYB:
		return "xyb"
	case ColorTransformNone:
		return "none"
	default:
		return "ycbcr"
	}
}

// Flag bits of FrameHeader.Flags. Usually-off features take low bits so
// the typical mask codes in two bits.
const (
	FlagNoise   uint64 = 1
	FlagPatches uint64 = 2
	FlagSplines uint64 = 16
	// FlagUseDCFrame implies FlagSkipAdaptiveDCSmoothing
	FlagUseDCFrame uint64 = 32
	// FlagSkipAdaptiveDCSmoothing is almost always set
	FlagSkipAdaptiveDCSmoothing uint64 = 128
)

// NumReferenceSlots available to save frames into
const NumReferenceSlots = 4

// Origin of the frame on the canvas, may be negative
type Origin struct {
	X0, Y0 int32
}

// Size of a cropped frame, zero means the image size
type Size struct {
	XSize, YSize uint32
}

var (
	frameTypeEnc  = fields.NewU32Enc(fields.Val(0), fields.Val(1), fields.Val(2), fields.Val(3))
	upsamplingEnc = fields.NewU32Enc(fields.Val(1), fields.Val(2), fields.Val(4), fields.Val(8))
	dcLevelEnc    = fields.NewU32Enc(fields.Val(1), fields.Val(2), fields.Val(3), fields.Val(4))
	cropEnc       = fields.NewU32Enc(fields.Bits(8), fields.BitsOffset(11, 256), fields.BitsOffset(14, 2304), fields.BitsOffset(30, 18688))
)

// Header is the frame header. It starts byte aligned.
type Header struct {
	// AllDefaultCache is the all-default state of the last coding pass
	AllDefaultCache bool

	Encoding Encoding
	Type     Type
	Flags    uint64

	ColorTransform    ColorTransform
	ChromaSubsampling YCbCrChromaSubsampling

	// GroupSizeShift only for modular frames, groups are 128<<shift
	GroupSizeShift uint32
	// XQMScale only for VarDCT frames with the XYB transform
	XQMScale uint32

	// Label is the layer name
	Label string

	// Passes are not coded for reference only frames
	Passes Passes

	// CustomSizeOrOrigin is not coded for DC frames
	CustomSizeOrOrigin bool
	FrameSize          Size

	// Upsampling is forced to 1 with FlagUseDCFrame
	Upsampling             uint32
	ExtraChannelUpsampling []uint32

	// FrameOrigin only for regular frames
	FrameOrigin Origin

	Blending             BlendingInfo
	ExtraChannelBlending []BlendingInfo

	Animation AnimationFrame

	IsLast bool

	// SaveAsReference is the slot, 0-3, to save into. Not coded for DC frames.
	// Zero on a regular frame with nonzero duration means not referenced.
	SaveAsReference uint32

	// SaveBeforeColorTransform restricts later use to patches when true and
	// to blend modes when false. Always true for DC frames.
	SaveBeforeColorTransform bool

	// DCLevel is 1-4 for DC frames, 0 otherwise
	DCLevel uint32

	Extensions uint64

	metadata  *headers.CodecMetadata
	isPreview bool
}

// New returns a header with every field at its default, bound to metadata
// which must outlive it. A nil metadata behaves as xyb encoded without
// extra channels.
func New(metadata *headers.CodecMetadata) *Header {
	h := &Header{metadata: metadata}
	h.Animation = NewAnimationFrame(h.imageMetadata())
	// SetDefault only fails for invalid defaults
	if err := fields.SetDefault(h); err != nil {
		panic(err)
	}
	return h
}

// NewPreview returns a default header for the preview frame
func NewPreview(metadata *headers.CodecMetadata) *Header {
	h := New(metadata)
	h.isPreview = true
	return h
}

// Metadata is the codestream metadata the header is bound to
func (h *Header) Metadata() *headers.CodecMetadata { return h.metadata }

// IsPreview reports whether the header describes the preview frame
func (h *Header) IsPreview() bool { return h.isPreview }

func (h *Header) imageMetadata() *headers.ImageMetadata {
	if h.metadata == nil {
		return nil
	}
	return &h.metadata.M
}

func (h *Header) numExtraChannels() int {
	if h.metadata == nil {
		return 0
	}
	return h.metadata.M.NumExtraChannels()
}

// UpdateFlag sets flag when cond holds and clears it otherwise
func (h *Header) UpdateFlag(cond bool, flag uint64) {
	if cond {
		h.Flags |= flag
	} else {
		h.Flags &^= flag
	}
}

// HasFlag reports whether flag is set
func (h *Header) HasFlag(flag uint64) bool {
	return h.Flags&flag != 0
}

// CanBeReferenced reports whether the frame is saved for later frames. The
// last frame and DC frames never are; a zero duration frame always is.
func (h *Header) CanBeReferenced() bool {
	return !h.IsLast && h.Type != TypeDC && (h.Animation.Duration == 0 || h.SaveAsReference != 0)
}

// NeedsColorTransform is false when color is blended with Mul
func (h *Header) NeedsColorTransform() bool {
	return h.Blending.Mode != BlendMul
}

// DefaultXSize is the image (or preview) width
func (h *Header) DefaultXSize() uint64 {
	switch {
	case h.metadata == nil:
		return 0
	case h.isPreview:
		return h.metadata.M.Preview.XSize()
	default:
		return h.metadata.XSize()
	}
}

// DefaultYSize is the image (or preview) height
func (h *Header) DefaultYSize() uint64 {
	switch {
	case h.metadata == nil:
		return 0
	case h.isPreview:
		return h.metadata.M.Preview.YSize()
	default:
		return h.metadata.YSize()
	}
}

// IsPartial reports whether a regular frame leaves part of the canvas uncovered
func (h *Header) IsPartial() bool {
	if h.Type != TypeRegular || !h.CustomSizeOrOrigin {
		return false
	}
	xs, ys := int64(h.DefaultXSize()), int64(h.DefaultYSize())
	return h.FrameOrigin.X0 > 0 || h.FrameOrigin.Y0 > 0 ||
		int64(h.FrameSize.XSize)+int64(h.FrameOrigin.X0) < xs ||
		int64(h.FrameSize.YSize)+int64(h.FrameOrigin.Y0) < ys
}

// ToFrameDimensions derives the coded sizes; DC frames shrink by 8^DCLevel
func (h *Header) ToFrameDimensions() FrameDimensions {
	xsize, ysize := h.DefaultXSize(), h.DefaultYSize()
	if h.FrameSize.XSize != 0 {
		xsize = uint64(h.FrameSize.XSize)
	}
	if h.FrameSize.YSize != 0 {
		ysize = uint64(h.FrameSize.YSize)
	}
	if h.DCLevel != 0 {
		xsize = DivCeil(xsize, 1<<(3*h.DCLevel))
		ysize = DivCeil(ysize, 1<<(3*h.DCLevel))
	}
	var d FrameDimensions
	d.Set(xsize, ysize, h.GroupSizeShift, h.ChromaSubsampling.MaxHShift(), h.ChromaSubsampling.MaxVShift(),
		h.Encoding == EncodingModular, h.Upsampling)
	return d
}

func (h *Header) Name() string { return "FrameHeader" }

func (h *Header) VisitFields(v *fields.Visitor) error {
	return h.visit(v, h, nil)
}

// visit runs the traversal for self, which is h or a type embedding it;
// more adds fields inside the extension block.
func (h *Header) visit(v *fields.Visitor, self fields.Fields, more func(v *fields.Visitor) error) error {
	if skip, err := v.AllDefault(self, &h.AllDefaultCache); err != nil || skip {
		return err
	}

	typ := uint32(h.Type)
	if err := v.U32(frameTypeEnc, uint32(TypeRegular), &typ); err != nil {
		return err
	}
	if typ > uint32(TypeReferenceOnly) {
		return fmt.Errorf("%w: frame type %d", fields.ErrMalformed, typ)
	}
	h.Type = Type(typ)
	if v.IsReading() && h.isPreview && h.Type != TypeRegular {
		return fmt.Errorf("%w: preview must be a regular frame", fields.ErrMalformed)
	}

	modular := h.Encoding == EncodingModular
	if err := v.Bool(false, &modular); err != nil {
		return err
	}
	h.Encoding = EncodingVarDCT
	if modular {
		h.Encoding = EncodingModular
	}

	if err := v.U64(0, &h.Flags); err != nil {
		return err
	}

	md := h.imageMetadata()
	if md == nil || md.XYBEncoded {
		h.ColorTransform = ColorTransformXYB
	} else {
		alternate := h.ColorTransform == ColorTransformYCbCr
		if err := v.Bool(false, &alternate); err != nil {
			return err
		}
		h.ColorTransform = ColorTransformNone
		if alternate {
			h.ColorTransform = ColorTransformYCbCr
		}
	}

	resetting := v.Resetting()
	useDC := h.HasFlag(FlagUseDCFrame)
	if v.Conditional(h.ColorTransform == ColorTransformYCbCr && !useDC) {
		if err := v.VisitNested(&h.ChromaSubsampling); err != nil {
			return err
		}
	} else if resetting {
		h.ChromaSubsampling = YCbCrChromaSubsampling{}
	}

	if err := h.visitUpsampling(v, useDC); err != nil {
		return err
	}

	if v.Conditional(h.Encoding == EncodingModular) {
		if err := v.Bits(2, 1, &h.GroupSizeShift); err != nil {
			return err
		}
	} else if resetting {
		h.GroupSizeShift = 1
	}
	if v.Conditional(h.Encoding == EncodingVarDCT && h.ColorTransform == ColorTransformXYB) {
		if err := v.Bits(3, 2, &h.XQMScale); err != nil {
			return err
		}
	} else if resetting {
		h.XQMScale = 2
	}

	if v.Conditional(h.Type != TypeReferenceOnly) {
		if err := v.VisitNested(&h.Passes); err != nil {
			return err
		}
	} else if resetting {
		if err := fields.SetDefault(&h.Passes); err != nil {
			return err
		}
	}

	if v.Conditional(h.Type == TypeDC) {
		if err := v.U32(dcLevelEnc, 1, &h.DCLevel); err != nil {
			return err
		}
	} else {
		h.DCLevel = 0
	}

	if resetting {
		h.FrameOrigin, h.FrameSize = Origin{}, Size{}
	}
	if err := h.visitCrop(v); err != nil {
		return err
	}
	partial := h.IsPartial()

	numEC := h.numExtraChannels()
	if v.Conditional(h.Type == TypeRegular) {
		h.Blending.hasMultipleExtraChannels = numEC > 1
		h.Blending.isPartialFrame = partial
		if err := v.VisitNested(&h.Blending); err != nil {
			return err
		}
		replaceAll := h.Blending.Mode == BlendReplace
		h.ExtraChannelBlending = resize(h.ExtraChannelBlending, numEC, BlendingInfo{})
		for i := range h.ExtraChannelBlending {
			ec := &h.ExtraChannelBlending[i]
			ec.hasMultipleExtraChannels = numEC > 1
			ec.isPartialFrame = partial
			if err := v.VisitNested(ec); err != nil {
				return fmt.Errorf("extra channel %d: %w", i, err)
			}
			replaceAll = replaceAll && ec.Mode == BlendReplace
		}
		if v.IsReading() && h.isPreview && (!replaceAll || h.CustomSizeOrOrigin) {
			return fmt.Errorf("%w: preview cannot be blended or cropped", fields.ErrMalformed)
		}
		if v.Conditional(md != nil && md.HaveAnimation) {
			h.Animation.metadata = md
			if err := v.VisitNested(&h.Animation); err != nil {
				return err
			}
		} else if resetting {
			h.Animation = NewAnimationFrame(md)
		}
		if err := v.Bool(true, &h.IsLast); err != nil {
			return err
		}
	} else {
		h.IsLast = false
		if resetting {
			h.Animation = NewAnimationFrame(md)
			def := BlendingInfo{hasMultipleExtraChannels: numEC > 1}
			h.Blending = def
			h.ExtraChannelBlending = resize(h.ExtraChannelBlending[:0], numEC, def)
		}
	}

	if v.Conditional(h.Type != TypeDC && !h.IsLast) {
		if err := v.Bits(2, 0, &h.SaveAsReference); err != nil {
			return err
		}
	} else if resetting {
		h.SaveAsReference = 0
	}

	switch {
	case h.Type == TypeDC:
		h.SaveBeforeColorTransform = true
	case v.Conditional(h.CanBeReferenced() && h.Blending.Mode == BlendReplace && !partial && h.Type == TypeRegular):
		if err := v.Bool(false, &h.SaveBeforeColorTransform); err != nil {
			return err
		}
	case v.Conditional(h.Type == TypeReferenceOnly):
		if err := v.Bool(true, &h.SaveBeforeColorTransform); err != nil {
			return err
		}
	case resetting:
		h.SaveBeforeColorTransform = false
	}

	if err := fields.VisitNameString(v, &h.Label); err != nil {
		return err
	}

	if err := v.BeginExtensions(&h.Extensions); err != nil {
		return err
	}
	if more != nil {
		if err := more(v); err != nil {
			return err
		}
	}
	return v.EndExtensions()
}

func (h *Header) visitUpsampling(v *fields.Visitor, useDC bool) error {
	numEC := h.numExtraChannels()
	if !v.Conditional(!useDC) {
		h.Upsampling = 1
		h.ExtraChannelUpsampling = resize(h.ExtraChannelUpsampling[:0], numEC, 1)
		return nil
	}
	if err := v.U32(upsamplingEnc, 1, &h.Upsampling); err != nil {
		return err
	}
	h.ExtraChannelUpsampling = resize(h.ExtraChannelUpsampling, numEC, 1)
	for i := range h.ExtraChannelUpsampling {
		shift := h.metadata.M.ExtraChannels[i].DimShift
		// coded relative to the channel's own downsampling
		up := h.ExtraChannelUpsampling[i] >> shift
		if err := v.U32(upsamplingEnc, 1, &up); err != nil {
			return err
		}
		h.ExtraChannelUpsampling[i] = up << shift
		if h.ExtraChannelUpsampling[i] < h.Upsampling || h.ExtraChannelUpsampling[i] > 8 {
			return fmt.Errorf("%w: extra channel %d upsampling %d with color upsampling %d",
				fields.ErrMalformed, i, h.ExtraChannelUpsampling[i], h.Upsampling)
		}
	}
	return nil
}

func (h *Header) visitCrop(v *fields.Visitor) error {
	if !v.Conditional(h.Type != TypeDC) {
		if v.Resetting() {
			h.CustomSizeOrOrigin = false
		}
		return nil
	}
	if err := v.Bool(false, &h.CustomSizeOrOrigin); err != nil {
		return err
	}
	if !v.Conditional(h.CustomSizeOrOrigin) {
		return nil
	}
	if v.Conditional(h.Type == TypeRegular) {
		for _, p := range []*int32{&h.FrameOrigin.X0, &h.FrameOrigin.Y0} {
			u := fields.PackSigned(*p)
			if err := v.U32(cropEnc, 0, &u); err != nil {
				return err
			}
			*p = fields.UnpackSigned(u)
		}
	}
	if err := v.U32(cropEnc, 0, &h.FrameSize.XSize); err != nil {
		return err
	}
	if err := v.U32(cropEnc, 0, &h.FrameSize.YSize); err != nil {
		return err
	}
	if v.Direction() != fields.DirAllDefault && (h.FrameSize.XSize == 0 || h.FrameSize.YSize == 0) {
		return fmt.Errorf("%w: zero sized crop %dx%d", fields.ErrMalformed, h.FrameSize.XSize, h.FrameSize.YSize)
	}
	return nil
}

func resize[T any](s []T, n int, fill T) []T {
	if len(s) > n {
		return s[:n]
	}
	for len(s) < n {
		s = append(s, fill)
	}
	return s
}

// ReadFrameHeader decodes h from r, which must be byte aligned
func ReadFrameHeader(r *bitio.BitReader, h *Header) error {
	start := r.Position()
	allDefault, err := fields.Read(r, h)
	if err != nil {
		return err
	}
	h.AllDefaultCache = allDefault
	slog.Debug("decoded frame header",
		slog.String("type", h.Type.String()),
		slog.String("encoding", h.Encoding.String()),
		slog.Bool("is_last", h.IsLast),
		slog.Uint64("bits", r.Position()-start))
	return nil
}

// WriteFrameHeader encodes h to w
func WriteFrameHeader(h *Header, w *bitio.BitWriter) error {
	allDefault, err := fields.Write(h, w)
	if err != nil {
		return err
	}
	h.AllDefaultCache = allDefault
	return nil
}
