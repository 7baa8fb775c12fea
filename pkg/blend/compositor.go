package blend

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jpfielding/jxlmeta.go/pkg/frame"
	"github.com/jpfielding/jxlmeta.go/pkg/headers"
	"github.com/jpfielding/jxlmeta.go/pkg/image"
	"github.com/jpfielding/jxlmeta.go/pkg/parallel"
)

var (
	// ErrDCFrame signals a DC frame passed to the compositor
	ErrDCFrame = errors.New("dc frames are neither blended nor blend sources")
	// ErrLayerSize signals a layer that does not match its frame header
	ErrLayerSize = errors.New("layer does not match frame size")
	// ErrForeignHeader signals a header bound to other codestream metadata
	ErrForeignHeader = errors.New("frame header belongs to other metadata")
	// ErrNoMetadata signals a compositor without codestream metadata
	ErrNoMetadata = errors.New("compositor has no codestream metadata")
)

// Compositor assembles frames of one codestream onto full size canvases
type Compositor struct {
	Slots Slots
	// Runner distributes canvas rows, nil runs sequentially
	Runner parallel.Runner

	metadata *headers.CodecMetadata
}

// NewCompositor binds a compositor to the codestream metadata
func NewCompositor(metadata *headers.CodecMetadata, runner parallel.Runner) *Compositor {
	return &Compositor{metadata: metadata, Runner: runner}
}

// Composite places layer, decoded at the frame size of h, onto its blend
// sources and returns the image sized canvas. Referenceable frames are saved
// into Slots afterwards. Non-regular frames replace at the origin.
func (c *Compositor) Composite(h *frame.Header, layer *Layer) (*Layer, error) {
	if h.Type == frame.TypeDC {
		return nil, ErrDCFrame
	}
	if h.Metadata() != c.metadata {
		return nil, ErrForeignHeader
	}
	if c.metadata == nil {
		return nil, ErrNoMetadata
	}
	if res := frame.Validate(h); !res.IsValid() {
		return nil, fmt.Errorf("frame %q: %w", h.Label, res.Err())
	}
	md := &c.metadata.M
	numEC := md.NumExtraChannels()
	dims := h.ToFrameDimensions()
	if uint64(layer.XSize()) != dims.XSizeUpsampled || uint64(layer.YSize()) != dims.YSizeUpsampled || len(layer.Extra) != numEC {
		return nil, fmt.Errorf("%w: %dx%d with %d extra channels, want %dx%d with %d",
			ErrLayerSize, layer.XSize(), layer.YSize(), len(layer.Extra), dims.XSizeUpsampled, dims.YSizeUpsampled, numEC)
	}
	for i, e := range layer.Extra {
		info := &md.ExtraChannels[i]
		wx, wy := info.Size(dims.XSizeUpsampled), info.Size(dims.YSizeUpsampled)
		if uint64(e.XSize()) != wx || uint64(e.YSize()) != wy {
			return nil, fmt.Errorf("%w: extra channel %d is %dx%d, want %dx%d", ErrLayerSize, i, e.XSize(), e.YSize(), wx, wy)
		}
	}

	xs, ys := c.metadata.XSize(), c.metadata.YSize()
	infos := make([]frame.BlendingInfo, 0, 3+numEC)
	if h.Type == frame.TypeRegular {
		for range 3 {
			infos = append(infos, h.Blending)
		}
		infos = append(infos, h.ExtraChannelBlending...)
	}
	for len(infos) < 3+numEC {
		infos = append(infos, frame.BlendingInfo{})
	}

	// every channel starts from its own blend source
	out := &Layer{Extra: make([]*image.ImageF, numEC)}
	sources := make([]*Layer, len(infos))
	var color [3]*image.ImageF
	for ch, info := range infos {
		if info.Mode != frame.BlendReplace || h.IsPartial() {
			src, err := c.Slots.ForBlend(info.Source)
			if err != nil {
				return nil, err
			}
			sources[ch] = src
		}
		var plane *image.ImageF
		if sources[ch] != nil {
			plane = sources[ch].Channel(ch).Clone()
		} else {
			plane = image.NewPlane[float32](int(channelSize(md, ch, xs)), int(channelSize(md, ch, ys)))
		}
		if ch < 3 {
			color[ch] = plane
		} else {
			out.Extra[ch-3] = plane
		}
	}
	out.Color = &image.Image3F{Planes: color}

	x0, y0 := int(h.FrameOrigin.X0), int(h.FrameOrigin.Y0)
	if h.Type != frame.TypeRegular {
		x0, y0 = 0, 0
	}
	for ch, info := range infos {
		// extra channels blend in their own downsampled coordinates
		shift := dimShift(md, ch)
		dst := out.Channel(ch)
		area := image.Rect{X0: x0 >> shift, Y0: y0 >> shift, XSize: layer.Channel(ch).XSize(), YSize: layer.Channel(ch).YSize()}
		clip := area.Intersect(dst.XSize(), dst.YSize())
		if clip.IsEmpty() {
			continue
		}
		err := parallel.Run(c.Runner, clip.YSize, func(row int) error {
			return blendRow(md, ch, info, sources[ch], layer, out, area, clip, clip.Y0+row)
		})
		if err != nil {
			return nil, err
		}
	}

	if h.CanBeReferenced() {
		if err := c.Slots.Save(h.SaveAsReference, out, h.SaveBeforeColorTransform); err != nil {
			return nil, err
		}
		slog.Debug("saved reference", slog.String("frame", h.Label), slog.Uint64("slot", uint64(h.SaveAsReference)),
			slog.Bool("before_ct", h.SaveBeforeColorTransform))
	}
	return out, nil
}

// dimShift is the log2 downsampling of channel ch, zero for color
func dimShift(md *headers.ImageMetadata, ch int) uint32 {
	if ch < 3 {
		return 0
	}
	return md.ExtraChannels[ch-3].DimShift
}

func channelSize(md *headers.ImageMetadata, ch int, size uint64) uint64 {
	if ch < 3 {
		return size
	}
	return md.ExtraChannels[ch-3].Size(size)
}

// rescale maps coordinate v between channels of differing dim shift,
// clamped to an extent of size
func rescale(v int, from, to uint32, size int) int {
	if from == to {
		return v
	}
	return min((v<<from)>>to, size-1)
}

// blendRow blends row y of channel ch; rows never overlap
func blendRow(md *headers.ImageMetadata, ch int, info frame.BlendingInfo, source *Layer,
	layer, out *Layer, area, clip image.Rect, y int) error {
	ly := y - area.Y0
	lx0 := clip.X0 - area.X0
	dst := out.Channel(ch).Row(y)[clip.X0 : clip.X0+clip.XSize]
	src := layer.Channel(ch).Row(ly)[lx0:]
	if info.Mode == frame.BlendReplace {
		copy(dst, src)
		return nil
	}

	chn := Channel{Clamp: info.Clamp}
	shift := dimShift(md, ch)
	var newAlpha, oldAlpha *image.ImageF
	var alphaShift uint32
	if a := int(info.AlphaChannel); a < len(md.ExtraChannels) && md.ExtraChannels[a].Type == headers.ExtraChannelAlpha {
		chn.IsAlpha = ch == 3+a
		chn.Associated = md.ExtraChannels[a].AlphaAssociated
		alphaShift = md.ExtraChannels[a].DimShift
		newAlpha = layer.Extra[a]
		if source != nil {
			oldAlpha = source.Extra[a]
		}
	}
	var newRow, oldRow []float32
	if newAlpha != nil {
		newRow = newAlpha.Row(rescale(ly, shift, alphaShift, newAlpha.YSize()))
	}
	if oldAlpha != nil {
		oldRow = oldAlpha.Row(rescale(y, shift, alphaShift, oldAlpha.YSize()))
	}
	for x := range dst {
		p := Pixel{Old: dst[x], New: src[x], OldAlpha: 1, NewAlpha: 1}
		if newRow != nil {
			p.NewAlpha = newRow[rescale(lx0+x, shift, alphaShift, len(newRow))]
			p.OldAlpha = 0
			if oldRow != nil {
				p.OldAlpha = oldRow[rescale(clip.X0+x, shift, alphaShift, len(oldRow))]
			}
		}
		v, err := Sample(info.Mode, chn, p)
		if err != nil {
			return err
		}
		dst[x] = v
	}
	return nil
}
