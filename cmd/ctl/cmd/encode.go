package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jpfielding/jxlmeta.go/pkg/bitio"
	"github.com/jpfielding/jxlmeta.go/pkg/frame"
	"github.com/jpfielding/jxlmeta.go/pkg/headers"
	"github.com/jpfielding/jxlmeta.go/pkg/util"
	"github.com/spf13/cobra"
)

// encodeOptions describe a header dump: codestream headers followed by
// byte aligned frame headers
type encodeOptions struct {
	XSize, YSize uint64
	Animated     bool
	AlphaBits    uint32

	Frames          int
	Type            string
	Modular         bool
	Flags           uint64
	Blend           string
	Source          uint32
	Duration        uint32
	Name            string
	Crop            string
	SaveAsReference uint32
	Zstd            bool
}

// parseCrop reads "x0,y0,xsize,ysize"
func parseCrop(s string) (frame.Origin, frame.Size, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return frame.Origin{}, frame.Size{}, fmt.Errorf("crop %q: want x0,y0,xsize,ysize", s)
	}
	var v [4]int64
	for i, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return frame.Origin{}, frame.Size{}, fmt.Errorf("crop %q: %w", s, err)
		}
		v[i] = n
	}
	if v[2] <= 0 || v[3] <= 0 {
		return frame.Origin{}, frame.Size{}, fmt.Errorf("crop %q: empty size", s)
	}
	return frame.Origin{X0: int32(v[0]), Y0: int32(v[1])}, frame.Size{XSize: uint32(v[2]), YSize: uint32(v[3])}, nil
}

func encodeHeaders(o encodeOptions) ([]byte, error) {
	md, err := headers.NewCodecMetadata(o.XSize, o.YSize)
	if err != nil {
		return nil, err
	}
	md.M.HaveAnimation = o.Animated
	if o.AlphaBits != 0 {
		md.M.SetAlphaBits(o.AlphaBits, false)
	}
	typ, err := frame.ParseType(o.Type)
	if err != nil {
		return nil, err
	}
	mode, err := frame.ParseBlendMode(o.Blend)
	if err != nil {
		return nil, err
	}

	w := bitio.NewBitWriter()
	if err := headers.WriteCodestreamHeaders(w, md); err != nil {
		return nil, err
	}
	for i := range max(o.Frames, 1) {
		h := frame.New(md)
		h.Type = typ
		if o.Modular {
			h.Encoding = frame.EncodingModular
		}
		h.Flags = o.Flags
		h.Label = o.Name
		h.Animation.Duration = o.Duration
		h.SaveAsReference = o.SaveAsReference
		h.IsLast = i == max(o.Frames, 1)-1
		if typ == frame.TypeDC {
			h.DCLevel = 1
			h.SaveBeforeColorTransform = true
		}
		if o.Crop != "" {
			h.CustomSizeOrOrigin = true
			if h.FrameOrigin, h.FrameSize, err = parseCrop(o.Crop); err != nil {
				return nil, err
			}
		}
		// a full first frame has nothing to blend onto
		if i > 0 || h.IsPartial() {
			info := frame.BlendingInfo{Mode: mode, Source: o.Source}
			h.Blending = info
			for ec := range h.ExtraChannelBlending {
				h.ExtraChannelBlending[ec] = info
			}
		}
		if res := frame.Validate(h); !res.IsValid() {
			return nil, fmt.Errorf("frame %d: %w", i, res.Err())
		}
		if err := frame.WriteFrameHeader(h, w); err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		w.ZeroPadToByte()
		slog.Debug("encoded frame header", slog.Int("frame", i), slog.Uint64("bits", w.BitsWritten()))
	}
	out := w.Bytes()
	if o.Zstd {
		out = util.Compress(out)
	}
	return out, nil
}

// NewEncodeCmd writes frame headers described by flags
func NewEncodeCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "encode codestream and frame headers",
		Long:  "encode the codestream headers followed by one or more frame headers built from flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			var o encodeOptions
			o.XSize, _ = f.GetUint64("xsize")
			o.YSize, _ = f.GetUint64("ysize")
			o.Animated, _ = f.GetBool("animated")
			o.AlphaBits, _ = f.GetUint32("alpha-bits")
			o.Frames, _ = f.GetInt("frames")
			o.Type, _ = f.GetString("type")
			o.Modular, _ = f.GetBool("modular")
			o.Flags, _ = f.GetUint64("flags")
			o.Blend, _ = f.GetString("blend")
			o.Source, _ = f.GetUint32("source")
			o.Duration, _ = f.GetUint32("duration")
			o.Name, _ = f.GetString("name")
			o.Crop, _ = f.GetString("crop")
			o.SaveAsReference, _ = f.GetUint32("save-as-reference")
			o.Zstd, _ = f.GetBool("zstd")

			data, err := encodeHeaders(o)
			if err != nil {
				return err
			}
			out, _ := f.GetString("out")
			slog.InfoContext(ctx, "encoded headers", slog.Int("bytes", len(data)), slog.String("out", out),
				slog.String("md5", util.Md5ThenHex(data)))
			return writeOutput(cmd, out, data)
		},
	}
	pf := cmd.Flags()
	pf.Uint64("xsize", 256, "image width")
	pf.Uint64("ysize", 256, "image height")
	pf.Bool("animated", false, "declare an animation")
	pf.Uint32("alpha-bits", 0, "declare an alpha channel of this depth")
	pf.Int("frames", 1, "number of frame headers, the last one is marked last")
	pf.String("type", "regular", "frame type (regular|dc|reference-only)")
	pf.Bool("modular", false, "modular instead of VarDCT encoding")
	pf.Uint64("flags", 0, "frame flag mask")
	pf.String("blend", "replace", "blend mode of frames after the first (replace|add|blend|alpha-weighted-add|mul)")
	pf.Uint32("source", 0, "reference slot blended onto")
	pf.Uint32("duration", 0, "animation duration in ticks")
	pf.String("name", "", "frame name")
	pf.String("crop", "", "frame crop as x0,y0,xsize,ysize")
	pf.Uint32("save-as-reference", 0, "reference slot the frame is saved into")
	pf.Bool("zstd", false, "zstd frame the output")
	pf.StringP("out", "o", "-", "output path")
	return cmd
}
