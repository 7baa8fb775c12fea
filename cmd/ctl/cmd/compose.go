package cmd

import (
	"bytes"
	"context"
	"fmt"
	stdimage "image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jpfielding/jxlmeta.go/pkg/blend"
	"github.com/jpfielding/jxlmeta.go/pkg/codec"
	"github.com/jpfielding/jxlmeta.go/pkg/color"
	"github.com/jpfielding/jxlmeta.go/pkg/frame"
	"github.com/jpfielding/jxlmeta.go/pkg/image"
	"github.com/jpfielding/jxlmeta.go/pkg/parallel"
	"github.com/spf13/cobra"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// parseOrigin reads "x0,y0"
func parseOrigin(s string) (frame.Origin, error) {
	x, y, ok := strings.Cut(s, ",")
	if !ok {
		return frame.Origin{}, fmt.Errorf("origin %q: want x0,y0", s)
	}
	x0, err := strconv.ParseInt(strings.TrimSpace(x), 10, 32)
	if err != nil {
		return frame.Origin{}, fmt.Errorf("origin %q: %w", s, err)
	}
	y0, err := strconv.ParseInt(strings.TrimSpace(y), 10, 32)
	if err != nil {
		return frame.Origin{}, fmt.Errorf("origin %q: %w", s, err)
	}
	return frame.Origin{X0: int32(x0), Y0: int32(y0)}, nil
}

// composeLayers blends layers, in order, onto a canvas the size of the first
// one. Every layer after the first uses mode and is placed at its origin.
func composeLayers(ctx context.Context, layers []stdimage.Image, origins []frame.Origin, mode frame.BlendMode, r parallel.Runner) (*stdimage.NRGBA, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("no layers")
	}
	cio := codec.New()
	b := layers[0].Bounds()
	if err := cio.VerifyDimensions(uint64(b.Dx()), uint64(b.Dy())); err != nil {
		return nil, err
	}
	if err := cio.SetSize(uint64(b.Dx()), uint64(b.Dy())); err != nil {
		return nil, err
	}
	md := cio.Metadata()
	md.M.HaveAnimation = len(layers) > 1

	colors := make([]*image.Image3F, len(layers))
	alphas := make([]*image.ImageF, len(layers))
	hasAlpha := false
	for i, l := range layers {
		colors[i], alphas[i] = image.FromStdImage(l)
		hasAlpha = hasAlpha || alphas[i] != nil
	}
	if hasAlpha {
		md.M.SetAlphaBits(8, false)
	}

	comp := blend.NewCompositor(md, r)
	var canvas *blend.Layer
	for i := range layers {
		ib := cio.Main()
		if i > 0 {
			var err error
			if ib, err = cio.NewFrame(); err != nil {
				return nil, err
			}
		}
		if err := ib.SetFromImage(colors[i], color.SRGB(false)); err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		if hasAlpha {
			a := alphas[i]
			if a == nil {
				a = image.NewPlane[float32](colors[i].XSize(), colors[i].YSize())
				a.Fill(1)
			}
			if err := ib.SetAlpha(a, false); err != nil {
				return nil, fmt.Errorf("layer %d: %w", i, err)
			}
		}

		h := frame.New(md)
		h.Label = fmt.Sprintf("layer %d", i)
		h.IsLast = i == len(layers)-1
		xs, ys := uint64(ib.XSize()), uint64(ib.YSize())
		if i < len(origins) {
			h.FrameOrigin = origins[i]
			ib.Origin = origins[i]
		}
		if h.FrameOrigin != (frame.Origin{}) || xs != md.XSize() || ys != md.YSize() {
			h.CustomSizeOrOrigin = true
			h.FrameSize = frame.Size{XSize: uint32(xs), YSize: uint32(ys)}
		}
		if i > 0 {
			info := frame.BlendingInfo{Mode: mode}
			h.Blending = info
			for ec := range h.ExtraChannelBlending {
				h.ExtraChannelBlending[ec] = info
			}
			ib.Blend = mode != frame.BlendReplace
		}
		ib.UseForNextFrame = h.CanBeReferenced()

		layer, err := ib.Layer()
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		if canvas, err = comp.Composite(h, layer); err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		slog.DebugContext(ctx, "composited layer", slog.Int("layer", i), slog.String("blend", h.Blending.Mode.String()),
			slog.Bool("partial", h.IsPartial()))
	}
	if err := cio.CheckMetadata(); err != nil {
		return nil, err
	}

	var alpha *image.ImageF
	if hasAlpha {
		alpha = canvas.Extra[0]
	}
	return image.ToNRGBA(canvas.Color, alpha), nil
}

func NewComposeCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compose",
		Short: "blend image layers like animation frames",
		Long:  "decode image layers and blend them in order onto a canvas the size of the first, writing a PNG",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			paths, _ := f.GetStringArray("layer")
			originArgs, _ := f.GetStringArray("origin")
			modeArg, _ := f.GetString("mode")
			workers, _ := f.GetInt("workers")
			scaleX, _ := f.GetInt("scale-x")
			scaleY, _ := f.GetInt("scale-y")
			out, _ := f.GetString("out")

			mode, err := frame.ParseBlendMode(modeArg)
			if err != nil {
				return err
			}
			var layers []stdimage.Image
			for _, p := range paths {
				data, err := openInput(p)
				if err != nil {
					return err
				}
				im, format, err := stdimage.Decode(bytes.NewReader(data))
				if err != nil {
					return fmt.Errorf("%s: %w", p, err)
				}
				slog.DebugContext(ctx, "decoded layer", slog.String("path", p), slog.String("format", format))
				layers = append(layers, im)
			}
			// the first layer sits at the canvas origin
			origins := []frame.Origin{{}}
			for _, o := range originArgs {
				origin, err := parseOrigin(o)
				if err != nil {
					return err
				}
				origins = append(origins, origin)
			}

			var result stdimage.Image
			if result, err = composeLayers(ctx, layers, origins, mode, parallel.NewPool(workers)); err != nil {
				return err
			}
			if scaleX > 0 && scaleY > 0 {
				result = image.Scale(result, scaleX, scaleY)
			}
			var buf bytes.Buffer
			if err := png.Encode(&buf, result); err != nil {
				return err
			}
			slog.InfoContext(ctx, "composed layers", slog.Int("layers", len(layers)), slog.String("out", out))
			return writeOutput(cmd, out, buf.Bytes())
		},
	}
	pf := cmd.Flags()
	pf.StringArrayP("layer", "l", nil, "image layer, repeat in blend order")
	pf.StringArray("origin", nil, "x0,y0 of each layer after the first")
	pf.String("mode", "blend", "blend mode of layers after the first (replace|add|blend|alpha-weighted-add|mul)")
	pf.Int("workers", 0, "row workers, 0 for GOMAXPROCS")
	pf.Int("scale-x", 0, "resample the result to this width")
	pf.Int("scale-y", 0, "resample the result to this height")
	pf.StringP("out", "o", "-", "output PNG")
	return cmd
}
