package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	stdimage "image"
	stdcolor "image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/jpfielding/jxlmeta.go/pkg/frame"
	"github.com/jpfielding/jxlmeta.go/pkg/parallel"
	"github.com/jpfielding/jxlmeta.go/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultOptions() encodeOptions {
	return encodeOptions{XSize: 256, YSize: 128, Frames: 1, Type: "regular", Blend: "replace"}
}

func TestEncodeInspect(t *testing.T) {
	tests := []struct {
		name   string
		modify func(o *encodeOptions)
		check  func(t *testing.T, rep *streamReport)
	}{
		{"single frame", func(o *encodeOptions) {}, func(t *testing.T, rep *streamReport) {
			require.Len(t, rep.Frames, 1)
			f := rep.Frames[0]
			assert.Equal(t, "regular", f.Type)
			assert.Equal(t, "vardct", f.Encoding)
			assert.Equal(t, uint64(256), f.XSize)
			assert.Equal(t, uint64(128), f.YSize)
			assert.True(t, f.IsLast)
			assert.False(t, f.Referenced)
			assert.Empty(t, f.Errors)
		}},
		{"animation", func(o *encodeOptions) {
			o.Animated = true
			o.Frames = 3
			o.Blend = "add"
			o.Duration = 5
			o.Name = "walk"
		}, func(t *testing.T, rep *streamReport) {
			assert.True(t, rep.Animated)
			require.Len(t, rep.Frames, 3)
			assert.Equal(t, "replace", rep.Frames[0].Blend)
			for i, f := range rep.Frames {
				assert.Equal(t, "walk", f.Name)
				assert.Equal(t, uint32(5), f.Duration)
				assert.Equal(t, i == 2, f.IsLast)
				if i > 0 {
					assert.Equal(t, "add", f.Blend)
				}
			}
			// same fields, different blending
			assert.NotEqual(t, rep.Frames[0].Fingerprint, rep.Frames[1].Fingerprint)
		}},
		{"cropped modular", func(o *encodeOptions) {
			o.Modular = true
			o.Crop = "8,16,32,24"
			o.Blend = "blend"
			o.Frames = 2
		}, func(t *testing.T, rep *streamReport) {
			require.Len(t, rep.Frames, 2)
			for _, f := range rep.Frames {
				assert.Equal(t, "modular", f.Encoding)
				assert.True(t, f.Partial)
				assert.Equal(t, int32(8), f.X0)
				assert.Equal(t, int32(16), f.Y0)
				assert.Equal(t, uint64(32), f.XSize)
				assert.Equal(t, uint64(24), f.YSize)
				assert.Equal(t, "blend", f.Blend)
			}
		}},
		{"alpha and zstd", func(o *encodeOptions) {
			o.AlphaBits = 8
			o.Zstd = true
		}, func(t *testing.T, rep *streamReport) {
			assert.Equal(t, 1, rep.ExtraChannels)
			require.Len(t, rep.Frames, 1)
		}},
		{"reference only", func(o *encodeOptions) {
			o.Type = "reference-only"
			o.Frames = 2
			o.SaveAsReference = 2
		}, func(t *testing.T, rep *streamReport) {
			require.Len(t, rep.Frames, 2)
			assert.Equal(t, "reference-only", rep.Frames[0].Type)
			assert.Equal(t, uint32(2), rep.Frames[0].SaveAsReference)
			assert.True(t, rep.Frames[0].Referenced)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := defaultOptions()
			tt.modify(&o)
			data, err := encodeHeaders(o)
			require.NoError(t, err)
			assert.Equal(t, o.Zstd, util.IsCompressed(data))

			rep, err := inspectHeaders(data)
			require.NoError(t, err)
			assert.Equal(t, uint64(256), rep.XSize)
			assert.Equal(t, uint64(128), rep.YSize)
			tt.check(t, rep)
		})
	}
}

func TestEncodeHeaders_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		modify func(o *encodeOptions)
	}{
		{"unknown type", func(o *encodeOptions) { o.Type = "lf" }},
		{"unknown blend", func(o *encodeOptions) { o.Blend = "screen" }},
		{"bad crop", func(o *encodeOptions) { o.Crop = "1,2,3" }},
		{"empty crop", func(o *encodeOptions) { o.Crop = "0,0,0,4" }},
		{"source slot", func(o *encodeOptions) { o.Frames = 2; o.Blend = "add"; o.Source = 4 }},
		{"cropped dc", func(o *encodeOptions) { o.Type = "dc"; o.Crop = "0,0,8,8" }},
		{"empty image", func(o *encodeOptions) { o.XSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := defaultOptions()
			tt.modify(&o)
			_, err := encodeHeaders(o)
			assert.Error(t, err)
		})
	}
}

func TestInspectHeaders_Garbage(t *testing.T) {
	_, err := inspectHeaders([]byte{0x00, 0x01, 0x02})
	assert.Error(t, err)
}

func solid(xs, ys int, c stdcolor.NRGBA) *stdimage.NRGBA {
	im := stdimage.NewNRGBA(stdimage.Rect(0, 0, xs, ys))
	for y := 0; y < ys; y++ {
		for x := 0; x < xs; x++ {
			im.SetNRGBA(x, y, c)
		}
	}
	return im
}

func TestComposeLayers(t *testing.T) {
	red := solid(4, 4, stdcolor.NRGBA{R: 255, A: 255})
	halfBlue := solid(2, 2, stdcolor.NRGBA{B: 255, A: 128})
	gray := solid(4, 4, stdcolor.NRGBA{R: 64, G: 64, B: 64, A: 255})

	tests := []struct {
		name    string
		layers  []stdimage.Image
		origins []frame.Origin
		mode    frame.BlendMode
		at      stdimage.Point
		want    stdcolor.NRGBA
	}{
		{"single", []stdimage.Image{red}, nil, frame.BlendBlend, stdimage.Pt(2, 2), stdcolor.NRGBA{R: 255, A: 255}},
		{"blend inside", []stdimage.Image{red, halfBlue}, []frame.Origin{{}, {X0: 1, Y0: 1}}, frame.BlendBlend,
			stdimage.Pt(1, 1), stdcolor.NRGBA{R: 127, B: 128, A: 255}},
		{"blend outside", []stdimage.Image{red, halfBlue}, []frame.Origin{{}, {X0: 1, Y0: 1}}, frame.BlendBlend,
			stdimage.Pt(0, 0), stdcolor.NRGBA{R: 255, A: 255}},
		{"blend clipped", []stdimage.Image{red, halfBlue}, []frame.Origin{{}, {X0: 3, Y0: -1}}, frame.BlendBlend,
			stdimage.Pt(3, 0), stdcolor.NRGBA{R: 127, B: 128, A: 255}},
		{"add", []stdimage.Image{gray, gray}, nil, frame.BlendAdd, stdimage.Pt(3, 3), stdcolor.NRGBA{R: 128, G: 128, B: 128, A: 255}},
		{"replace", []stdimage.Image{red, gray}, nil, frame.BlendReplace, stdimage.Pt(0, 3), stdcolor.NRGBA{R: 64, G: 64, B: 64, A: 255}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := composeLayers(context.Background(), tt.layers, tt.origins, tt.mode, parallel.NewPool(2))
			require.NoError(t, err)
			require.Equal(t, tt.layers[0].Bounds(), got.Bounds())
			c := got.NRGBAAt(tt.at.X, tt.at.Y)
			assert.InDelta(t, tt.want.R, c.R, 1)
			assert.InDelta(t, tt.want.G, c.G, 1)
			assert.InDelta(t, tt.want.B, c.B, 1)
			assert.InDelta(t, tt.want.A, c.A, 1)
		})
	}

	_, err := composeLayers(context.Background(), nil, nil, frame.BlendBlend, nil)
	assert.Error(t, err)
}

func execute(t *testing.T, args ...string) []byte {
	t.Helper()
	root := NewRoot(context.Background(), "test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(args)
	require.NoError(t, root.Execute())
	return out.Bytes()
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()

	t.Run("version", func(t *testing.T) {
		assert.Equal(t, "test\n", string(execute(t, "version")))
	})

	t.Run("encode inspect", func(t *testing.T) {
		dump := filepath.Join(dir, "headers.bin")
		execute(t, "encode", "--xsize", "64", "--ysize", "32", "--animated", "--frames", "2",
			"--blend", "blend", "--zstd", "-o", dump)
		raw := execute(t, "inspect", "-i", dump, "--json")
		var rep streamReport
		require.NoError(t, json.Unmarshal(raw, &rep))
		assert.Equal(t, uint64(64), rep.XSize)
		require.Len(t, rep.Frames, 2)
		assert.Equal(t, "blend", rep.Frames[1].Blend)
		assert.True(t, rep.Frames[1].IsLast)

		text := execute(t, "inspect", "-i", "file://"+dump)
		assert.Contains(t, string(text), "frame 1")
	})

	t.Run("compose", func(t *testing.T) {
		bg := filepath.Join(dir, "bg.png")
		fg := filepath.Join(dir, "fg.png")
		for path, im := range map[string]stdimage.Image{
			bg: solid(4, 4, stdcolor.NRGBA{G: 255, A: 255}),
			fg: solid(2, 2, stdcolor.NRGBA{R: 255, A: 255}),
		} {
			var buf bytes.Buffer
			require.NoError(t, png.Encode(&buf, im))
			require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
		}
		out := filepath.Join(dir, "out.png")
		execute(t, "compose", "-l", bg, "-l", fg, "--origin", "2,2", "--scale-x", "8", "--scale-y", "8", "-o", out)

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		im, err := png.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, stdimage.Rect(0, 0, 8, 8), im.Bounds())
		r, g, _, _ := im.At(0, 0).RGBA()
		assert.Less(t, r, uint32(0x1000))
		assert.Greater(t, g, uint32(0xF000))
	})
}
