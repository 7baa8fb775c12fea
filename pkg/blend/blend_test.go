package blend

import (
	"testing"

	"github.com/jpfielding/jxlmeta.go/pkg/frame"
	"github.com/jpfielding/jxlmeta.go/pkg/headers"
	"github.com/jpfielding/jxlmeta.go/pkg/image"
	"github.com/jpfielding/jxlmeta.go/pkg/parallel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSample(t *testing.T) {
	tests := []struct {
		name string
		mode frame.BlendMode
		ch   Channel
		p    Pixel
		want float32
	}{
		{"replace", frame.BlendReplace, Channel{}, Pixel{Old: 0.2, New: 0.8}, 0.8},
		{"add", frame.BlendAdd, Channel{}, Pixel{Old: 0.2, New: 0.3}, 0.5},
		{"mul", frame.BlendMul, Channel{}, Pixel{Old: 0.5, New: 0.5}, 0.25},
		{"mul clamped", frame.BlendMul, Channel{Clamp: true}, Pixel{Old: 0.5, New: 3}, 0.5},
		{"blend associated", frame.BlendBlend, Channel{Associated: true}, Pixel{Old: 0.2, New: 0.8, OldAlpha: 1, NewAlpha: 0.5}, 0.9},
		{"blend unassociated", frame.BlendBlend, Channel{}, Pixel{Old: 0.2, New: 0.8, OldAlpha: 1, NewAlpha: 0.5}, 0.5},
		{"blend unassociated transparent", frame.BlendBlend, Channel{}, Pixel{Old: 0.2, New: 0.8}, 0},
		{"blend alpha", frame.BlendBlend, Channel{IsAlpha: true}, Pixel{Old: 0.5, New: 0.5}, 0.75},
		{"blend clamped alpha", frame.BlendBlend, Channel{IsAlpha: true, Clamp: true}, Pixel{Old: 0.5, New: 2}, 1},
		{"weighted add", frame.BlendAlphaWeightedAdd, Channel{}, Pixel{Old: 0.2, New: 0.4, NewAlpha: 0.5}, 0.4},
		{"weighted add clamped", frame.BlendAlphaWeightedAdd, Channel{Clamp: true}, Pixel{Old: 0.2, New: 0.4, NewAlpha: 4}, 0.6},
		{"weighted add alpha", frame.BlendAlphaWeightedAdd, Channel{IsAlpha: true}, Pixel{Old: 0.5, New: 0.5}, 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sample(tt.mode, tt.ch, tt.p)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}
	_, err := Sample(frame.BlendMode(7), Channel{}, Pixel{})
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestSlots(t *testing.T) {
	var s Slots
	l := NewLayer(1, 1, 0)
	require.NoError(t, s.Save(1, l, true))
	require.NoError(t, s.Save(2, l, false))

	_, err := s.ForBlend(1)
	assert.ErrorIs(t, err, ErrSlotUsage)
	got, err := s.ForPatch(1)
	require.NoError(t, err)
	assert.Same(t, l, got)

	_, err = s.ForPatch(2)
	assert.ErrorIs(t, err, ErrSlotUsage)
	got, err = s.ForBlend(2)
	require.NoError(t, err)
	assert.Same(t, l, got)

	got, err = s.ForBlend(0)
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.ErrorIs(t, s.Save(4, l, false), ErrInvalidSlot)
	_, err = s.Get(9)
	assert.ErrorIs(t, err, ErrInvalidSlot)

	s.Reset()
	ref, err := s.Get(2)
	require.NoError(t, err)
	assert.Nil(t, ref.Layer)
}

func alphaMetadata(t *testing.T, xsize, ysize uint64) *headers.CodecMetadata {
	t.Helper()
	md, err := headers.NewCodecMetadata(xsize, ysize)
	require.NoError(t, err)
	md.M.SetAlphaBits(8, false)
	return md
}

func solid(xsize, ysize int, color, alpha float32) *Layer {
	l := NewLayer(xsize, ysize, 1)
	for _, p := range l.Color.Planes {
		p.Fill(color)
	}
	l.Extra[0].Fill(alpha)
	return l
}

func TestCompositor_BlendOverBackground(t *testing.T) {
	for _, runner := range []parallel.Runner{nil, parallel.NewPool(3)} {
		md := alphaMetadata(t, 4, 4)
		c := NewCompositor(md, runner)

		bg := frame.New(md)
		bg.IsLast = false
		out, err := c.Composite(bg, solid(4, 4, 0.5, 1))
		require.NoError(t, err)
		assert.Equal(t, float32(0.5), out.Color.Plane(1).At(3, 3))

		top := frame.New(md)
		top.CustomSizeOrOrigin = true
		top.FrameOrigin = frame.Origin{X0: 2, Y0: 2}
		top.FrameSize = frame.Size{XSize: 3, YSize: 3}
		top.Blending = frame.BlendingInfo{Mode: frame.BlendBlend}
		top.ExtraChannelBlending[0] = frame.BlendingInfo{Mode: frame.BlendBlend}
		out, err = c.Composite(top, solid(3, 3, 1, 0.5))
		require.NoError(t, err)

		for _, pt := range [][2]int{{0, 0}, {3, 1}, {1, 3}} {
			assert.Equal(t, float32(0.5), out.Color.Plane(0).At(pt[0], pt[1]), "%v", pt)
		}
		for _, pt := range [][2]int{{2, 2}, {3, 3}} {
			assert.InDelta(t, 0.75, out.Color.Plane(2).At(pt[0], pt[1]), 1e-6, "%v", pt)
			assert.InDelta(t, 1, out.Extra[0].At(pt[0], pt[1]), 1e-6, "%v", pt)
		}
		// the terminal frame is not saved
		ref, err := c.Slots.Get(0)
		require.NoError(t, err)
		assert.NotSame(t, out, ref.Layer)
	}
}

func TestCompositor_EmptySourceIsTransparent(t *testing.T) {
	md := alphaMetadata(t, 2, 1)
	c := NewCompositor(md, nil)
	h := frame.New(md)
	h.Blending = frame.BlendingInfo{Mode: frame.BlendAdd, Source: 3}
	h.ExtraChannelBlending[0] = frame.BlendingInfo{Mode: frame.BlendReplace}
	out, err := c.Composite(h, solid(2, 1, 0.25, 1))
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, 0.25}, out.Color.Plane(0).Row(0))
}

func TestCompositor_ReferenceOnly(t *testing.T) {
	md := alphaMetadata(t, 4, 2)
	c := NewCompositor(md, nil)
	h := frame.New(md)
	h.Type = frame.TypeReferenceOnly
	h.IsLast = false
	h.CustomSizeOrOrigin = true
	h.FrameSize = frame.Size{XSize: 2, YSize: 2}
	h.SaveAsReference = 2
	out, err := c.Composite(h, solid(2, 2, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1, 0, 0}, out.Color.Plane(0).Row(1))

	got, err := c.Slots.ForBlend(2)
	require.NoError(t, err)
	assert.Same(t, out, got)
}

func TestCompositor_Rejects(t *testing.T) {
	md := alphaMetadata(t, 2, 2)
	c := NewCompositor(md, nil)

	dc := frame.New(md)
	dc.Type = frame.TypeDC
	dc.DCLevel = 1
	_, err := c.Composite(dc, solid(1, 1, 0, 0))
	assert.ErrorIs(t, err, ErrDCFrame)

	_, err = c.Composite(frame.New(md), solid(1, 2, 0, 0))
	assert.ErrorIs(t, err, ErrLayerSize)

	other := alphaMetadata(t, 2, 2)
	_, err = c.Composite(frame.New(other), solid(2, 2, 0, 0))
	assert.ErrorIs(t, err, ErrForeignHeader)

	saved := frame.New(md)
	saved.IsLast = false
	saved.SaveAsReference = 1
	saved.SaveBeforeColorTransform = true
	_, err = c.Composite(saved, solid(2, 2, 0, 1))
	require.NoError(t, err)

	add := frame.New(md)
	add.Blending = frame.BlendingInfo{Mode: frame.BlendAdd, Source: 1}
	_, err = c.Composite(add, solid(2, 2, 0, 1))
	assert.ErrorIs(t, err, ErrSlotUsage)

	bad := frame.New(md)
	bad.Blending = frame.BlendingInfo{Mode: frame.BlendAdd, Source: 5}
	_, err = c.Composite(bad, solid(2, 2, 0, 1))
	assert.Error(t, err)
}

func TestCompositor_DownsampledExtraChannel(t *testing.T) {
	md := alphaMetadata(t, 8, 8)
	md.M.ExtraChannels = append(md.M.ExtraChannels, headers.ExtraChannelInfo{
		Type: headers.ExtraChannelDepth, BitDepth: headers.BitDepth{BitsPerSample: 8}, DimShift: 1})
	depth := &md.M.ExtraChannels[1]
	layer := func(xsize, ysize int, color, z float32) *Layer {
		l := solid(xsize, ysize, color, 1)
		p := image.NewPlane[float32](int(depth.Size(uint64(xsize))), int(depth.Size(uint64(ysize))))
		p.Fill(z)
		l.Extra = append(l.Extra, p)
		return l
	}
	add := frame.BlendingInfo{Mode: frame.BlendAdd}

	for _, runner := range []parallel.Runner{nil, parallel.NewPool(2)} {
		c := NewCompositor(md, runner)
		bg := frame.New(md)
		bg.IsLast = false
		out, err := c.Composite(bg, layer(8, 8, 0.5, 0.25))
		require.NoError(t, err)
		require.Equal(t, 4, out.Extra[1].XSize())
		require.Equal(t, 4, out.Extra[1].YSize())

		top := frame.New(md)
		top.IsLast = false
		top.CustomSizeOrOrigin = true
		top.FrameOrigin = frame.Origin{X0: 2, Y0: 2}
		top.FrameSize = frame.Size{XSize: 4, YSize: 4}
		top.Blending = add
		top.ExtraChannelBlending = []frame.BlendingInfo{add, add}
		out, err = c.Composite(top, layer(4, 4, 0.5, 0.5))
		require.NoError(t, err)
		assert.InDelta(t, 1, out.Color.Plane(0).At(2, 2), 1e-6)
		assert.InDelta(t, 0.5, out.Color.Plane(0).At(1, 1), 1e-6)
		for _, pt := range [][2]int{{1, 1}, {2, 2}} {
			assert.InDelta(t, 0.75, out.Extra[1].At(pt[0], pt[1]), 1e-6, "%v", pt)
		}
		for _, pt := range [][2]int{{0, 0}, {3, 3}} {
			assert.InDelta(t, 0.25, out.Extra[1].At(pt[0], pt[1]), 1e-6, "%v", pt)
		}

		// an odd origin and size still land inside the downsampled canvas
		edge := frame.New(md)
		edge.CustomSizeOrOrigin = true
		edge.FrameOrigin = frame.Origin{X0: 3, Y0: 3}
		edge.FrameSize = frame.Size{XSize: 5, YSize: 5}
		edge.Blending = add
		edge.ExtraChannelBlending = []frame.BlendingInfo{add, add}
		out, err = c.Composite(edge, layer(5, 5, 0, 0.5))
		require.NoError(t, err)
		assert.InDelta(t, 0.75, out.Extra[1].At(3, 3), 1e-6)
		assert.InDelta(t, 0.25, out.Extra[1].At(0, 0), 1e-6)
	}
}

func TestCompositor_RejectsMissizedExtraChannel(t *testing.T) {
	md := alphaMetadata(t, 4, 4)
	md.M.ExtraChannels = append(md.M.ExtraChannels, headers.ExtraChannelInfo{
		Type: headers.ExtraChannelDepth, BitDepth: headers.BitDepth{BitsPerSample: 8}, DimShift: 1})
	c := NewCompositor(md, nil)
	l := solid(4, 4, 0, 1)
	l.Extra = append(l.Extra, image.NewPlane[float32](4, 4))
	_, err := c.Composite(frame.New(md), l)
	assert.ErrorIs(t, err, ErrLayerSize)
}

func TestCompositor_NoMetadata(t *testing.T) {
	c := NewCompositor(nil, nil)
	_, err := c.Composite(frame.New(nil), NewLayer(1, 1, 0))
	assert.ErrorIs(t, err, ErrNoMetadata)
}
