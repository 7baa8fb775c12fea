package frame

import (
	"testing"

	"github.com/jpfielding/jxlmeta.go/pkg/bitio"
	"github.com/jpfielding/jxlmeta.go/pkg/fields"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChromaSubsampling_Set(t *testing.T) {
	tests := []struct {
		name               string
		h, v               [3]uint8
		is444, is420       bool
		is422, is440       bool
		maxH, maxV         int
		lumaH, chromaShift int
	}{
		{"444", [3]uint8{1, 1, 1}, [3]uint8{1, 1, 1}, true, false, false, false, 0, 0, 0, 0},
		{"444 doubled", [3]uint8{2, 2, 2}, [3]uint8{2, 2, 2}, true, false, false, false, 0, 0, 0, 0},
		{"420", [3]uint8{2, 1, 1}, [3]uint8{2, 1, 1}, false, true, false, false, 1, 1, 0, 1},
		{"422", [3]uint8{2, 1, 1}, [3]uint8{1, 1, 1}, false, false, true, false, 1, 0, 0, 1},
		{"440", [3]uint8{1, 1, 1}, [3]uint8{2, 1, 1}, false, false, false, true, 0, 1, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s YCbCrChromaSubsampling
			require.NoError(t, s.Set(tt.h, tt.v))
			assert.Equal(t, tt.is444, s.Is444())
			assert.Equal(t, tt.is420, s.Is420())
			assert.Equal(t, tt.is422, s.Is422())
			assert.Equal(t, tt.is440, s.Is440())
			assert.Equal(t, tt.maxH, s.MaxHShift())
			assert.Equal(t, tt.maxV, s.MaxVShift())
			// channel 1 is luma, channel 0 is Cb
			assert.Equal(t, tt.lumaH, s.HShift(1))
			assert.Equal(t, tt.chromaShift, s.HShift(0))

			w := bitio.NewBitWriter()
			_, err := fields.Write(&s, w)
			require.NoError(t, err)
			var got YCbCrChromaSubsampling
			_, err = fields.Read(bitio.NewBitReader(w.Bytes()), &got)
			require.NoError(t, err)
			assert.Equal(t, s, got)
		})
	}
}

func TestChromaSubsampling_Invalid(t *testing.T) {
	for _, hv := range [][2][3]uint8{
		{{3, 1, 1}, {1, 1, 1}},
		{{4, 1, 1}, {1, 1, 1}},
		{{0, 1, 1}, {1, 1, 1}},
	} {
		var s YCbCrChromaSubsampling
		assert.ErrorIs(t, s.Set(hv[0], hv[1]), ErrInvalidSubsampling, "%v", hv)
	}
}

func TestPasses(t *testing.T) {
	p := Passes{NumPasses: 3, NumDownsample: 2,
		Shift: [MaxNumPasses]uint32{1, 2}, Downsample: [MaxNumPasses]uint32{4, 2}, LastPass: [MaxNumPasses]uint32{0, 1}}
	w := bitio.NewBitWriter()
	_, err := fields.Write(&p, w)
	require.NoError(t, err)
	var got Passes
	_, err = fields.Read(bitio.NewBitReader(w.Bytes()), &got)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	tests := []struct {
		done uint32
		want uint32
	}{
		{0, 8}, {1, 4}, {2, 2}, {3, 1}, {9, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, got.DownsamplingTargetForCompletedPasses(tt.done), "%d passes", tt.done)
	}

	bad := Passes{NumPasses: 2, NumDownsample: 1, LastPass: [MaxNumPasses]uint32{2}}
	_, err = fields.Write(&bad, bitio.NewBitWriter())
	assert.ErrorIs(t, err, fields.ErrMalformed)

	bad = Passes{NumPasses: 2, NumDownsample: 3}
	_, err = fields.Write(&bad, bitio.NewBitWriter())
	assert.ErrorIs(t, err, fields.ErrMalformed)

	bad = Passes{NumPasses: MaxNumPasses + 1}
	_, err = fields.Write(&bad, bitio.NewBitWriter())
	assert.ErrorIs(t, err, fields.ErrOutOfRange)
}

func TestBlendingInfo_Presence(t *testing.T) {
	tests := []struct {
		name string
		in   BlendingInfo
		bits uint64
	}{
		{"replace full", BlendingInfo{Mode: BlendReplace}, 2},
		{"replace partial", BlendingInfo{Mode: BlendReplace, isPartialFrame: true}, 2 + 2},
		{"add", BlendingInfo{Mode: BlendAdd}, 2 + 2},
		{"blend one channel", BlendingInfo{Mode: BlendBlend}, 2 + 1 + 2},
		{"blend many channels", BlendingInfo{Mode: BlendBlend, AlphaChannel: 4, hasMultipleExtraChannels: true}, 2 + 2 + 3 + 1 + 2},
		{"mul", BlendingInfo{Mode: BlendMul, hasMultipleExtraChannels: true}, 2 + 1 + 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := fields.EncodedBits(&tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.bits, n)
		})
	}
	m, err := ParseBlendMode("alpha-weighted-add")
	require.NoError(t, err)
	assert.Equal(t, BlendAlphaWeightedAdd, m)
	_, err = ParseBlendMode("over")
	assert.Error(t, err)
}
