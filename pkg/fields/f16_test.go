package fields

import (
	"testing"

	"github.com/jpfielding/jxlmeta.go/pkg/bitio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type halfs struct {
	A, B float32
}

func (h *halfs) Name() string { return "halfs" }

func (h *halfs) VisitFields(v *Visitor) error {
	if err := v.F16(255, &h.A); err != nil {
		return err
	}
	return v.F16(0, &h.B)
}

func TestF16_RoundTrip(t *testing.T) {
	for _, f := range []float32{0, 1, -2.5, 255, 65504, 0.000061035156, 5.9604645e-08, 1.0 / 3} {
		w := bitio.NewBitWriter()
		in := &halfs{A: f, B: -f}
		_, err := Write(in, w)
		require.NoError(t, err)
		assert.Equal(t, uint64(32), w.BitsWritten())

		var out halfs
		_, err = Read(bitio.NewBitReader(w.Bytes()), &out)
		require.NoError(t, err)
		assert.InEpsilon(t, float64(f)+1e-9, float64(out.A)+1e-9, 1e-3, "%v", f)
		assert.Equal(t, -out.A, out.B)
	}
}

func TestF16_Rejects(t *testing.T) {
	_, err := Write(&halfs{A: 70000}, bitio.NewBitWriter())
	assert.ErrorIs(t, err, ErrOutOfRange)

	// 0x7C00 is +Inf
	_, err = Read(bitio.NewBitReader([]byte{0x00, 0x7C, 0, 0}), &halfs{})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestF16_Default(t *testing.T) {
	h := &halfs{}
	require.NoError(t, SetDefault(h))
	assert.Equal(t, float32(255), h.A)
	assert.True(t, IsAllDefault(h))
}
