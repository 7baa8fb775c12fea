package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(h *Header)
		rule     Rule
		valid    bool
		warnings bool
	}{
		{"default", func(h *Header) {}, 0, true, false},
		{"reference origin", func(h *Header) {
			h.Type = TypeReferenceOnly
			h.FrameOrigin = Origin{X0: 4}
		}, RuleReferenceOrigin, false, false},
		{"dc level", func(h *Header) {
			h.Type = TypeDC
			h.SaveBeforeColorTransform = true
		}, RuleDCFrame, false, false},
		{"dc saved after", func(h *Header) {
			h.Type = TypeDC
			h.DCLevel = 1
		}, RuleSaveBefore, false, false},
		{"blend saved before", func(h *Header) {
			h.IsLast = false
			h.Blending.Mode = BlendBlend
			h.SaveBeforeColorTransform = true
		}, RuleSaveBefore, false, false},
		{"source slot", func(h *Header) {
			h.Blending = BlendingInfo{Mode: BlendAdd, Source: 4}
		}, RuleBlendSource, false, false},
		{"decreasing passes", func(h *Header) {
			h.Passes = Passes{NumPasses: 3, NumDownsample: 2,
				Downsample: [MaxNumPasses]uint32{2, 4}, LastPass: [MaxNumPasses]uint32{0, 1}}
		}, RulePassLayout, false, false},
		{"mul warning", func(h *Header) {
			h.Blending = BlendingInfo{Mode: BlendMul}
		}, 0, true, true},
		{"ignored source", func(h *Header) {
			h.Blending = BlendingInfo{Mode: BlendReplace, Source: 1}
		}, 0, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(nil)
			tt.setup(h)
			res := Validate(h)
			assert.Equal(t, tt.valid, res.IsValid(), res.String())
			assert.Equal(t, tt.warnings, res.HasWarnings())
			if tt.valid {
				assert.NoError(t, res.Err())
				return
			}
			require.True(t, res.HasErrors())
			assert.Equal(t, tt.rule, res.Errors[0].Rule)
			assert.Error(t, res.Err())
		})
	}
}
