package frame

import (
	"github.com/jpfielding/jxlmeta.go/pkg/fields"
	"github.com/jpfielding/jxlmeta.go/pkg/headers"
)

var durationEnc = fields.NewU32Enc(fields.Val(0), fields.Val(1), fields.Bits(8), fields.Bits(32))

// AnimationFrame carries the display timing of one frame
type AnimationFrame struct {
	// Duration in ticks, zero for frames only used as a base for later ones
	Duration uint32
	// Timecode is 0xHHMMSSFF
	Timecode uint32

	metadata *headers.ImageMetadata
}

// NewAnimationFrame binds the frame to the codestream metadata
func NewAnimationFrame(metadata *headers.ImageMetadata) AnimationFrame {
	return AnimationFrame{metadata: metadata}
}

func (a *AnimationFrame) Name() string { return "AnimationFrame" }

func (a *AnimationFrame) VisitFields(v *fields.Visitor) error {
	if v.Conditional(a.metadata != nil && a.metadata.HaveAnimation) {
		if err := v.U32(durationEnc, 0, &a.Duration); err != nil {
			return err
		}
	} else if v.Resetting() {
		a.Duration = 0
	}
	if v.Conditional(a.metadata != nil && a.metadata.HaveAnimation && a.metadata.Animation.HaveTimecodes) {
		if err := v.Bits(32, 0, &a.Timecode); err != nil {
			return err
		}
	} else if v.Resetting() {
		a.Timecode = 0
	}
	return nil
}
