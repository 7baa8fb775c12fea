package frame

import (
	"errors"
	"fmt"

	"github.com/jpfielding/jxlmeta.go/pkg/fields"
)

// ErrInvalidSubsampling signals sampling factors no channel mode matches
var ErrInvalidSubsampling = errors.New("invalid chroma subsampling")

// channel mode -> log2 downsampling of that channel
var (
	hShift = [4]uint8{0, 1, 1, 0}
	vShift = [4]uint8{0, 1, 0, 1}
)

// YCbCrChromaSubsampling holds a mode per channel in Cb, Y, Cr order:
// 0 full resolution, 1 halved both ways, 2 halved horizontally, 3 halved
// vertically.
type YCbCrChromaSubsampling struct {
	ChannelMode [3]uint32
	maxHS       uint8
	maxVS       uint8
}

func (s *YCbCrChromaSubsampling) Name() string { return "YCbCrChromaSubsampling" }

func (s *YCbCrChromaSubsampling) VisitFields(v *fields.Visitor) error {
	for i := range s.ChannelMode {
		if err := v.Bits(2, 0, &s.ChannelMode[i]); err != nil {
			return err
		}
	}
	s.recompute()
	return nil
}

// Set takes JPEG sampling factors in Y, Cb, Cr order
func (s *YCbCrChromaSubsampling) Set(hsample, vsample [3]uint8) error {
	maxH, maxV := max(hsample[0], hsample[1], hsample[2]), max(vsample[0], vsample[1], vsample[2])
	for c := 0; c < 3; c++ {
		cjpeg := c
		if c < 2 {
			cjpeg = c ^ 1
		}
		h, vs := hsample[cjpeg], vsample[cjpeg]
		mode := -1
		for i := range hShift {
			if h != 0 && vs != 0 && h<<hShift[i] == maxH && vs<<vShift[i] == maxV {
				mode = i
				break
			}
		}
		if mode < 0 {
			return fmt.Errorf("%w: %v/%v", ErrInvalidSubsampling, hsample, vsample)
		}
		s.ChannelMode[c] = uint32(mode)
	}
	s.recompute()
	return nil
}

func (s *YCbCrChromaSubsampling) recompute() {
	s.maxHS, s.maxVS = 0, 0
	for _, m := range s.ChannelMode {
		s.maxHS = max(s.maxHS, hShift[m&3])
		s.maxVS = max(s.maxVS, vShift[m&3])
	}
}

// HShift is the horizontal log2 downsampling of channel c
func (s *YCbCrChromaSubsampling) HShift(c int) int { return int(hShift[s.ChannelMode[c]&3]) }

// VShift is the vertical log2 downsampling of channel c
func (s *YCbCrChromaSubsampling) VShift(c int) int { return int(vShift[s.ChannelMode[c]&3]) }

func (s *YCbCrChromaSubsampling) MaxHShift() int { return int(s.maxHS) }
func (s *YCbCrChromaSubsampling) MaxVShift() int { return int(s.maxVS) }

func (s *YCbCrChromaSubsampling) Is444() bool {
	return s.ChannelMode[0] == s.ChannelMode[1] && s.ChannelMode[2] == s.ChannelMode[1]
}

func (s *YCbCrChromaSubsampling) Is420() bool { return s.chromaOnly(1) }
func (s *YCbCrChromaSubsampling) Is422() bool { return s.chromaOnly(2) }
func (s *YCbCrChromaSubsampling) Is440() bool { return s.chromaOnly(3) }

// chromaOnly: luma at full resolution, both chroma channels in mode
func (s *YCbCrChromaSubsampling) chromaOnly(mode uint32) bool {
	return s.ChannelMode[1] == 0 && s.ChannelMode[0] == mode && s.ChannelMode[2] == mode
}
