package frame

import (
	"fmt"
	"math/bits"

	"github.com/jpfielding/jxlmeta.go/pkg/fields"
)

// MaxNumPasses bounds progressive passes per frame
const MaxNumPasses = 11

var (
	numPassesEnc     = fields.NewU32Enc(fields.Val(1), fields.Val(2), fields.Val(3), fields.BitsOffset(3, 4))
	numDownsampleEnc = fields.NewU32Enc(fields.Val(0), fields.Val(1), fields.Val(2), fields.BitsOffset(1, 3))
	lastPassEnc      = fields.NewU32Enc(fields.Val(0), fields.Val(1), fields.Val(2), fields.Bits(3))
)

// Passes describes progressive refinement. Stage i reaches resolution
// 1/Downsample[i] once pass LastPass[i] is decoded. The full resolution
// stage after the final pass and the 1:8 stage before the first are implied.
type Passes struct {
	NumPasses     uint32
	NumDownsample uint32
	Downsample    [MaxNumPasses]uint32
	LastPass      [MaxNumPasses]uint32
	// Shift per pass, the last pass always has 0
	Shift [MaxNumPasses]uint32
}

func (p *Passes) Name() string { return "Passes" }

func (p *Passes) VisitFields(v *fields.Visitor) error {
	if err := v.U32(numPassesEnc, 1, &p.NumPasses); err != nil {
		return err
	}
	if p.NumPasses == 0 || p.NumPasses > MaxNumPasses {
		return fmt.Errorf("%w: %d passes", fields.ErrOutOfRange, p.NumPasses)
	}
	if v.Resetting() {
		defer p.clearUnused()
	}
	if !v.Conditional(p.NumPasses != 1) {
		p.NumDownsample = 0
		return nil
	}

	if err := v.U32(numDownsampleEnc, 0, &p.NumDownsample); err != nil {
		return err
	}
	if p.NumDownsample > 4 || p.NumDownsample > p.NumPasses {
		return fmt.Errorf("%w: %d downsample stages for %d passes", fields.ErrMalformed, p.NumDownsample, p.NumPasses)
	}
	for i := uint32(0); i < p.NumPasses-1; i++ {
		if err := v.Bits(2, 0, &p.Shift[i]); err != nil {
			return err
		}
	}
	p.Shift[p.NumPasses-1] = 0
	for i := uint32(0); i < p.NumDownsample; i++ {
		// downsampling factors 1, 2, 4, 8 are coded as log2
		log2 := uint32(0)
		if p.Downsample[i] > 1 {
			log2 = uint32(bits.Len32(p.Downsample[i]-1))
		}
		if err := v.Bits(2, 0, &log2); err != nil {
			return err
		}
		p.Downsample[i] = 1 << log2
	}
	for i := uint32(0); i < p.NumDownsample; i++ {
		if err := v.U32(lastPassEnc, 0, &p.LastPass[i]); err != nil {
			return err
		}
		if p.LastPass[i] >= p.NumPasses {
			return fmt.Errorf("%w: last pass %d of %d", fields.ErrMalformed, p.LastPass[i], p.NumPasses)
		}
	}
	return nil
}

// clearUnused zeroes the entries past NumPasses and NumDownsample
func (p *Passes) clearUnused() {
	for i := min(p.NumPasses, MaxNumPasses); i < MaxNumPasses; i++ {
		p.Shift[i] = 0
	}
	for i := min(p.NumDownsample, MaxNumPasses); i < MaxNumPasses; i++ {
		p.Downsample[i], p.LastPass[i] = 0, 0
	}
}

// DownsamplingTargetForCompletedPasses returns the downsampling factor
// reached once numPasses passes are decoded
func (p *Passes) DownsamplingTargetForCompletedPasses(numPasses uint32) uint32 {
	if numPasses >= p.NumPasses {
		return 1
	}
	target := uint32(8)
	for i := uint32(0); i < p.NumDownsample; i++ {
		if numPasses > p.LastPass[i] {
			target = min(target, p.Downsample[i])
		}
	}
	return target
}
