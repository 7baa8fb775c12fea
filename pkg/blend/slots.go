package blend

import (
	"errors"
	"fmt"

	"github.com/jpfielding/jxlmeta.go/pkg/frame"
	"github.com/jpfielding/jxlmeta.go/pkg/image"
)

var (
	// ErrUnknownMode signals a blend mode outside Replace..Mul
	ErrUnknownMode = errors.New("unknown blend mode")
	// ErrInvalidSlot signals a reference slot outside 0-3
	ErrInvalidSlot = errors.New("invalid reference slot")
	// ErrSlotUsage signals a reference used on the wrong side of the color
	// transform: patches need frames saved before it, blend modes after
	ErrSlotUsage = errors.New("reference slot saved for other use")
)

// Layer is a float frame raster: color planes plus the extra channels in
// metadata order
type Layer struct {
	Color *image.Image3F
	Extra []*image.ImageF
}

// NewLayer allocates a zeroed layer
func NewLayer(xsize, ysize, numExtra int) *Layer {
	l := &Layer{Color: image.NewImage3[float32](xsize, ysize), Extra: make([]*image.ImageF, numExtra)}
	for i := range l.Extra {
		l.Extra[i] = image.NewPlane[float32](xsize, ysize)
	}
	return l
}

func (l *Layer) XSize() int { return l.Color.XSize() }
func (l *Layer) YSize() int { return l.Color.YSize() }

// Channel returns color plane c for c < 3, else extra channel c-3
func (l *Layer) Channel(c int) *image.ImageF {
	if c < 3 {
		return l.Color.Plane(c)
	}
	return l.Extra[c-3]
}

// NumChannels counts color and extra channels
func (l *Layer) NumChannels() int { return 3 + len(l.Extra) }

func (l *Layer) Clone() *Layer {
	if l == nil {
		return nil
	}
	c := &Layer{Color: l.Color.Clone(), Extra: make([]*image.ImageF, len(l.Extra))}
	for i, e := range l.Extra {
		c.Extra[i] = e.Clone()
	}
	return c
}

// Reference is a saved frame. Saved layers are finalized and must not be
// mutated.
type Reference struct {
	Layer                *Layer
	BeforeColorTransform bool
}

// Slots are the reference storage shared by the frames of one codestream
type Slots struct {
	refs [frame.NumReferenceSlots]Reference
}

func checkSlot(slot uint32) error {
	if slot >= frame.NumReferenceSlots {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}
	return nil
}

// Save replaces the content of slot
func (s *Slots) Save(slot uint32, l *Layer, beforeColorTransform bool) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	s.refs[slot] = Reference{Layer: l, BeforeColorTransform: beforeColorTransform}
	return nil
}

// Get returns the reference in slot; an empty slot has a nil Layer
func (s *Slots) Get(slot uint32) (Reference, error) {
	if err := checkSlot(slot); err != nil {
		return Reference{}, err
	}
	return s.refs[slot], nil
}

// ForBlend returns the layer a blend mode may read, nil for an empty slot
func (s *Slots) ForBlend(slot uint32) (*Layer, error) {
	ref, err := s.Get(slot)
	if err != nil {
		return nil, err
	}
	if ref.Layer != nil && ref.BeforeColorTransform {
		return nil, fmt.Errorf("%w: slot %d is saved before the color transform, only patches may use it", ErrSlotUsage, slot)
	}
	return ref.Layer, nil
}

// ForPatch returns the layer a patch may copy from, nil for an empty slot
func (s *Slots) ForPatch(slot uint32) (*Layer, error) {
	ref, err := s.Get(slot)
	if err != nil {
		return nil, err
	}
	if ref.Layer != nil && !ref.BeforeColorTransform {
		return nil, fmt.Errorf("%w: slot %d is saved after the color transform, only blend modes may use it", ErrSlotUsage, slot)
	}
	return ref.Layer, nil
}

// Reset empties every slot
func (s *Slots) Reset() {
	s.refs = [frame.NumReferenceSlots]Reference{}
}
