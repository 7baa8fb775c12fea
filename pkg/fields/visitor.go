// Package fields implements the self-describing header serialization engine.
//
// A header type declares its fields once, in VisitFields, and that single
// traversal is driven in every direction: decoding from a bit stream,
// encoding to one, checking whether all fields hold their defaults, and
// resetting them to defaults. Conditional fields are expressed with
// Conditional so the predicate is evaluated identically in both directions.
//
//	func (p *Point) VisitFields(v *fields.Visitor) error {
//		if err := v.Bool(false, &p.HasZ); err != nil {
//			return err
//		}
//		if v.Conditional(p.HasZ) {
//			return v.U32(fields.NewU32Enc(fields.Val(0), fields.Bits(4), fields.Bits(8), fields.Bits(16)), 0, &p.Z)
//		}
//		return nil
//	}
package fields

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jpfielding/jxlmeta.go/pkg/bitio"
)

var (
	// ErrOutOfRange signals a value no configured encoding can represent (encoder side)
	ErrOutOfRange = errors.New("value out of encodable range")
	// ErrMalformed signals stream content that violates the format
	ErrMalformed = errors.New("malformed field")
)

// Fields is implemented by every header structure
type Fields interface {
	// Name identifies the structure in errors and logs
	Name() string
	// VisitFields visits all fields in their fixed declared order
	VisitFields(v *Visitor) error
}

// Direction selects what a traversal does with each visited field
type Direction int

const (
	// DirRead populates fields from a bit stream
	DirRead Direction = iota
	// DirWrite emits fields to a bit stream
	DirWrite
	// DirAllDefault only compares fields against their defaults
	DirAllDefault
	// DirSetDefault assigns every field its default
	DirSetDefault
)

func (d Direction) String() string {
	switch d {
	case DirRead:
		return "read"
	case DirWrite:
		return "write"
	case DirAllDefault:
		return "all-default"
	case DirSetDefault:
		return "set-default"
	default:
		return "unknown"
	}
}

// Visitor drives one traversal of a Fields tree
type Visitor struct {
	dir        Direction
	r          *bitio.BitReader
	w          *bitio.BitWriter
	allDefault bool

	// measuring marks the sizing pre-pass of a write; it records the
	// payload size of every visited extension.
	measuring bool
	extIndex  int
	extSizes  map[int]*[64]uint64
	exts      []*extState
}

type extState struct {
	mask  uint64
	sizes [64]uint64
	next  int // lowest extension bit not yet consumed
	index int
}

// Direction returns the traversal direction
func (v *Visitor) Direction() Direction {
	return v.dir
}

// IsReading returns true while decoding from a stream
func (v *Visitor) IsReading() bool {
	return v.dir == DirRead
}

// Resetting is true when fields that are not visited must take their
// defaults, so a reused structure keeps nothing from an earlier traversal
func (v *Visitor) Resetting() bool {
	return v.dir == DirRead || v.dir == DirSetDefault
}

// Conditional returns cond; fields guarded by it are visited only when true
func (v *Visitor) Conditional(cond bool) bool {
	return cond
}

func (v *Visitor) track(isDefault bool) {
	v.allDefault = v.allDefault && isDefault
}

// Bits visits a raw n-bit field
func (v *Visitor) Bits(n int, def uint32, value *uint32) error {
	switch v.dir {
	case DirRead:
		raw, err := v.r.ReadBits(n)
		if err != nil {
			return err
		}
		*value = uint32(raw)
	case DirWrite:
		if n < 32 && *value>>n != 0 {
			return fmt.Errorf("%w: %d in %d bits", ErrOutOfRange, *value, n)
		}
		if err := v.w.WriteBits(uint64(*value), n); err != nil {
			return err
		}
	case DirSetDefault:
		*value = def
	}
	v.track(*value == def)
	return nil
}

// U32 visits a field coded with one of the four variants of enc
func (v *Visitor) U32(enc U32Enc, def uint32, value *uint32) error {
	switch v.dir {
	case DirRead:
		got, err := ReadU32(v.r, enc)
		if err != nil {
			return err
		}
		*value = got
	case DirWrite:
		if err := WriteU32(v.w, enc, *value); err != nil {
			return err
		}
	case DirSetDefault:
		*value = def
	}
	v.track(*value == def)
	return nil
}

// U64 visits a variable length 64-bit field
func (v *Visitor) U64(def uint64, value *uint64) error {
	switch v.dir {
	case DirRead:
		got, err := ReadU64(v.r)
		if err != nil {
			return err
		}
		*value = got
	case DirWrite:
		if err := WriteU64(v.w, *value); err != nil {
			return err
		}
	case DirSetDefault:
		*value = def
	}
	v.track(*value == def)
	return nil
}

// Bool visits a single-bit field
func (v *Visitor) Bool(def bool, value *bool) error {
	switch v.dir {
	case DirRead:
		got, err := v.r.ReadBit()
		if err != nil {
			return err
		}
		*value = got
	case DirWrite:
		if err := v.w.WriteBit(*value); err != nil {
			return err
		}
	case DirSetDefault:
		*value = def
	}
	v.track(*value == def)
	return nil
}

// AllDefault visits the leading all_default bit of f. When it returns true
// the caller must return immediately: the remaining fields were not coded
// and, when reading, have been reset to their defaults.
func (v *Visitor) AllDefault(f Fields, allDefault *bool) (bool, error) {
	switch v.dir {
	case DirRead:
		got, err := v.r.ReadBit()
		if err != nil {
			return false, err
		}
		*allDefault = got
		if got {
			if err := SetDefault(f); err != nil {
				return false, err
			}
		}
		return got, nil
	case DirWrite:
		*allDefault = IsAllDefault(f)
		if err := v.w.WriteBit(*allDefault); err != nil {
			return false, err
		}
		return *allDefault, nil
	case DirSetDefault:
		*allDefault = true
	}
	return false, nil
}

// VisitNested visits a sub-structure in the same traversal
func (v *Visitor) VisitNested(f Fields) error {
	if err := f.VisitFields(v); err != nil {
		return fmt.Errorf("%s: %w", f.Name(), err)
	}
	return nil
}

// BeginExtensions visits the extension mask and the payload size of every
// set extension bit. It must be paired with EndExtensions.
func (v *Visitor) BeginExtensions(extensions *uint64) error {
	if err := v.U64(0, extensions); err != nil {
		return err
	}
	st := &extState{mask: *extensions, index: v.extIndex}
	v.extIndex++
	if v.dir == DirWrite && !v.measuring {
		if sizes, ok := v.extSizes[st.index]; ok {
			st.sizes = *sizes
		}
	}
	for i := 0; i < 64; i++ {
		if st.mask&(1<<i) == 0 {
			continue
		}
		switch v.dir {
		case DirRead:
			size, err := ReadU64(v.r)
			if err != nil {
				return err
			}
			st.sizes[i] = size
		case DirWrite:
			if err := WriteU64(v.w, st.sizes[i]); err != nil {
				return err
			}
		}
	}
	v.exts = append(v.exts, st)
	return nil
}

// Extension visits the fields introduced by extension bit. When the bit is
// not set the fields are not coded; a reader resets them to defaults.
func (v *Visitor) Extension(bit int, visit func() error) error {
	if len(v.exts) == 0 {
		return fmt.Errorf("extension %d outside BeginExtensions", bit)
	}
	st := v.exts[len(v.exts)-1]
	if st.mask&(1<<bit) == 0 {
		if v.dir != DirRead && v.dir != DirSetDefault {
			return nil
		}
		saved := v.dir
		v.dir = DirSetDefault
		err := visit()
		v.dir = saved
		return err
	}

	switch v.dir {
	case DirRead:
		if err := v.skipExtensionsBelow(st, bit); err != nil {
			return err
		}
		start := v.r.Position()
		if err := visit(); err != nil {
			return err
		}
		used := v.r.Position() - start
		if used > st.sizes[bit] {
			return fmt.Errorf("%w: extension %d used %d of %d bits", ErrMalformed, bit, used, st.sizes[bit])
		}
		st.next = bit + 1
		return v.r.SkipBits(st.sizes[bit] - used)
	case DirWrite:
		start := v.w.BitsWritten()
		if err := visit(); err != nil {
			return err
		}
		if v.measuring {
			st.sizes[bit] = v.w.BitsWritten() - start
		}
		return nil
	}
	return visit()
}

// EndExtensions skips every extension payload the visited structure did
// not claim, which keeps older decoders compatible with newer streams.
func (v *Visitor) EndExtensions() error {
	if len(v.exts) == 0 {
		return errors.New("EndExtensions without BeginExtensions")
	}
	st := v.exts[len(v.exts)-1]
	v.exts = v.exts[:len(v.exts)-1]
	switch {
	case v.dir == DirRead:
		return v.skipExtensionsBelow(st, 64)
	case v.dir == DirWrite && v.measuring:
		if v.extSizes == nil {
			v.extSizes = map[int]*[64]uint64{}
		}
		sizes := st.sizes
		v.extSizes[st.index] = &sizes
	}
	return nil
}

func (v *Visitor) skipExtensionsBelow(st *extState, bit int) error {
	for ; st.next < bit; st.next++ {
		if st.mask&(1<<st.next) == 0 {
			continue
		}
		if st.sizes[st.next] > 0 {
			slog.Debug("skipping unknown extension", slog.Int("bit", st.next), slog.Uint64("bits", st.sizes[st.next]))
		}
		if err := v.r.SkipBits(st.sizes[st.next]); err != nil {
			return fmt.Errorf("%w: extension %d: %w", ErrMalformed, st.next, err)
		}
	}
	return nil
}

// Read decodes f from r and returns whether every visited field holds its default
func Read(r *bitio.BitReader, f Fields) (bool, error) {
	v := &Visitor{dir: DirRead, r: r, allDefault: true}
	start := r.Position()
	if err := v.VisitNested(f); err != nil {
		return false, err
	}
	slog.Debug("decoded fields", slog.String("name", f.Name()), slog.Uint64("bits", r.Position()-start))
	return v.allDefault, nil
}

// Write encodes f to w and returns whether every visited field holds its default
func Write(f Fields, w *bitio.BitWriter) (bool, error) {
	m := &Visitor{dir: DirWrite, w: bitio.NewBitWriter(), allDefault: true, measuring: true}
	if err := m.VisitNested(f); err != nil {
		return false, err
	}
	v := &Visitor{dir: DirWrite, w: w, allDefault: true, extSizes: m.extSizes}
	if err := v.VisitNested(f); err != nil {
		return false, err
	}
	return v.allDefault, nil
}

// EncodedBits returns the number of bits Write would emit for f
func EncodedBits(f Fields) (uint64, error) {
	w := bitio.NewBitWriter()
	if _, err := Write(f, w); err != nil {
		return 0, err
	}
	return w.BitsWritten(), nil
}

// IsAllDefault returns true if every field of f currently holds its default
func IsAllDefault(f Fields) bool {
	v := &Visitor{dir: DirAllDefault, allDefault: true}
	if err := v.VisitNested(f); err != nil {
		return false
	}
	return v.allDefault
}

// SetDefault assigns every field of f its declared default
func SetDefault(f Fields) error {
	v := &Visitor{dir: DirSetDefault, allDefault: true}
	return v.VisitNested(f)
}
