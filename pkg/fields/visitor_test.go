package fields

import (
	"testing"

	"github.com/jpfielding/jxlmeta.go/pkg/bitio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var smallEnc = NewU32Enc(Val(0), Val(1), Bits(4), BitsOffset(8, 16))

// inner is a nested structure without its own all_default bit
type inner struct {
	Count uint32
	Flag  bool
}

func (s *inner) Name() string { return "inner" }

func (s *inner) VisitFields(v *Visitor) error {
	if err := v.U32(smallEnc, 1, &s.Count); err != nil {
		return err
	}
	return v.Bool(true, &s.Flag)
}

// record is version N of a header: all_default, a conditional, a nested
// struct, a name and extensions.
type record struct {
	AllDefaultCache bool
	HasLevel        bool
	Level           uint32
	Inner           inner
	Label           string
	Extensions      uint64

	// visitExtra stands in for fields added by a later format version
	visitExtra func(v *Visitor) error
}

func (s *record) Name() string { return "record" }

func (s *record) VisitFields(v *Visitor) error {
	if skip, err := v.AllDefault(s, &s.AllDefaultCache); err != nil || skip {
		return err
	}
	if err := v.Bool(false, &s.HasLevel); err != nil {
		return err
	}
	if v.Conditional(s.HasLevel) {
		if err := v.Bits(3, 2, &s.Level); err != nil {
			return err
		}
	}
	if err := v.VisitNested(&s.Inner); err != nil {
		return err
	}
	if err := VisitNameString(v, &s.Label); err != nil {
		return err
	}
	if err := v.BeginExtensions(&s.Extensions); err != nil {
		return err
	}
	if s.visitExtra != nil {
		if err := s.visitExtra(v); err != nil {
			return err
		}
	}
	return v.EndExtensions()
}

func newRecord() *record {
	r := &record{}
	_ = SetDefault(r)
	return r
}

// recordNext is version N+1: it adds two fields behind extension bit 0
// and an opaque payload behind bit 3.
type recordNext struct {
	record
	Quality uint32
	Tag     uint32
	Extra   uint64
}

func newRecordNext() *recordNext {
	n := &recordNext{}
	n.visitExtra = func(v *Visitor) error {
		if err := v.Extension(0, func() error {
			if err := v.U32(smallEnc, 0, &n.Quality); err != nil {
				return err
			}
			return v.Bits(6, 0, &n.Tag)
		}); err != nil {
			return err
		}
		return v.Extension(3, func() error {
			return v.U64(0, &n.Extra)
		})
	}
	_ = SetDefault(&n.record)
	return n
}

func TestSetDefault(t *testing.T) {
	r := newRecord()
	assert.True(t, r.AllDefaultCache)
	assert.Equal(t, uint32(2), r.Level)
	assert.Equal(t, uint32(1), r.Inner.Count)
	assert.True(t, r.Inner.Flag)
	assert.True(t, IsAllDefault(r))
}

func TestAllDefaultElision(t *testing.T) {
	r := newRecord()
	w := bitio.NewBitWriter()
	allDefault, err := Write(r, w)
	require.NoError(t, err)
	assert.True(t, allDefault)
	assert.Equal(t, uint64(1), w.BitsWritten())

	got := &record{Level: 7, Label: "junk"}
	allDefault, err = Read(bitio.NewBitReader(w.Bytes()), got)
	require.NoError(t, err)
	assert.True(t, allDefault)
	assert.Equal(t, newRecord(), got)
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *record)
	}{
		{"level", func(r *record) { r.HasLevel = true; r.Level = 5 }},
		{"level default value", func(r *record) { r.HasLevel = true }},
		{"nested", func(r *record) { r.Inner.Count = 200; r.Inner.Flag = false }},
		{"label", func(r *record) { r.Label = "layer one" }},
		{"long label", func(r *record) { r.Label = string(make([]byte, MaxNameLength)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := newRecord()
			tt.mutate(want)

			w := bitio.NewBitWriter()
			allDefault, err := Write(want, w)
			require.NoError(t, err)
			assert.False(t, allDefault)
			assert.False(t, want.AllDefaultCache)

			got := newRecord()
			allDefault, err = Read(bitio.NewBitReader(w.Bytes()), got)
			require.NoError(t, err)
			assert.False(t, allDefault)
			assert.Equal(t, want, got)

			size, err := EncodedBits(want)
			require.NoError(t, err)
			assert.Equal(t, w.BitsWritten(), size)
		})
	}
}

func TestConditionalNotCoded(t *testing.T) {
	// Level differs from its default but is guarded by HasLevel=false
	r := newRecord()
	r.Level = 6
	r.Inner.Count = 0

	w := bitio.NewBitWriter()
	_, err := Write(r, w)
	require.NoError(t, err)

	got := newRecord()
	_, err = Read(bitio.NewBitReader(w.Bytes()), got)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), got.Level)
	assert.Equal(t, uint32(0), got.Inner.Count)
}

func TestNameTooLong(t *testing.T) {
	r := newRecord()
	r.Label = string(make([]byte, MaxNameLength+1))
	_, err := Write(r, bitio.NewBitWriter())
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestTruncatedStream(t *testing.T) {
	r := newRecord()
	r.Label = "truncate me"
	w := bitio.NewBitWriter()
	_, err := Write(r, w)
	require.NoError(t, err)

	data := w.Bytes()
	_, err = Read(bitio.NewBitReader(data[:len(data)/2]), newRecord())
	assert.ErrorIs(t, err, bitio.ErrOutOfBits)
}

func TestExtensionSkip(t *testing.T) {
	next := newRecordNext()
	next.Label = "v2"
	next.Inner.Count = 9
	next.Extensions = 1<<0 | 1<<3
	next.Quality = 1
	next.Tag = 42
	next.Extra = 1 << 40

	w := bitio.NewBitWriter()
	_, err := Write(next, w)
	require.NoError(t, err)
	// a sentinel after the header proves the reader lands on the right bit
	require.NoError(t, w.WriteBits(0x2D, 7))

	t.Run("older reader skips", func(t *testing.T) {
		r := bitio.NewBitReader(w.Bytes())
		got := newRecord()
		allDefault, err := Read(r, got)
		require.NoError(t, err)
		assert.False(t, allDefault)
		assert.Equal(t, "v2", got.Label)
		assert.Equal(t, uint32(9), got.Inner.Count)
		assert.Equal(t, next.Extensions, got.Extensions)

		sentinel, err := r.ReadBits(7)
		require.NoError(t, err)
		assert.Equal(t, uint64(0x2D), sentinel)
	})

	t.Run("newer reader decodes", func(t *testing.T) {
		r := bitio.NewBitReader(w.Bytes())
		got := newRecordNext()
		_, err := Read(r, got)
		require.NoError(t, err)
		assert.Equal(t, uint32(1), got.Quality)
		assert.Equal(t, uint32(42), got.Tag)
		assert.Equal(t, uint64(1<<40), got.Extra)

		sentinel, err := r.ReadBits(7)
		require.NoError(t, err)
		assert.Equal(t, uint64(0x2D), sentinel)
	})
}

func TestExtensionUnsetResetsDefaults(t *testing.T) {
	older := newRecord()
	older.Label = "v1"
	w := bitio.NewBitWriter()
	_, err := Write(older, w)
	require.NoError(t, err)

	got := newRecordNext()
	got.Quality = 3
	got.Tag = 7
	_, err = Read(bitio.NewBitReader(w.Bytes()), got)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), got.Quality)
	assert.Equal(t, uint32(0), got.Tag)
}

func TestExtensionOverrun(t *testing.T) {
	// extension bit 0 claims 2 bits but the newer reader consumes more
	w := bitio.NewBitWriter()
	require.NoError(t, w.WriteBit(false))        // all_default
	require.NoError(t, w.WriteBit(false))        // HasLevel
	require.NoError(t, WriteU32(w, smallEnc, 1)) // Inner.Count
	require.NoError(t, w.WriteBit(true))         // Inner.Flag
	require.NoError(t, WriteU32(w, NameLengthEnc, 0))
	require.NoError(t, WriteU64(w, 1)) // extensions
	require.NoError(t, WriteU64(w, 2)) // size of extension 0
	require.NoError(t, w.WriteBits(0x3FF, 10))

	_, err := Read(bitio.NewBitReader(w.Bytes()), newRecordNext())
	assert.ErrorIs(t, err, ErrMalformed)
}
