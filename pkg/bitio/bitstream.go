// Package bitio implements the least-significant-bit-first bit I/O used by the
// codestream headers.
//
// Bits are packed starting at the low bit of each byte, so a 4-bit value 0xA
// followed by a 4-bit value 0xB produces the byte 0xBA.
package bitio

import (
	"errors"
	"fmt"
	"io"
)

// MaxBitsPerCall is the widest field a single ReadBits/WriteBits may move.
const MaxBitsPerCall = 64

var (
	// ErrOutOfBits signals a read past the end of the stream
	ErrOutOfBits = errors.New("bitio: read past end of stream")
	// ErrBitCount signals a bit count outside 0..MaxBitsPerCall
	ErrBitCount = errors.New("bitio: invalid bit count")
	// ErrValueTooWide signals a value that does not fit in the requested bits
	ErrValueTooWide = errors.New("bitio: value does not fit in bit count")
)

// BitReader reads bits from an in-memory byte slice.
type BitReader struct {
	data []byte
	pos  uint64 // bit position
}

// NewBitReader creates a new bit reader over data
func NewBitReader(data []byte) *BitReader {
	return &BitReader{data: data}
}

// ReadAllBits drains r and returns a BitReader over its contents
func ReadAllBits(r io.Reader) (*BitReader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading stream: %w", err)
	}
	return NewBitReader(data), nil
}

// ReadBit reads a single bit
func (b *BitReader) ReadBit() (bool, error) {
	v, err := b.ReadBits(1)
	return v == 1, err
}

// ReadBits reads n bits (n <= 64), least significant first
func (b *BitReader) ReadBits(n int) (uint64, error) {
	if n < 0 || n > MaxBitsPerCall {
		return 0, fmt.Errorf("%w: %d", ErrBitCount, n)
	}
	if b.pos+uint64(n) > b.TotalBits() {
		return 0, fmt.Errorf("%w: need %d bits at %d of %d", ErrOutOfBits, n, b.pos, b.TotalBits())
	}
	var v uint64
	for i := 0; i < n; {
		off := int(b.pos & 7)
		take := min(8-off, n-i)
		chunk := (uint64(b.data[b.pos>>3]) >> off) & (1<<take - 1)
		v |= chunk << i
		i += take
		b.pos += uint64(take)
	}
	return v, nil
}

// SkipBits advances the position by n bits
func (b *BitReader) SkipBits(n uint64) error {
	if n > b.TotalBits()-b.pos {
		return fmt.Errorf("%w: skipping %d bits at %d of %d", ErrOutOfBits, n, b.pos, b.TotalBits())
	}
	b.pos += n
	return nil
}

// JumpToByteBoundary discards bits to reach the next byte boundary
func (b *BitReader) JumpToByteBoundary() {
	b.pos = (b.pos + 7) &^ 7
}

// Position returns the number of bits consumed so far
func (b *BitReader) Position() uint64 {
	return b.pos
}

// TotalBits returns the size of the stream in bits
func (b *BitReader) TotalBits() uint64 {
	return uint64(len(b.data)) * 8
}

// Remaining returns the number of unread bits
func (b *BitReader) Remaining() uint64 {
	return b.TotalBits() - b.pos
}

// BitWriter accumulates bits into a growing byte slice
type BitWriter struct {
	buf  []byte
	bits uint64 // number of valid bits in buf
}

// NewBitWriter creates a new bit writer
func NewBitWriter() *BitWriter {
	return &BitWriter{}
}

// WriteBit writes a single bit
func (b *BitWriter) WriteBit(bit bool) error {
	if bit {
		return b.WriteBits(1, 1)
	}
	return b.WriteBits(0, 1)
}

// WriteBits writes the low n bits of val (n <= 64)
func (b *BitWriter) WriteBits(val uint64, n int) error {
	if n < 0 || n > MaxBitsPerCall {
		return fmt.Errorf("%w: %d", ErrBitCount, n)
	}
	if n < 64 && val>>n != 0 {
		return fmt.Errorf("%w: %d in %d bits", ErrValueTooWide, val, n)
	}
	for i := 0; i < n; {
		off := int(b.bits & 7)
		if off == 0 {
			b.buf = append(b.buf, 0)
		}
		take := min(8-off, n-i)
		chunk := byte((val >> i) & (1<<take - 1))
		b.buf[len(b.buf)-1] |= chunk << off
		i += take
		b.bits += uint64(take)
	}
	return nil
}

// ZeroPadToByte pads with zero bits up to the next byte boundary
func (b *BitWriter) ZeroPadToByte() {
	b.bits = (b.bits + 7) &^ 7
}

// BitsWritten returns the number of bits written so far
func (b *BitWriter) BitsWritten() uint64 {
	return b.bits
}

// Bytes returns the written bytes; a trailing partial byte is zero padded
func (b *BitWriter) Bytes() []byte {
	return b.buf
}

// WriteTo writes the accumulated bytes to w
func (b *BitWriter) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.buf)
	return int64(n), err
}
