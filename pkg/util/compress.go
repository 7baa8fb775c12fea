package util

import (
	"bytes"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic starts every zstd frame
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

var (
	encoderOnce sync.Once
	encoder     *zstd.Encoder
	decoderOnce sync.Once
	decoder     *zstd.Decoder
)

func zstdEncoder() *zstd.Encoder {
	encoderOnce.Do(func() {
		// only fails for invalid options
		encoder, _ = zstd.NewWriter(nil,
			zstd.WithEncoderConcurrency(1),
			zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
		)
	})
	return encoder
}

func zstdDecoder() *zstd.Decoder {
	decoderOnce.Do(func() {
		decoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1), zstd.WithDecoderLowmem(true))
	})
	return decoder
}

// Compress wraps data in a zstd frame
func Compress(data []byte) []byte {
	return zstdEncoder().EncodeAll(data, nil)
}

// IsCompressed reports whether data starts with a zstd frame
func IsCompressed(data []byte) bool {
	return bytes.HasPrefix(data, zstdMagic)
}

// MaybeDecompress unwraps a zstd frame and returns anything else unchanged
func MaybeDecompress(data []byte) ([]byte, error) {
	if !IsCompressed(data) {
		return data, nil
	}
	return zstdDecoder().DecodeAll(data, nil)
}
