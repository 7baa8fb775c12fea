package util

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashUUID(t *testing.T) {
	type header struct {
		Name     string
		Duration uint32
	}
	a := HashUUID(header{"a", 1})
	assert.Len(t, a, 36)
	assert.Equal(t, a, HashUUID(header{"a", 1}))
	assert.NotEqual(t, a, HashUUID(header{"a", 2}))
	assert.Empty(t, HashUUID(func() {}))
}

func TestMd5ThenHex(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", Md5ThenHex(nil))
}

func TestCompress(t *testing.T) {
	raw := bytes.Repeat([]byte{0x0A, 0xFF, 0x12}, 100)
	packed := Compress(raw)
	assert.True(t, IsCompressed(packed))
	assert.Less(t, len(packed), len(raw))

	got, err := MaybeDecompress(packed)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	got, err = MaybeDecompress(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	_, err = MaybeDecompress(append(append([]byte{}, zstdMagic...), 0, 1, 2))
	assert.Error(t, err)
}
