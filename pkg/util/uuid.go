// Package util holds small helpers shared by the CLI: stable fingerprints
// of headers and zstd framing of header dumps.
package util

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"

	"github.com/google/uuid"
)

// Md5ThenHex digests raw bytes, typically an encoded header
func Md5ThenHex(value []byte) string {
	sum := md5.Sum(value)
	return hex.EncodeToString(sum[:])
}

// HashUUID derives a name based uuid from the JSON form of value, so equal
// decoded headers share a fingerprint. Empty if value cannot be marshaled.
func HashUUID(value any) string {
	raw, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	return uuid.NewMD5(uuid.Nil, raw).String()
}
