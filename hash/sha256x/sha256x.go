// Package sha256x implements the FIPS-180 SHA-256 content hash used when a
// container's UseSHA256 flag is set in place of CRC32C (spec §4.3).
//
// It wraps github.com/minio/sha256-simd, a drop-in-API replacement for
// crypto/sha256 that dispatches to AVX2/SHA-NI/ARM64 hardware paths at
// runtime while remaining bit-identical to the portable reference -- exactly
// the "portable reference and allow a hardware-accelerated path... provided
// they bit-match" contract spec §4.3 asks for. See DESIGN.md for the
// grounding (other_examples' vendored minio/sha256-simd).
package sha256x

import "github.com/minio/sha256-simd"

// Size is the digest length in bytes: 32.
const Size = sha256.Size

// Sum256 returns the SHA-256 digest of data.
func Sum256(data []byte) [Size]byte {
	return sha256.Sum256(data)
}

// New returns a streaming SHA-256 hasher, for callers hashing a region
// incrementally instead of from a single buffer.
func New() Hasher {
	return sha256.New()
}

// Hasher is the streaming interface returned by New.
type Hasher interface {
	Write(p []byte) (int, error)
	Sum(b []byte) []byte
	Reset()
	Size() int
	BlockSize() int
}
