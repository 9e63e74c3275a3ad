// Package crc32c implements the Castagnoli CRC used as a content and
// include-file fingerprint across oiDL, oiCA, and oiSH (spec §4.2).
//
// hash/crc32's Castagnoli table dispatches to the CPU's CRC32 instruction on
// amd64/arm64 at runtime, which is exactly the "table-driven reference is
// the source of truth; SIMD/CPU-instruction paths are optional
// optimizations behind the same contract" shape spec §4.2 asks for -- no
// third-party package in this corpus reimplements Castagnoli CRC, so this is
// the idiomatic choice (see DESIGN.md).
package crc32c

import "hash/crc32"

var table = crc32.MakeTable(crc32.Castagnoli)

// Checksum computes the Castagnoli CRC32 of data: initial value 0xFFFFFFFF,
// output XOR 0xFFFFFFFF, byte-reflected -- i.e. the standard CRC32C contract
// that hash/crc32.Checksum already implements via its table.
func Checksum(data []byte) uint32 {
	return crc32.Checksum(data, table)
}

// Update extends a running CRC32C computation: seed with 0 for a fresh
// computation, or with a prior Update's return value to continue across
// buffer boundaries.
func Update(crc uint32, data []byte) uint32 {
	return crc32.Update(crc, table, data)
}

// New returns a streaming CRC32C Hasher (Write/Sum32/Reset), for callers that
// want to feed bytes incrementally via io.Writer instead of a single buffer.
func New() *Hasher {
	return &Hasher{h: crc32.New(table)}
}

// Hasher wraps hash/crc32's streaming hasher so callers never need to
// reference the Castagnoli table directly.
type Hasher struct {
	h crcHash
}

type crcHash interface {
	Write(p []byte) (int, error)
	Sum32() uint32
	Reset()
}

func (h *Hasher) Write(p []byte) (int, error) { return h.h.Write(p) }
func (h *Hasher) Sum32() uint32               { return h.h.Sum32() }
func (h *Hasher) Reset()                      { h.h.Reset() }
