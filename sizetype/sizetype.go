// Package sizetype implements the variable-width integer discipline shared
// by every oiXX container: a two-bit SizeType code tells a reader how many
// bytes wide an encoded field is, and a bounded Cursor enforces that no read
// or write ever runs past the declared buffer.
package sizetype

import (
	"encoding/binary"

	"github.com/oxc3-go/core3/oxerr"
)

// SizeType is the width code used throughout the oiXX formats: the width in
// bytes of an encoded integer field is 2^SizeType.
type SizeType uint8

const (
	U8 SizeType = iota
	U16
	U32
	U64
)

// Bytes returns the on-disk width of this SizeType, i.e. 2^st.
func (st SizeType) Bytes() int {
	return 1 << uint(st)
}

// Max returns the largest value representable by this SizeType.
func (st SizeType) Max() uint64 {
	if st == U64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(8*st.Bytes())) - 1
}

func (st SizeType) Valid() bool {
	return st <= U64
}

// Minimal returns the narrowest SizeType that can hold v.
func Minimal(v uint64) SizeType {
	switch {
	case v <= U8.Max():
		return U8
	case v <= U16.Max():
		return U16
	case v <= U32.Max():
		return U32
	default:
		return U64
	}
}

// Cursor wraps a borrowed buffer and a read offset, with bounds-checked
// reads. PutSize and AppendSize are the write-side counterparts for
// SizeType-width fields; fixed-width fields are also read and written with
// encoding/binary directly in the codecs.
type Cursor struct {
	buf []byte
	off int
}

// NewCursor wraps buf for reading starting at offset 0.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Offset returns the current read position.
func (c *Cursor) Offset() int { return c.off }

// Len returns the total buffer length.
func (c *Cursor) Len() int { return len(c.buf) }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.buf) - c.off }

// Bytes returns the underlying buffer (for callers that need the whole
// region, e.g. to compute a hash over it).
func (c *Cursor) Bytes() []byte { return c.buf }

// Consume returns the next n bytes and advances the cursor, or fails with
// OutOfBounds if fewer than n bytes remain.
func (c *Cursor) Consume(n int) ([]byte, error) {
	if n < 0 || c.off+n > len(c.buf) {
		return nil, oxerr.OutOfBounds("Cursor.Consume", "n", "declared length exceeds buffer")
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b, nil
}

// Peek returns the next n bytes without advancing the cursor.
func (c *Cursor) Peek(n int) ([]byte, error) {
	if n < 0 || c.off+n > len(c.buf) {
		return nil, oxerr.OutOfBounds("Cursor.Peek", "n", "declared length exceeds buffer")
	}
	return c.buf[c.off : c.off+n], nil
}

// Skip advances the cursor by n bytes without returning them.
func (c *Cursor) Skip(n int) error {
	_, err := c.Consume(n)
	return err
}

// ConsumeSize reads 2^kind little-endian bytes into a u64.
func (c *Cursor) ConsumeSize(kind SizeType) (uint64, error) {
	if !kind.Valid() {
		return 0, oxerr.Unsupported("Cursor.ConsumeSize", "kind", "sizeType out of range")
	}
	b, err := c.Consume(kind.Bytes())
	if err != nil {
		return 0, err
	}
	switch kind {
	case U8:
		return uint64(b[0]), nil
	case U16:
		return uint64(binary.LittleEndian.Uint16(b)), nil
	case U32:
		return uint64(binary.LittleEndian.Uint32(b)), nil
	default:
		return binary.LittleEndian.Uint64(b), nil
	}
}

// PutSize writes value at the declared width, failing with InvalidParameter
// if it exceeds kind.Max(), i.e. 2^(8*2^kind)-1.
func PutSize(buf []byte, kind SizeType, value uint64) error {
	if !kind.Valid() {
		return oxerr.Unsupported("PutSize", "kind", "sizeType out of range")
	}
	if value > kind.Max() {
		return oxerr.InvalidParameter("PutSize", "value", "exceeds declared SizeType width")
	}
	if len(buf) < kind.Bytes() {
		return oxerr.OutOfBounds("PutSize", "buf", "buffer shorter than declared SizeType width")
	}
	switch kind {
	case U8:
		buf[0] = byte(value)
	case U16:
		binary.LittleEndian.PutUint16(buf, uint16(value))
	case U32:
		binary.LittleEndian.PutUint32(buf, uint32(value))
	default:
		binary.LittleEndian.PutUint64(buf, value)
	}
	return nil
}

// AppendSize appends value to buf at the declared width and returns the
// extended slice.
func AppendSize(buf []byte, kind SizeType, value uint64) ([]byte, error) {
	start := len(buf)
	buf = append(buf, make([]byte, kind.Bytes())...)
	if err := PutSize(buf[start:], kind, value); err != nil {
		return nil, err
	}
	return buf, nil
}
