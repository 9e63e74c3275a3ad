// Package oidl implements the oiDL container (spec §3, §4.6): a list of N
// opaque byte blobs or N strings (ASCII/UTF-8), optionally encrypted and
// hashed.
//
// Grounded on original_source/src/formats/oiDL.c for exact byte layout
// (confirmed against the original: the content hash and "uncompressed
// total size" fields are gated on the compression byte being non-zero,
// which this spec's Non-goals keep permanently at zero, so in this module
// neither field is ever emitted -- see DESIGN.md), and on the
// bit-packed-header style of qcow2/header.go and iso9660/directoryentry.go
// for the encode/decode shape.
package oidl

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/oxc3-go/core3/aesgcm"
	"github.com/oxc3-go/core3/hash/crc32c"
	"github.com/oxc3-go/core3/hash/sha256x"
	"github.com/oxc3-go/core3/oxerr"
	"github.com/oxc3-go/core3/sizetype"
)

// Magic is the 4-byte little-endian magic number "oiDL".
const Magic uint32 = 0x4C44696F

const headerVersion uint8 = 0 // major 1, minor 0: (major-1)*10+minor = 0

// DataKind selects what an entry represents.
type DataKind uint8

const (
	// Data entries are opaque byte buffers.
	Data DataKind = iota
	// ASCII entries are strings containing only bytes < 0x80.
	ASCII
	// UTF8 entries are byte buffers that must be valid UTF-8.
	UTF8
)

// Encryption selects the container's encryption scheme.
type Encryption uint8

const (
	EncryptionNone Encryption = iota
	EncryptionAES256GCM
)

// Settings configures a DLFile's on-disk representation.
type Settings struct {
	Encryption      Encryption
	DataKind        DataKind
	UseSHA256       bool // content hash algorithm, only ever consulted if compression support is added later (spec Non-goals keep compression off, so this currently has no on-disk effect)
	HideMagicNumber bool // set when embedded inside oiCA/oiSH
	EncryptionKey   []byte
}

// DLFile is the in-memory model of an oiDL container: a settings block plus
// N entries, each a byte slice (Data/UTF8) or validated ASCII string.
type DLFile struct {
	Settings Settings
	Entries  [][]byte
}

// EntryCount returns the number of entries.
func (f *DLFile) EntryCount() int { return len(f.Entries) }

// String returns entry i decoded as a string (valid for ASCII/UTF8 kinds).
func (f *DLFile) String(i int) string { return string(f.Entries[i]) }

const opWrite = "oidl.Write"
const opRead = "oidl.Read"

// WriteOptions has no fields and Write does not take it. The embedding case
// is configured through Settings.HideMagicNumber on the Write side and
// Read's isSubFile argument on the Read side.
type WriteOptions struct{}

// Write serializes f into a freshly built, owned buffer.
func Write(f *DLFile) ([]byte, error) {
	if err := validate(f); err != nil {
		return nil, err
	}

	entryCount := uint64(len(f.Entries))
	var maxLen, totalLen uint64
	for _, e := range f.Entries {
		l := uint64(len(e))
		if totalLen+l < totalLen {
			return nil, oxerr.Overflow(opWrite, "entries", "total entry length overflows 64 bits")
		}
		totalLen += l
		if l > maxLen {
			maxLen = l
		}
	}

	countST := sizetype.Minimal(entryCount)
	entryST := sizetype.Minimal(maxLen)
	totalST := sizetype.Minimal(totalLen) // computed, matched into sizeTypes byte, but its bytes are never emitted since compression is always off (spec Non-goals)

	flags := encodeFlags(f.Settings)
	typeByte := byte(f.Settings.Encryption) // compression nibble is always 0
	sizeTypes := byte(countST) | byte(totalST)<<2 | byte(entryST)<<4

	var out []byte
	if !f.Settings.HideMagicNumber {
		out = binary.LittleEndian.AppendUint32(out, Magic)
	}
	out = append(out, headerVersion, flags, typeByte, sizeTypes)

	var err error
	out, err = sizetype.AppendSize(out, countST, entryCount)
	if err != nil {
		return nil, err
	}

	// lengths table
	lengthsStart := len(out)
	out = append(out, make([]byte, entryST.Bytes()*len(f.Entries))...)
	for i, e := range f.Entries {
		if err := sizetype.PutSize(out[lengthsStart+i*entryST.Bytes():], entryST, uint64(len(e))); err != nil {
			return nil, err
		}
	}

	aadEnd := len(out)

	var iv, tag []byte
	if f.Settings.Encryption == EncryptionAES256GCM {
		ivStart := len(out)
		out = append(out, make([]byte, aesgcm.IVSize+aesgcm.TagSize)...)
		iv = out[ivStart : ivStart+aesgcm.IVSize]
		tag = out[ivStart+aesgcm.IVSize : ivStart+aesgcm.IVSize+aesgcm.TagSize]
	}

	payloadStart := len(out)
	for _, e := range f.Entries {
		out = append(out, e...)
	}

	if f.Settings.Encryption == EncryptionAES256GCM {
		key := make([]byte, aesgcm.KeySize)
		copy(key, f.Settings.EncryptionKey)
		defer aesgcm.ZeroKey(key)

		plaintext := out[payloadStart:]
		ciphertext, err := aesgcm.Encrypt(plaintext, out[:aadEnd], key, iv, tag, aesgcm.GenerateIV)
		if err != nil {
			return nil, err
		}
		copy(plaintext, ciphertext)
	}

	return out, nil
}

// Read parses buf into a DLFile. key must be non-nil iff the container
// declares encryption. isSubFile relaxes the magic-number and
// no-trailing-data checks for embedding inside oiCA/oiSH, and readLength
// reports how many bytes of buf were consumed (meaningful only when
// isSubFile is true, so the outer codec knows where to resume).
func Read(buf []byte, key []byte, isSubFile bool) (f *DLFile, readLength int, err error) {
	c := sizetype.NewCursor(buf)

	if !isSubFile {
		magicBytes, err := c.Consume(4)
		if err != nil {
			return nil, 0, err
		}
		if binary.LittleEndian.Uint32(magicBytes) != Magic {
			return nil, 0, oxerr.InvalidParameter(opRead, "magic", "buffer does not start with the oiDL magic number")
		}
	}

	hdr, err := c.Consume(4)
	if err != nil {
		return nil, 0, err
	}
	version, flags, typeByte, sizeTypes := hdr[0], hdr[1], hdr[2], hdr[3]

	if version != headerVersion {
		return nil, 0, oxerr.Unsupported(opRead, "version", "unsupported oiDL version")
	}
	if flags&0b0001_1000 != 0 { // reserved AES-chunk bits (spec §9 Open Question: carry original bit positions, reject non-zero)
		return nil, 0, oxerr.Unsupported(opRead, "flags", "reserved AES-chunk bits must be zero")
	}
	if typeByte>>4 != 0 {
		return nil, 0, oxerr.Unsupported(opRead, "type", "compression is not supported")
	}
	if sizeTypes>>6 != 0 {
		return nil, 0, oxerr.InvalidParameter(opRead, "sizeTypes", "reserved sizeTypes bits must be zero")
	}

	encryption := Encryption(typeByte & 0xF)
	if encryption > EncryptionAES256GCM {
		return nil, 0, oxerr.InvalidParameter(opRead, "type", "unknown encryption type")
	}
	if key != nil && encryption == EncryptionNone {
		return nil, 0, oxerr.InvalidParameter(opRead, "key", "encryption key provided but container declares no encryption")
	}
	if key == nil && encryption != EncryptionNone {
		return nil, 0, oxerr.Unauthorized(opRead, "key", "encryption key required")
	}

	countST := sizetype.SizeType(sizeTypes & 3)
	entryST := sizetype.SizeType(sizeTypes >> 4)

	entryCountU, err := c.ConsumeSize(countST)
	if err != nil {
		return nil, 0, err
	}
	if entryCountU > uint64(c.Remaining()) { // every entry needs at least one length byte
		return nil, 0, oxerr.OutOfBounds(opRead, "entryCount", "declared entry count exceeds buffer")
	}
	entryCount := int(entryCountU)

	if flags&(1<<5) != 0 { // HasExtendedData
		extra, err := c.Consume(8)
		if err != nil {
			return nil, 0, err
		}
		extHeaderLen := binary.LittleEndian.Uint16(extra[4:6])
		if err := c.Skip(int(extHeaderLen)); err != nil {
			return nil, 0, err
		}
	}

	lengths := make([]uint64, entryCount)
	var dataSize uint64
	for i := 0; i < entryCount; i++ {
		l, err := c.ConsumeSize(entryST)
		if err != nil {
			return nil, 0, err
		}
		if dataSize+l < dataSize {
			return nil, 0, oxerr.Overflow(opRead, "entries", "total entry length overflows 64 bits")
		}
		dataSize += l
		lengths[i] = l
	}

	aadEnd := c.Offset()

	if encryption == EncryptionAES256GCM {
		iv, err := c.Consume(aesgcm.IVSize)
		if err != nil {
			return nil, 0, err
		}
		tag, err := c.Consume(aesgcm.TagSize)
		if err != nil {
			return nil, 0, err
		}
		if uint64(c.Remaining()) < dataSize {
			return nil, 0, oxerr.OutOfBounds(opRead, "payload", "buffer shorter than declared entry data")
		}
		ciphertext, err := c.Consume(int(dataSize))
		if err != nil {
			return nil, 0, err
		}
		if !isSubFile && c.Remaining() != 0 {
			return nil, 0, oxerr.InvalidState(opRead, "trailer", "unexpected trailing data after oiDL payload")
		}
		plaintext, err := aesgcm.Decrypt(ciphertext, buf[:aadEnd], key, iv, tag)
		if err != nil {
			return nil, 0, err
		}
		copy(ciphertext, plaintext)

		f, err = entriesFromPayload(ciphertext, lengths, flags)
		if err != nil {
			return nil, 0, err
		}
		return f, c.Offset(), nil
	}

	payload, err := c.Consume(int(dataSize))
	if err != nil {
		return nil, 0, err
	}
	if !isSubFile && c.Remaining() != 0 {
		return nil, 0, oxerr.InvalidState(opRead, "trailer", "unexpected trailing data after oiDL payload")
	}

	f, err = entriesFromPayload(payload, lengths, flags)
	if err != nil {
		return nil, 0, err
	}
	return f, c.Offset(), nil
}

func entriesFromPayload(payload []byte, lengths []uint64, flags byte) (*DLFile, error) {
	isString := flags&(1<<1) != 0
	isUTF8 := flags&(1<<2) != 0

	kind := Data
	switch {
	case isString && isUTF8:
		kind = UTF8
	case isString:
		kind = ASCII
	}

	entries := make([][]byte, len(lengths))
	off := 0
	for i, l := range lengths {
		e := payload[off : off+int(l)]
		if kind == ASCII {
			for _, b := range e {
				if b >= 0x80 {
					return nil, oxerr.InvalidState(opRead, "entry", "ASCII entry contains a byte >= 0x80")
				}
			}
		}
		if kind == UTF8 && !utf8.Valid(e) {
			return nil, oxerr.InvalidState(opRead, "entry", "UTF-8 entry is not valid UTF-8")
		}
		entries[i] = e
		off += int(l)
	}

	return &DLFile{
		Settings: Settings{DataKind: kind},
		Entries:  entries,
	}, nil
}

func encodeFlags(s Settings) byte {
	var flags byte
	switch s.DataKind {
	case ASCII:
		flags |= 1 << 1
	case UTF8:
		flags |= 1<<1 | 1<<2
	}
	return flags
}

func validate(f *DLFile) error {
	if f.Settings.Encryption > EncryptionAES256GCM {
		return oxerr.InvalidParameter(opWrite, "Encryption", "unknown encryption type")
	}
	if f.Settings.Encryption == EncryptionAES256GCM && len(f.Settings.EncryptionKey) != aesgcm.KeySize {
		return oxerr.InvalidParameter(opWrite, "EncryptionKey", "AES-256 key must be exactly 32 bytes")
	}
	switch f.Settings.DataKind {
	case ASCII:
		for _, e := range f.Entries {
			for _, b := range e {
				if b >= 0x80 {
					return oxerr.InvalidParameter(opWrite, "Entries", "ASCII entry contains a byte >= 0x80")
				}
			}
		}
	case UTF8:
		for _, e := range f.Entries {
			if !utf8.Valid(e) {
				return oxerr.InvalidParameter(opWrite, "Entries", "UTF-8 entry is not valid UTF-8")
			}
		}
	case Data:
	default:
		return oxerr.InvalidParameter(opWrite, "DataKind", "unknown data kind")
	}
	return nil
}

// Combine concatenates b's entries after a's, requiring identical settings
// (spec §4.6 Combine).
func Combine(a, b *DLFile) (*DLFile, error) {
	if a.Settings.Encryption != b.Settings.Encryption ||
		a.Settings.DataKind != b.Settings.DataKind ||
		a.Settings.UseSHA256 != b.Settings.UseSHA256 ||
		a.Settings.HideMagicNumber != b.Settings.HideMagicNumber {
		return nil, oxerr.InvalidParameter("oidl.Combine", "Settings", "settings mismatch")
	}
	out := &DLFile{Settings: a.Settings}
	out.Entries = append(out.Entries, a.Entries...)
	out.Entries = append(out.Entries, b.Entries...)
	return out, nil
}

// HashOnly returns the content hash of the whole payload slice without
// constructing a container: its CRC32C as 4 little-endian bytes, or its
// 32-byte SHA-256 digest when useSHA256 is set -- mirroring
// original_source's src/tools/hash.c standalone hashing tool.
func HashOnly(payload []byte, useSHA256 bool) []byte {
	if useSHA256 {
		sum := sha256x.Sum256(payload)
		return sum[:]
	}
	sum := crc32c.Checksum(payload)
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, sum)
	return out
}
