// Package oica implements the oiCA container (spec §3, §4.7): a virtual
// filesystem archive built on top of an embedded oiDL of names, plus a
// directory table, a file table, and a blob heap.
//
// Grounded on original_source/src/formats/oiCA.c for the exact table
// layout and the parents-first row order (sorting by depth then
// case-insensitive name guarantees every directory's parent already has a
// lower index; Write looks parent indices up by path), and on the filesystem/iso9660 directory table style
// (fixed-width rows decoded with encoding/binary) for the Go shape.
package oica

import (
	"encoding/binary"
	"strings"
	"time"

	"github.com/oxc3-go/core3/aesgcm"
	"github.com/oxc3-go/core3/archive"
	"github.com/oxc3-go/core3/archivepath"
	"github.com/oxc3-go/core3/format/oidl"
	"github.com/oxc3-go/core3/oxerr"
	"github.com/oxc3-go/core3/sizetype"
)

// Magic is the 4-byte little-endian magic number "oiCA".
const Magic uint32 = 0x4143696F

const headerVersion uint8 = 0

const (
	flagUseSHA256          = 1 << 0
	flagFilesHaveDate      = 1 << 1
	flagFilesHaveFullDate  = 1 << 2
	fileSizeTypeShift      = 3
	flagDirectoriesCountLo = 1 << 10
	flagFilesCountLong     = 1 << 11
)

// rootParent sentinels, per the width of the directory-reference field.
const (
	rootParentSmall uint16 = 0xFF
	rootParentLarge uint16 = 0xFFFF
)

// maxDirectoriesSmall/maxFilesSmall are the counts above which the wider
// on-disk reference width is required (original_source: dirRefSize/
// fileRefSize selection in CAFile_write).
const (
	maxDirectoriesSmall = 254
	maxFilesSmall       = 65534
)

// Settings configures a CAFile's on-disk representation.
type Settings struct {
	Encryption      oidl.Encryption
	IncludeDate     bool
	IncludeFullDate bool // implies IncludeDate
	UseSHA256       bool // carried for parity with the original container; has no on-disk effect while compression stays off, see oidl.Settings.UseSHA256
	EncryptionKey   []byte
}

const opWrite = "oica.Write"
const opRead = "oica.Read"

// Write serializes arc into a freshly built, owned buffer.
func Write(arc *archive.Archive, settings Settings) ([]byte, error) {
	if settings.Encryption > oidl.EncryptionAES256GCM {
		return nil, oxerr.InvalidParameter(opWrite, "Encryption", "unknown encryption type")
	}
	if settings.Encryption == oidl.EncryptionAES256GCM && len(settings.EncryptionKey) != aesgcm.KeySize {
		return nil, oxerr.InvalidParameter(opWrite, "EncryptionKey", "AES-256 key must be exactly 32 bytes")
	}

	entries := arc.Entries()

	var dirs, files []*archive.Entry
	var biggestFile uint64
	for _, e := range entries {
		if e.Kind == archive.Folder {
			dirs = append(dirs, e)
			if len(dirs) >= 0x10000 {
				return nil, oxerr.OutOfBounds(opWrite, "directories", "directory count exceeds 65535")
			}
			continue
		}
		files = append(files, e)
		if len(files) >= 1<<32 {
			return nil, oxerr.OutOfBounds(opWrite, "files", "file count exceeds 2^32-1")
		}
		sz := uint64(e.Size())
		if sz > biggestFile {
			biggestFile = sz
		}
	}

	dirRefWide := len(dirs) > maxDirectoriesSmall
	fileRefWide := len(files) > maxFilesSmall
	dirRefSize := 1
	if dirRefWide {
		dirRefSize = 2
	}
	fileRefSize := 2
	if fileRefWide {
		fileRefSize = 4
	}

	sizeST := sizetype.Minimal(biggestFile)

	dl := &oidl.DLFile{Settings: oidl.Settings{DataKind: oidl.ASCII, HideMagicNumber: true}}
	for _, d := range dirs {
		dl.Entries = append(dl.Entries, []byte(archivepath.Base(d.Path)))
	}
	for _, f := range files {
		dl.Entries = append(dl.Entries, []byte(archivepath.Base(f.Path)))
	}
	dlBuf, err := oidl.Write(dl)
	if err != nil {
		return nil, err
	}

	flags := uint16(sizeST) << fileSizeTypeShift
	if settings.IncludeFullDate {
		flags |= flagFilesHaveDate | flagFilesHaveFullDate
	} else if settings.IncludeDate {
		flags |= flagFilesHaveDate
	}
	if dirRefWide {
		flags |= flagDirectoriesCountLo
	}
	if fileRefWide {
		flags |= flagFilesCountLong
	}

	var out []byte
	out = binary.LittleEndian.AppendUint32(out, Magic)
	out = append(out, headerVersion, byte(settings.Encryption))
	out = binary.LittleEndian.AppendUint16(out, flags)

	if fileRefSize == 4 {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(files)))
	} else {
		out = binary.LittleEndian.AppendUint16(out, uint16(len(files)))
	}
	if dirRefSize == 2 {
		out = binary.LittleEndian.AppendUint16(out, uint16(len(dirs)))
	} else {
		out = append(out, byte(len(dirs)))
	}

	aadEnd := len(out)

	var iv, tag []byte
	if settings.Encryption == oidl.EncryptionAES256GCM {
		ivStart := len(out)
		out = append(out, make([]byte, aesgcm.IVSize+aesgcm.TagSize)...)
		iv = out[ivStart : ivStart+aesgcm.IVSize]
		tag = out[ivStart+aesgcm.IVSize : ivStart+aesgcm.IVSize+aesgcm.TagSize]
	}

	payloadStart := len(out)
	out = append(out, dlBuf...)

	dirIndex := make(map[string]int, len(dirs))
	for i, d := range dirs {
		dirIndex[strings.ToLower(d.Path)] = i
	}

	for _, d := range dirs {
		parent := rootParentSmall
		if dirRefSize == 2 {
			parent = rootParentLarge
		}
		if p := archivepath.Parent(d.Path); p != "" {
			idx, ok := dirIndex[strings.ToLower(p)]
			if !ok {
				return nil, oxerr.InvalidState(opWrite, "directories", "parent directory not found in sorted list")
			}
			parent = uint16(idx)
		}
		if dirRefSize == 2 {
			out = binary.LittleEndian.AppendUint16(out, parent)
		} else {
			out = append(out, byte(parent))
		}
	}

	for _, f := range files {
		parent := rootParentSmall
		if dirRefSize == 2 {
			parent = rootParentLarge
		}
		if p := archivepath.Parent(f.Path); p != "" {
			idx, ok := dirIndex[strings.ToLower(p)]
			if !ok {
				return nil, oxerr.InvalidState(opWrite, "files", "parent directory not found in sorted list")
			}
			parent = uint16(idx)
		}
		if dirRefSize == 2 {
			out = binary.LittleEndian.AppendUint16(out, parent)
		} else {
			out = append(out, byte(parent))
		}

		if settings.IncludeFullDate {
			var ns uint64
			if !f.Timestamp.IsZero() {
				ns = uint64(f.Timestamp.UnixNano())
			}
			out = binary.LittleEndian.AppendUint64(out, ns)
		} else if settings.IncludeDate {
			dosTime, dosDate, err := encodeDOSDate(f.Timestamp)
			if err != nil {
				return nil, err
			}
			out = binary.LittleEndian.AppendUint16(out, dosTime)
			out = binary.LittleEndian.AppendUint16(out, dosDate)
		}

		data, _ := arcFileData(arc, f)
		out, err = sizetype.AppendSize(out, sizeST, uint64(len(data)))
		if err != nil {
			return nil, err
		}
	}

	for _, f := range files {
		data, _ := arcFileData(arc, f)
		out = append(out, data...)
	}

	if settings.Encryption == oidl.EncryptionAES256GCM {
		key := make([]byte, aesgcm.KeySize)
		copy(key, settings.EncryptionKey)
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

func arcFileData(arc *archive.Archive, e *archive.Entry) ([]byte, error) {
	return arc.GetData(e.Path)
}

// encodeDOSDate packs ts into the 2xu16 DOS date/time fields used when
// IncludeDate is set without IncludeFullDate (spec §4.7). Years outside
// [1980, 2107] fail the encode.
func encodeDOSDate(ts time.Time) (dosTime, dosDate uint16, err error) {
	u := ts.UTC()
	year := u.Year()
	if year < 1980 || year > 2107 {
		return 0, 0, oxerr.InvalidParameter(opWrite, "timestamp", "year out of DOS date range [1980, 2107]")
	}
	dosTime = uint16(u.Second()>>1) | uint16(u.Minute())<<5 | uint16(u.Hour())<<11
	dosDate = uint16(u.Day()) | uint16(u.Month())<<5 | uint16(year-1980)<<11
	return dosTime, dosDate, nil
}

func decodeDOSDate(dosTime, dosDate uint16) time.Time {
	sec := int(dosTime&0x1F) << 1
	minute := int((dosTime >> 5) & 0x3F)
	hour := int(dosTime >> 11)
	day := int(dosDate & 0x1F)
	month := int((dosDate >> 5) & 0xF)
	year := 1980 + int(dosDate>>11)
	if day == 0 || month == 0 {
		return time.Time{}
	}
	t := time.Date(year, time.Month(month), day, hour, minute, sec, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}
	}
	return t
}

// Read parses buf into a new Archive. key must be non-nil iff the
// container declares encryption.
func Read(buf []byte, key []byte) (*archive.Archive, error) {
	c := sizetype.NewCursor(buf)

	magicBytes, err := c.Consume(4)
	if err != nil {
		return nil, err
	}
	if binary.LittleEndian.Uint32(magicBytes) != Magic {
		return nil, oxerr.InvalidParameter(opRead, "magic", "buffer does not start with the oiCA magic number")
	}

	hdr, err := c.Consume(2)
	if err != nil {
		return nil, err
	}
	version, typeByte := hdr[0], hdr[1]
	if version != headerVersion {
		return nil, oxerr.Unsupported(opRead, "version", "unsupported oiCA version")
	}
	if typeByte>>4 != 0 {
		return nil, oxerr.Unsupported(opRead, "type", "compression is not supported")
	}
	encryption := oidl.Encryption(typeByte)
	if encryption > oidl.EncryptionAES256GCM {
		return nil, oxerr.InvalidParameter(opRead, "type", "unknown encryption type")
	}
	if key != nil && encryption == oidl.EncryptionNone {
		return nil, oxerr.InvalidParameter(opRead, "key", "encryption key provided but container declares no encryption")
	}
	if key == nil && encryption != oidl.EncryptionNone {
		return nil, oxerr.Unauthorized(opRead, "key", "encryption key required")
	}

	flagsBytes, err := c.Consume(2)
	if err != nil {
		return nil, err
	}
	flags := binary.LittleEndian.Uint16(flagsBytes)
	if flags&(3<<5) != 0 { // reserved AES-chunk bits
		return nil, oxerr.Unsupported(opRead, "flags", "reserved AES-chunk bits must be zero")
	}
	if (flags>>8)&3 != 0 { // reserved compressed-size-type sub-field
		return nil, oxerr.Unsupported(opRead, "flags", "reserved compressed size type must be zero")
	}

	sizeST := sizetype.SizeType((flags >> fileSizeTypeShift) & 3)
	includeDate := flags&flagFilesHaveDate != 0
	includeFullDate := flags&flagFilesHaveFullDate != 0
	dirRefWide := flags&flagDirectoriesCountLo != 0
	fileRefWide := flags&flagFilesCountLong != 0

	dirRefSize := 1
	if dirRefWide {
		dirRefSize = 2
	}
	fileRefSize := 2
	if fileRefWide {
		fileRefSize = 4
	}

	fileCountU, err := c.ConsumeSize(sizeFromByteWidth(fileRefSize))
	if err != nil {
		return nil, err
	}
	dirCountU, err := c.ConsumeSize(sizeFromByteWidth(dirRefSize))
	if err != nil {
		return nil, err
	}
	fileCount, dirCount := int(fileCountU), int(dirCountU)

	aadEnd := c.Offset()

	if encryption == oidl.EncryptionAES256GCM {
		iv, err := c.Consume(aesgcm.IVSize)
		if err != nil {
			return nil, err
		}
		tag, err := c.Consume(aesgcm.TagSize)
		if err != nil {
			return nil, err
		}
		ciphertext := c.Bytes()[c.Offset():]
		plaintext, err := aesgcm.Decrypt(ciphertext, buf[:aadEnd], key, iv, tag)
		if err != nil {
			return nil, err
		}
		copy(ciphertext, plaintext)
	}

	c2 := sizetype.NewCursor(buf[c.Offset():])

	dl, dlLen, err := oidl.Read(c2.Bytes(), nil, true)
	if err != nil {
		return nil, err
	}
	if dl.EntryCount() != dirCount+fileCount {
		return nil, oxerr.InvalidState(opRead, "names", "embedded name table entry count does not match header counts")
	}
	if err := c2.Skip(dlLen); err != nil {
		return nil, err
	}

	dirNames := make([]string, dirCount)
	for i := 0; i < dirCount; i++ {
		dirNames[i] = dl.String(i)
	}
	fileNames := make([]string, fileCount)
	for i := 0; i < fileCount; i++ {
		fileNames[i] = dl.String(dirCount + i)
	}

	dirParents := make([]uint16, dirCount)
	dirPaths := make([]string, dirCount)
	for i := 0; i < dirCount; i++ {
		parentU, err := c2.ConsumeSize(sizeFromByteWidth(dirRefSize))
		if err != nil {
			return nil, err
		}
		parent := uint16(parentU)
		rootSentinel := rootParentSmall
		if dirRefSize == 2 {
			rootSentinel = rootParentLarge
		}
		if parent != rootSentinel {
			if int(parent) >= i {
				return nil, oxerr.InvalidState(opRead, "directories", "directory parent index must precede self")
			}
			dirPaths[i] = dirPaths[parent] + "/" + dirNames[i]
		} else {
			dirPaths[i] = dirNames[i]
		}
		dirParents[i] = parent
	}

	type fileRow struct {
		parent uint16
		ts     time.Time
		length uint64
	}
	rows := make([]fileRow, fileCount)
	for i := 0; i < fileCount; i++ {
		parentU, err := c2.ConsumeSize(sizeFromByteWidth(dirRefSize))
		if err != nil {
			return nil, err
		}
		parent := uint16(parentU)
		rootSentinel := rootParentSmall
		if dirRefSize == 2 {
			rootSentinel = rootParentLarge
		}
		if parent != rootSentinel && int(parent) >= dirCount {
			return nil, oxerr.InvalidState(opRead, "files", "file parent index out of directory range")
		}

		var ts time.Time
		if includeFullDate {
			nsBytes, err := c2.Consume(8)
			if err != nil {
				return nil, err
			}
			ts = time.Unix(0, int64(binary.LittleEndian.Uint64(nsBytes))).UTC()
		} else if includeDate {
			timeBytes, err := c2.Consume(2)
			if err != nil {
				return nil, err
			}
			dateBytes, err := c2.Consume(2)
			if err != nil {
				return nil, err
			}
			ts = decodeDOSDate(binary.LittleEndian.Uint16(timeBytes), binary.LittleEndian.Uint16(dateBytes))
		}

		length, err := c2.ConsumeSize(sizeST)
		if err != nil {
			return nil, err
		}

		rows[i] = fileRow{parent: parent, ts: ts, length: length}
	}

	out := archive.New()
	for i := 0; i < dirCount; i++ {
		if err := archivepath.Check(dirPaths[i]); err != nil {
			return nil, err
		}
		if err := out.AddDirectory(dirPaths[i]); err != nil {
			return nil, err
		}
	}

	rootSentinel := rootParentSmall
	if dirRefSize == 2 {
		rootSentinel = rootParentLarge
	}
	for i := 0; i < fileCount; i++ {
		var path string
		if rows[i].parent == rootSentinel {
			path = fileNames[i]
		} else {
			path = dirPaths[rows[i].parent] + "/" + fileNames[i]
		}
		if err := archivepath.Check(path); err != nil {
			return nil, err
		}
		data, err := c2.Consume(int(rows[i].length))
		if err != nil {
			return nil, err
		}
		if err := out.AddFile(path, data, rows[i].ts); err != nil {
			return nil, err
		}
	}

	if c2.Remaining() != 0 {
		return nil, oxerr.InvalidState(opRead, "trailer", "unexpected trailing data after oiCA blob heap")
	}

	return out, nil
}

func sizeFromByteWidth(n int) sizetype.SizeType {
	switch n {
	case 1:
		return sizetype.U8
	case 2:
		return sizetype.U16
	case 4:
		return sizetype.U32
	default:
		return sizetype.U64
	}
}

// Combine merges b's archive into a's, failing AlreadyDefined on any path
// collision (spec §8, scenario S6).
func Combine(a, b *archive.Archive) (*archive.Archive, error) {
	return archive.Combine(a, b)
}
