package main

import (
	"encoding/binary"
	"os"
	"strconv"

	"github.com/oxc3-go/core3/archive"
	"github.com/oxc3-go/core3/format/oica"
	"github.com/oxc3-go/core3/format/oidl"
	"github.com/oxc3-go/core3/oxerr"
)

const opExtract = "oxc3.extractEntry"

// extractEntry reads an existing oiCA or oiDL container from opts.input and
// writes one entry's bytes (optionally sliced by -start/-length) to
// opts.output.
func extractEntry(opts *options, key []byte) error {
	raw, err := os.ReadFile(opts.input)
	if err != nil {
		return err
	}
	if len(raw) < 4 {
		return oxerr.OutOfBounds(opExtract, "input", "file too short to contain a magic number")
	}

	var data []byte
	switch binary.LittleEndian.Uint32(raw[:4]) {
	case oica.Magic:
		arc, err := oica.Read(raw, key)
		if err != nil {
			return err
		}
		data, err = resolveArchiveEntry(arc, opts.entry)
		if err != nil {
			return err
		}
	case oidl.Magic:
		f, _, err := oidl.Read(raw, key, false)
		if err != nil {
			return err
		}
		idx, convErr := strconv.Atoi(opts.entry)
		if convErr != nil {
			return oxerr.InvalidParameter(opExtract, "entry", "oiDL entries are addressed by numeric index")
		}
		if idx < 0 || idx >= f.EntryCount() {
			return oxerr.NotFound(opExtract, "entry", "index out of range")
		}
		data = f.Entries[idx]
	default:
		return oxerr.Unsupported(opExtract, "input", "unrecognized magic number")
	}

	return writeOutput(opts.output, sliceRange(data, opts.start, opts.length))
}

// resolveArchiveEntry accepts either a numeric index (into the archive's
// files, in canonical order) or a literal path.
func resolveArchiveEntry(arc *archive.Archive, entry string) ([]byte, error) {
	if entry == "" {
		return nil, oxerr.InvalidParameter(opExtract, "entry", "required to extract from an oiCA archive")
	}
	if idx, err := strconv.Atoi(entry); err == nil {
		files := filesOnly(arc)
		if idx < 0 || idx >= len(files) {
			return nil, oxerr.NotFound(opExtract, "entry", "index out of range")
		}
		return arc.GetData(files[idx].Path)
	}
	return arc.GetData(entry)
}

func filesOnly(arc *archive.Archive) []*archive.Entry {
	all := arc.Entries()
	out := make([]*archive.Entry, 0, len(all))
	for _, e := range all {
		if e.Kind == archive.File {
			out = append(out, e)
		}
	}
	return out
}

// sliceRange clamps [start, start+length) to data's bounds; length == 0
// means "to the end".
func sliceRange(data []byte, start, length uint64) []byte {
	if start > uint64(len(data)) {
		start = uint64(len(data))
	}
	end := uint64(len(data))
	if length > 0 && start+length < end {
		end = start + length
	}
	return data[start:end]
}
