package archive

import "time"

// Kind distinguishes a file entry from a directory entry in an Archive.
type Kind uint8

const (
	File Kind = iota
	Folder
)

func (k Kind) String() string {
	if k == Folder {
		return "Folder"
	}
	return "File"
}

// Entry is a single record in an Archive: a path, its Kind, an optional
// Timestamp (zero means unknown, per spec §3), and -- for files -- owned
// data bytes.
type Entry struct {
	Path      string
	Kind      Kind
	Timestamp time.Time
	data      []byte
}

// Size returns the length of the entry's data (0 for directories).
func (e *Entry) Size() int64 {
	return int64(len(e.data))
}
