// Package archive implements the in-memory, path-indexed tree that oiCA
// (format/oica) serializes: named files and directories with optional
// timestamps (spec §3, §4.5).
//
// Grounded on the filesystem.FileSystem operation set
// (Mkdir/OpenFile/Rename/Remove in filesystem/filesystem.go) generalized
// from a disk-backed tree to a pure in-memory one, and on
// filesystem/iso9660's case-insensitive-unique-name discipline.
package archive

import (
	"sort"
	"strings"
	"time"

	"github.com/oxc3-go/core3/archivepath"
	"github.com/oxc3-go/core3/oxerr"
)

// Archive is an ordered set of Entry records forming a path-addressed tree.
// It is not safe for concurrent use by multiple goroutines without external
// synchronization (spec §5: no concurrent writers to a single container).
type Archive struct {
	// byKey indexes entries by case-folded path for O(1) existence/lookup
	// checks; byKey's keys are strings.ToLower(path).
	byKey map[string]*Entry
}

// New returns an empty Archive.
func New() *Archive {
	return &Archive{byKey: make(map[string]*Entry)}
}

func key(p string) string { return strings.ToLower(p) }

// Has reports whether path exists in the archive (as either Kind).
func (a *Archive) Has(path string) bool {
	_, ok := a.byKey[key(path)]
	return ok
}

// GetInfo returns the Entry at path, or a NotFound error.
func (a *Archive) GetInfo(path string) (*Entry, error) {
	e, ok := a.byKey[key(path)]
	if !ok {
		return nil, oxerr.NotFound("Archive.GetInfo", "path", path)
	}
	return e, nil
}

// GetData returns a copy of the file's bytes at path. Fails InvalidParameter
// if path is a directory, NotFound if it does not exist.
func (a *Archive) GetData(path string) ([]byte, error) {
	e, err := a.GetInfo(path)
	if err != nil {
		return nil, err
	}
	if e.Kind != File {
		return nil, oxerr.InvalidParameter("Archive.GetData", "path", "path is a directory, not a file")
	}
	out := make([]byte, len(e.data))
	copy(out, e.data)
	return out, nil
}

// AddDirectory creates path as a Folder, auto-creating any missing
// ancestors. Idempotent if path is already a Folder; fails AlreadyDefined if
// path exists as a File.
func (a *Archive) AddDirectory(path string) error {
	const op = "Archive.AddDirectory"
	if err := archivepath.Check(path); err != nil {
		return err
	}
	if err := a.ensureAncestors(op, path); err != nil {
		return err
	}
	if existing, ok := a.byKey[key(path)]; ok {
		if existing.Kind == Folder {
			return nil
		}
		return oxerr.AlreadyDefined(op, "path", path)
	}
	a.byKey[key(path)] = &Entry{Path: path, Kind: Folder}
	return nil
}

// AddFile creates path as a File owning data, auto-creating any missing
// ancestor directories. Fails AlreadyDefined if path already exists.
func (a *Archive) AddFile(path string, data []byte, ts time.Time) error {
	const op = "Archive.AddFile"
	if err := archivepath.Check(path); err != nil {
		return err
	}
	if a.Has(path) {
		return oxerr.AlreadyDefined(op, "path", path)
	}
	if err := a.ensureAncestors(op, path); err != nil {
		return err
	}
	owned := make([]byte, len(data))
	copy(owned, data)
	a.byKey[key(path)] = &Entry{Path: path, Kind: File, Timestamp: ts, data: owned}
	return nil
}

// ensureAncestors creates, as Folders, every ancestor directory of path that
// does not yet exist. It fails AlreadyDefined if an ancestor exists as a
// File (a file cannot have children).
func (a *Archive) ensureAncestors(op, path string) error {
	parent := archivepath.Parent(path)
	if parent == "" {
		return nil
	}
	if existing, ok := a.byKey[key(parent)]; ok {
		if existing.Kind != Folder {
			return oxerr.AlreadyDefined(op, "path", parent+" exists as a file, cannot be a parent directory")
		}
		return nil
	}
	if err := a.ensureAncestors(op, parent); err != nil {
		return err
	}
	a.byKey[key(parent)] = &Entry{Path: parent, Kind: Folder}
	return nil
}

// Remove removes path. If it is a Folder, all descendants are removed too.
func (a *Archive) Remove(path string) error {
	const op = "Archive.Remove"
	e, ok := a.byKey[key(path)]
	if !ok {
		return oxerr.NotFound(op, "path", path)
	}
	if e.Kind == Folder {
		prefix := key(path) + "/"
		for p := range a.byKey {
			if strings.HasPrefix(p, prefix) {
				delete(a.byKey, p)
			}
		}
	}
	delete(a.byKey, key(path))
	return nil
}

// Rename changes the last component of path to name, which must be a valid
// single filename component and unique within the parent.
func (a *Archive) Rename(path, name string) error {
	const op = "Archive.Rename"
	if strings.Contains(name, "/") {
		return oxerr.InvalidParameter(op, "name", "name must not contain '/'")
	}
	parent := archivepath.Parent(path)
	newPath := archivepath.Join(parent, name)
	return a.move(op, path, newPath)
}

// Move reparents path into the existing Folder dir.
func (a *Archive) Move(path, dir string) error {
	const op = "Archive.Move"
	if dir != "" {
		d, err := a.GetInfo(dir)
		if err != nil {
			return oxerr.NotFound(op, "dir", dir)
		}
		if d.Kind != Folder {
			return oxerr.InvalidParameter(op, "dir", "destination is not a directory")
		}
	}
	newPath := archivepath.Join(dir, archivepath.Base(path))
	return a.move(op, path, newPath)
}

func (a *Archive) move(op, oldPath, newPath string) error {
	if err := archivepath.Check(newPath); err != nil {
		return err
	}
	e, ok := a.byKey[key(oldPath)]
	if !ok {
		return oxerr.NotFound(op, "path", oldPath)
	}
	if a.Has(newPath) {
		return oxerr.AlreadyDefined(op, "path", newPath)
	}
	if err := a.ensureAncestors(op, newPath); err != nil {
		return err
	}

	oldPrefix := key(oldPath) + "/"
	moved := make(map[string]*Entry)
	for p, ent := range a.byKey {
		if p == key(oldPath) {
			continue
		}
		if strings.HasPrefix(p, oldPrefix) {
			rel := ent.Path[len(oldPath):]
			ent.Path = newPath + rel
			moved[key(ent.Path)] = ent
			delete(a.byKey, p)
		}
	}
	delete(a.byKey, key(oldPath))
	e.Path = newPath
	a.byKey[key(newPath)] = e
	for k, ent := range moved {
		a.byKey[k] = ent
	}
	return nil
}

// KindFilter selects which Kind(s) ForEach visits. Use FilterAll to visit
// both.
type KindFilter uint8

const (
	FilterFiles KindFilter = 1 << iota
	FilterFolders
	FilterAll = FilterFiles | FilterFolders
)

func (f KindFilter) matches(k Kind) bool {
	if k == File {
		return f&FilterFiles != 0
	}
	return f&FilterFolders != 0
}

// ForEach visits entries beneath root (inclusive of root itself, if it
// matches filter) in the canonical order: parents before children,
// breadth-first by depth, lexicographic (case-insensitive) within a depth.
// If recursive is false, only root's direct children (and root) are
// visited. cb may return false to stop iteration early.
func (a *Archive) ForEach(root string, recursive bool, filter KindFilter, cb func(*Entry) bool) error {
	ordered := a.ordered()

	var rootDepth int
	if root != "" {
		if !a.Has(root) {
			return oxerr.NotFound("Archive.ForEach", "root", root)
		}
		rootDepth = archivepath.Depth(root)
	}

	for _, e := range ordered {
		if root != "" && e.Path != root && !isDescendant(root, e.Path) {
			continue
		}
		if !recursive && e.Path != root && archivepath.Depth(e.Path) != rootDepth+1 {
			continue
		}
		if !filter.matches(e.Kind) {
			continue
		}
		if !cb(e) {
			break
		}
	}
	return nil
}

func isDescendant(root, path string) bool {
	return strings.HasPrefix(key(path), key(root)+"/")
}

// ordered returns every entry sorted by (depth ascending, case-insensitive
// basename ascending) -- the canonical traversal order oiCA's on-disk tables
// depend on (spec §4.5, §4.7).
func (a *Archive) ordered() []*Entry {
	out := make([]*Entry, 0, len(a.byKey))
	for _, e := range a.byKey {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := archivepath.Depth(out[i].Path), archivepath.Depth(out[j].Path)
		if di != dj {
			return di < dj
		}
		return strings.ToLower(archivepath.Base(out[i].Path)) < strings.ToLower(archivepath.Base(out[j].Path))
	})
	return out
}

// Entries returns every entry in canonical order (see ordered). Used by
// format/oica to build its directory/file tables.
func (a *Archive) Entries() []*Entry {
	return a.ordered()
}

// Combine merges b's entries into a copy of a, failing AlreadyDefined if any
// path collides between the two (spec §8, scenario S6).
func Combine(a, b *Archive) (*Archive, error) {
	out := New()
	for _, e := range a.ordered() {
		if e.Kind == Folder {
			if err := out.AddDirectory(e.Path); err != nil {
				return nil, err
			}
		} else {
			if err := out.AddFile(e.Path, e.data, e.Timestamp); err != nil {
				return nil, err
			}
		}
	}
	for _, e := range b.ordered() {
		if out.Has(e.Path) {
			return nil, oxerr.AlreadyDefined("archive.Combine", "path", e.Path)
		}
		if e.Kind == Folder {
			if err := out.AddDirectory(e.Path); err != nil {
				return nil, err
			}
		} else {
			if err := out.AddFile(e.Path, e.data, e.Timestamp); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
