package archive

import (
	"fmt"
	"io/fs"
	"os"
	"path"
)

// excludedNames are never copied into an Archive built from a real
// directory tree: filesystem housekeeping entries that have no business in
// a packaged container.
var excludedNames = map[string]bool{
	"lost+found":                true,
	".DS_Store":                 true,
	"System Volume Information": true,
}

// FromFS walks src (typically os.DirFS(dir)) and builds an Archive with the
// same structure and file contents, for the CLI's package/convert
// operations: a recursive directory walk that copies into an in-memory
// Archive instead of a second filesystem.FileSystem.
func FromFS(src fs.FS) (*Archive, error) {
	a := New()
	if err := copyDir(src, a, "."); err != nil {
		return nil, err
	}
	return a, nil
}

func copyDir(src fs.FS, dst *Archive, dir string) error {
	entries, err := fs.ReadDir(src, dir)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if excludedNames[name] {
			continue
		}

		p := name
		if dir != "." {
			p = path.Join(dir, name)
		}

		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}

		if info.Mode()&os.ModeSymlink != 0 {
			// Archive has no symlink kind (spec §3 Archive is File|Folder
			// only); skip, matching a read-only packaging pass.
			continue
		}

		if entry.IsDir() {
			if err := dst.AddDirectory(p); err != nil {
				return fmt.Errorf("create dir %s: %w", p, err)
			}
			if err := copyDir(src, dst, p); err != nil {
				return fmt.Errorf("copy dir %s: %w", p, err)
			}
			continue
		}

		if !info.Mode().IsRegular() {
			continue
		}

		data, err := fs.ReadFile(src, p)
		if err != nil {
			return fmt.Errorf("read file %s: %w", p, err)
		}
		if err := dst.AddFile(p, data, info.ModTime()); err != nil {
			return fmt.Errorf("add file %s: %w", p, err)
		}
	}
	return nil
}
