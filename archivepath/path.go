// Package archivepath implements the path-safety predicate shared by the
// Archive (C5) and oiCA (C7): a slash-separated
// relative path whose components are non-empty, case-insensitive-unique
// within their parent, and free of characters the host filesystem rejects.
package archivepath

import (
	"regexp"
	"strings"

	"github.com/oxc3-go/core3/oxerr"
)

// maxComponentLength matches the common host ceiling (NTFS/ext4/APFS all
// allow at least 255 bytes per path component), used as the "host
// filesystem component length" limit when no narrower limit is known.
const maxComponentLength = 255

// forbiddenChars mirrors §3's Path invariant: no `:` `<` `>` `?` `*` `"` `|`
// or control codes.
var forbiddenChars = regexp.MustCompile(`[:<>?*"|\x00-\x1f\x7f]`)

// Valid reports whether p is a well-formed relative path per §3: slash
// separated, non-empty components, no ".." traversal, no forbidden
// characters, no component longer than the host limit.
func Valid(p string) bool {
	return Check(p) == nil
}

// Check returns a descriptive error if p violates the Path invariant,
// or nil if p is valid.
func Check(p string) error {
	const op = "archivepath.Check"
	if p == "" {
		return oxerr.InvalidParameter(op, "path", "path is empty")
	}
	if strings.HasPrefix(p, "/") || strings.HasSuffix(p, "/") {
		return oxerr.InvalidParameter(op, "path", "path must not begin or end with '/'")
	}
	for _, comp := range strings.Split(p, "/") {
		if comp == "" {
			return oxerr.InvalidParameter(op, "path", "path contains an empty component")
		}
		if comp == "." || comp == ".." {
			return oxerr.InvalidParameter(op, "path", "path contains a traversal component")
		}
		if len(comp) > maxComponentLength {
			return oxerr.InvalidParameter(op, "path", "path component exceeds host filesystem length limit")
		}
		if forbiddenChars.MatchString(comp) {
			return oxerr.InvalidParameter(op, "path", "path component contains a forbidden character")
		}
	}
	return nil
}

// Parent returns the parent path of p, or "" if p is a root-level entry.
func Parent(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return ""
	}
	return p[:i]
}

// Base returns the last component of p.
func Base(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return p
	}
	return p[i+1:]
}

// Join joins a parent path and a basename, handling the root case where
// parent == "".
func Join(parent, base string) string {
	if parent == "" {
		return base
	}
	return parent + "/" + base
}

// Depth returns the number of components in p (a root-level entry has
// depth 1), matching the "depth ascending" sort key used by oiCA and the
// Archive's canonical traversal order.
func Depth(p string) int {
	return strings.Count(p, "/") + 1
}

// EqualFold reports whether a and b are equal under case-insensitive
// comparison, the uniqueness rule §3 requires within a parent directory.
func EqualFold(a, b string) bool {
	return strings.EqualFold(a, b)
}
