package archive

import (
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddFileCreatesAncestors(t *testing.T) {
	a := New()
	require.NoError(t, a.AddFile("a/b/c.txt", []byte("hi"), time.Time{}))

	assert.True(t, a.Has("a"))
	assert.True(t, a.Has("a/b"))
	assert.True(t, a.Has("a/b/c.txt"))

	info, err := a.GetInfo("a")
	require.NoError(t, err)
	assert.Equal(t, Folder, info.Kind)

	data, err := a.GetData("a/b/c.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), data)
}

func TestAddFileAlreadyDefined(t *testing.T) {
	a := New()
	require.NoError(t, a.AddFile("foo.txt", []byte("x"), time.Time{}))
	err := a.AddFile("foo.txt", []byte("y"), time.Time{})
	require.Error(t, err)
}

func TestAddDirectoryIdempotent(t *testing.T) {
	a := New()
	require.NoError(t, a.AddDirectory("dir"))
	require.NoError(t, a.AddDirectory("dir"))
}

func TestAddDirectoryConflictsWithFile(t *testing.T) {
	a := New()
	require.NoError(t, a.AddFile("dir", []byte("x"), time.Time{}))
	err := a.AddDirectory("dir")
	require.Error(t, err)
}

func TestRemoveRecursive(t *testing.T) {
	a := New()
	require.NoError(t, a.AddFile("a/b/c.txt", []byte("x"), time.Time{}))
	require.NoError(t, a.Remove("a"))
	assert.False(t, a.Has("a"))
	assert.False(t, a.Has("a/b"))
	assert.False(t, a.Has("a/b/c.txt"))
}

func TestRenameAndMove(t *testing.T) {
	a := New()
	require.NoError(t, a.AddDirectory("src"))
	require.NoError(t, a.AddDirectory("dst"))
	require.NoError(t, a.AddFile("src/file.txt", []byte("x"), time.Time{}))

	require.NoError(t, a.Rename("src/file.txt", "renamed.txt"))
	assert.True(t, a.Has("src/renamed.txt"))

	require.NoError(t, a.Move("src/renamed.txt", "dst"))
	assert.True(t, a.Has("dst/renamed.txt"))
	assert.False(t, a.Has("src/renamed.txt"))
}

func TestMoveFolderMovesDescendants(t *testing.T) {
	a := New()
	require.NoError(t, a.AddFile("a/b/c.txt", []byte("x"), time.Time{}))
	require.NoError(t, a.AddDirectory("z"))

	require.NoError(t, a.Move("a", "z"))
	assert.True(t, a.Has("z/a"))
	assert.True(t, a.Has("z/a/b"))
	assert.True(t, a.Has("z/a/b/c.txt"))
	assert.False(t, a.Has("a"))
}

func TestForEachCanonicalOrder(t *testing.T) {
	a := New()
	require.NoError(t, a.AddFile("b.txt", []byte("x"), time.Time{}))
	require.NoError(t, a.AddFile("a.txt", []byte("x"), time.Time{}))
	require.NoError(t, a.AddFile("a/deep.txt", []byte("x"), time.Time{}))

	var seen []string
	err := a.ForEach("", true, FilterAll, func(e *Entry) bool {
		seen = append(seen, e.Path)
		return true
	})
	require.NoError(t, err)

	// parents before children: "a" (depth 1) must precede "a/deep.txt" (depth 2).
	aIdx, deepIdx := -1, -1
	for i, p := range seen {
		if p == "a" {
			aIdx = i
		}
		if p == "a/deep.txt" {
			deepIdx = i
		}
	}
	require.NotEqual(t, -1, aIdx)
	require.NotEqual(t, -1, deepIdx)
	assert.Less(t, aIdx, deepIdx)

	// within depth 1, case-insensitive ascending: "a", "a.txt", "b.txt" (a < a.txt < b.txt).
	var depth1 []string
	for _, p := range seen {
		if len(p) > 0 && p != "a/deep.txt" {
			depth1 = append(depth1, p)
		}
	}
	assert.Equal(t, []string{"a", "a.txt", "b.txt"}, depth1)
}

func TestForEachOrdersSiblingsByBasenameAcrossParents(t *testing.T) {
	a := New()
	require.NoError(t, a.AddDirectory("a"))
	require.NoError(t, a.AddDirectory("b"))
	require.NoError(t, a.AddFile("a/z.txt", []byte("x"), time.Time{}))
	require.NoError(t, a.AddFile("b/a.txt", []byte("x"), time.Time{}))

	var seen []string
	err := a.ForEach("", true, FilterAll, func(e *Entry) bool {
		seen = append(seen, e.Path)
		return true
	})
	require.NoError(t, err)

	// both files are depth 2; basename order ("a.txt" < "z.txt") must win over
	// full-path order ("a/z.txt" < "b/a.txt"), so "b/a.txt" sorts first.
	var depth2 []string
	for _, p := range seen {
		if p == "a/z.txt" || p == "b/a.txt" {
			depth2 = append(depth2, p)
		}
	}
	assert.Equal(t, []string{"b/a.txt", "a/z.txt"}, depth2)
}

func TestForEachNonRecursive(t *testing.T) {
	a := New()
	require.NoError(t, a.AddFile("dir/file.txt", []byte("x"), time.Time{}))
	require.NoError(t, a.AddFile("dir/sub/deep.txt", []byte("x"), time.Time{}))

	var seen []string
	err := a.ForEach("dir", false, FilterAll, func(e *Entry) bool {
		seen = append(seen, e.Path)
		return true
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"dir", "dir/file.txt", "dir/sub"}, seen)
}

func TestCombineDisjoint(t *testing.T) {
	a := New()
	require.NoError(t, a.AddFile("x/1", []byte("1"), time.Time{}))
	b := New()
	require.NoError(t, b.AddFile("y/2", []byte("2"), time.Time{}))

	c, err := Combine(a, b)
	require.NoError(t, err)
	assert.True(t, c.Has("x/1"))
	assert.True(t, c.Has("y/2"))
}

func TestCombineCollision(t *testing.T) {
	a := New()
	require.NoError(t, a.AddFile("x/1", []byte("1"), time.Time{}))
	b := New()
	require.NoError(t, b.AddFile("x/1", []byte("2"), time.Time{}))

	_, err := Combine(a, b)
	require.Error(t, err)
}

func TestFromFS(t *testing.T) {
	fsys := fstest.MapFS{
		"dir/file.txt":     &fstest.MapFile{Data: []byte("hello")},
		"dir/sub/deep.txt": &fstest.MapFile{Data: []byte("world")},
	}
	a, err := FromFS(fsys)
	require.NoError(t, err)
	assert.True(t, a.Has("dir"))
	assert.True(t, a.Has("dir/file.txt"))
	assert.True(t, a.Has("dir/sub/deep.txt"))

	data, err := a.GetData("dir/file.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}
