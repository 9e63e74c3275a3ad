package oica

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxc3-go/core3/archive"
	"github.com/oxc3-go/core3/format/oidl"
)

func TestWriteReadSingleRootFile(t *testing.T) {
	a := archive.New()
	require.NoError(t, a.AddFile("foo.txt", []byte("hi"), time.Time{}))

	buf, err := Write(a, Settings{})
	require.NoError(t, err)

	got, err := Read(buf, nil)
	require.NoError(t, err)
	assert.True(t, got.Has("foo.txt"))
	data, err := got.GetData("foo.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), data)
}

func TestWriteReadNestedTree(t *testing.T) {
	a := archive.New()
	require.NoError(t, a.AddFile("a/b/c.txt", []byte("nested"), time.Time{}))
	require.NoError(t, a.AddFile("a/d.txt", []byte("sibling"), time.Time{}))
	require.NoError(t, a.AddDirectory("empty"))

	buf, err := Write(a, Settings{})
	require.NoError(t, err)

	got, err := Read(buf, nil)
	require.NoError(t, err)
	assert.True(t, got.Has("a"))
	assert.True(t, got.Has("a/b"))
	assert.True(t, got.Has("a/b/c.txt"))
	assert.True(t, got.Has("a/d.txt"))
	assert.True(t, got.Has("empty"))

	data, err := got.GetData("a/b/c.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("nested"), data)
}

func TestWriteReadWithDate(t *testing.T) {
	a := archive.New()
	ts := time.Date(2023, time.June, 15, 10, 30, 0, 0, time.UTC)
	require.NoError(t, a.AddFile("f.txt", []byte("x"), ts))

	buf, err := Write(a, Settings{IncludeDate: true})
	require.NoError(t, err)

	got, err := Read(buf, nil)
	require.NoError(t, err)
	info, err := got.GetInfo("f.txt")
	require.NoError(t, err)
	assert.Equal(t, ts.Truncate(2*time.Second), info.Timestamp.Truncate(2*time.Second))
}

func TestWriteReadWithFullDate(t *testing.T) {
	a := archive.New()
	ts := time.Date(2023, time.June, 15, 10, 30, 45, 0, time.UTC)
	require.NoError(t, a.AddFile("f.txt", []byte("x"), ts))

	buf, err := Write(a, Settings{IncludeFullDate: true})
	require.NoError(t, err)

	got, err := Read(buf, nil)
	require.NoError(t, err)
	info, err := got.GetInfo("f.txt")
	require.NoError(t, err)
	assert.True(t, ts.Equal(info.Timestamp))
}

func TestWriteReadEncrypted(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i + 1)
	}
	a := archive.New()
	require.NoError(t, a.AddFile("secret.txt", []byte("classified"), time.Time{}))

	buf, err := Write(a, Settings{Encryption: oidl.EncryptionAES256GCM, EncryptionKey: key})
	require.NoError(t, err)

	got, err := Read(buf, key)
	require.NoError(t, err)
	data, err := got.GetData("secret.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("classified"), data)
}

func TestReadEncryptedTamperedFails(t *testing.T) {
	key := make([]byte, 32)
	a := archive.New()
	require.NoError(t, a.AddFile("secret.txt", []byte("classified"), time.Time{}))

	buf, err := Write(a, Settings{Encryption: oidl.EncryptionAES256GCM, EncryptionKey: key})
	require.NoError(t, err)

	buf[len(buf)-1] ^= 0xFF
	_, err = Read(buf, key)
	require.Error(t, err)
}

func TestReadRejectsBadMagic(t *testing.T) {
	_, err := Read(make([]byte, 16), nil)
	require.Error(t, err)
}

func TestCombineDisjointArchives(t *testing.T) {
	a := archive.New()
	require.NoError(t, a.AddFile("x.txt", []byte("1"), time.Time{}))
	b := archive.New()
	require.NoError(t, b.AddFile("y.txt", []byte("2"), time.Time{}))

	c, err := Combine(a, b)
	require.NoError(t, err)
	assert.True(t, c.Has("x.txt"))
	assert.True(t, c.Has("y.txt"))
}
