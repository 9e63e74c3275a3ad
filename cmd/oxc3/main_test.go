package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeArgsRewritesSingleDashLongFlags(t *testing.T) {
	in := []string{"-input", "foo.bin", "--aes", "abc", "-sha256"}
	out := normalizeArgs(in)
	assert.Equal(t, []string{"--input", "foo.bin", "--aes", "abc", "--sha256"}, out)
}

func TestNormalizeArgsLeavesLongAndShortFlagsAlone(t *testing.T) {
	in := []string{"--split-by", ",", "-x"}
	assert.Equal(t, in, normalizeArgs(in))
}

func TestParseFlagsRoundTrip(t *testing.T) {
	opts, err := parseFlags([]string{
		"-input", "in.dir", "-output", "out.oica", "--date", "--sha256", "-entry", "3", "-start", "10", "-length", "20",
	})
	require.NoError(t, err)
	assert.Equal(t, "in.dir", opts.input)
	assert.Equal(t, "out.oica", opts.output)
	assert.True(t, opts.date)
	assert.True(t, opts.sha256)
	assert.Equal(t, "3", opts.entry)
	assert.Equal(t, uint64(10), opts.start)
	assert.Equal(t, uint64(20), opts.length)
}

func TestParseKeyRejectsWrongLength(t *testing.T) {
	_, err := parseKey("abcd")
	require.Error(t, err)
}

func TestParseKeyAcceptsValidHex(t *testing.T) {
	hex64 := ""
	for i := 0; i < 64; i++ {
		hex64 += "a"
	}
	key, err := parseKey(hex64)
	require.NoError(t, err)
	assert.Len(t, key, 32)
}

func TestParseKeyEmptyMeansNoEncryption(t *testing.T) {
	key, err := parseKey("")
	require.NoError(t, err)
	assert.Nil(t, key)
}

func TestSliceRangeClampsToBounds(t *testing.T) {
	data := []byte("0123456789")
	assert.Equal(t, []byte("0123456789"), sliceRange(data, 0, 0))
	assert.Equal(t, []byte("345"), sliceRange(data, 3, 3))
	assert.Equal(t, []byte(""), sliceRange(data, 100, 5))
	assert.Equal(t, []byte("6789"), sliceRange(data, 6, 100))
}
