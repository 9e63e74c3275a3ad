package crc32c

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecksumKnownVector(t *testing.T) {
	// "123456789" is the standard CRC32C conformance vector.
	assert.Equal(t, uint32(0xE3069283), Checksum([]byte("123456789")))
}

func TestUpdateMatchesChecksum(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	want := Checksum(data)

	got := Update(0, data[:10])
	got = Update(got, data[10:])
	assert.Equal(t, want, got)
}

func TestHasherStreaming(t *testing.T) {
	data := []byte("streamed content for oiSH include provenance")
	h := New()
	_, err := h.Write(data[:5])
	assert.NoError(t, err)
	_, err = h.Write(data[5:])
	assert.NoError(t, err)
	assert.Equal(t, Checksum(data), h.Sum32())
}

func TestEmptyInput(t *testing.T) {
	assert.Equal(t, uint32(0), Checksum(nil))
}
